// Package store defines the persistence interfaces the consolidation
// engine and reporting layer depend on. Two implementations exist:
// internal/infra/bigquery for production and internal/infra/memory for
// tests and local development.
package store

import (
	"context"
	"time"

	"github.com/valorops/expense-portal/internal/domain"
)

// RecordFilter selects staging records. Zero values mean "no filter".
type RecordFilter struct {
	Source   domain.Source
	BatchID  string
	Name     string // matches resolved canonical name
	Category string
	Year     int
	From, To time.Time // inclusive date range
	Unsynced bool      // only records with Synced=false
	Limit    int
}

// ExpenseFilter selects consolidated ledger rows.
type ExpenseFilter struct {
	Year     int
	Month    int
	Name     string
	Category string
	Source   string
	From, To time.Time
	Limit    int
}

// StagingStore persists per-source staging records and their batches.
// Batch creation and batch deletion are atomic: either the batch row and
// every member row exist, or none do.
type StagingStore interface {
	// InsertBatch persists the batch row and all member records in one
	// atomic unit.
	InsertBatch(ctx context.Context, batch *domain.Batch, records []*domain.StagingRecord) error

	GetRecord(ctx context.Context, source domain.Source, id string) (*domain.StagingRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]*domain.StagingRecord, error)

	// UpdateRecord overwrites the stored record with rec.
	UpdateRecord(ctx context.Context, rec *domain.StagingRecord) error

	DeleteRecords(ctx context.Context, source domain.Source, ids []string) error

	// FingerprintExists reports which of the given fingerprints are
	// already staged for the source. Dedup scope never crosses sources.
	FingerprintExists(ctx context.Context, source domain.Source, fingerprints []string) (map[string]bool, error)

	GetBatch(ctx context.Context, source domain.Source, id string) (*domain.Batch, error)
	ListBatches(ctx context.Context, source domain.Source) ([]*domain.Batch, error)

	// DeleteBatch removes the batch row and all member records
	// atomically.
	DeleteBatch(ctx context.Context, source domain.Source, id string) error
}

// LedgerStore persists the consolidated ledger. Only the consolidation
// engine writes to it.
type LedgerStore interface {
	Insert(ctx context.Context, rec *domain.ConsolidatedRecord) error
	Update(ctx context.Context, rec *domain.ConsolidatedRecord) error
	Get(ctx context.Context, id string) (*domain.ConsolidatedRecord, error)

	// Delete removes the row and reports whether it existed. A missing
	// row is not an error; the caller treats it as already undone.
	Delete(ctx context.Context, id string) (bool, error)

	List(ctx context.Context, filter ExpenseFilter) ([]*domain.ConsolidatedRecord, error)
	Years(ctx context.Context) ([]int, error)
}

// AliasStore holds the administrator-maintained identity alias table.
type AliasStore interface {
	ListAliases(ctx context.Context) ([]domain.IdentityAlias, error)
	PutAlias(ctx context.Context, alias domain.IdentityAlias) error
	DeleteAlias(ctx context.Context, rawName string) (bool, error)
}
