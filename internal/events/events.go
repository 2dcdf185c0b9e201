// Package events publishes ledger change notifications so downstream
// consumers (year-end reporting jobs, audit trails) can follow the
// consolidated ledger without polling it.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valorops/expense-portal/internal/domain"
)

// Type enumerates the ledger change events.
type Type string

const (
	TypeSynced Type = "expenses.synced"
	TypeUndone Type = "expenses.undone"
)

// LedgerEvent describes one completed engine operation. Amounts are the
// net effect on the ledger, not per-record detail.
type LedgerEvent struct {
	Type       Type            `json:"type"`
	Source     domain.Source   `json:"source"`
	BatchID    string          `json:"batch_id,omitempty"`
	Records    int             `json:"records"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher delivers ledger events. Publishing is best-effort: the
// engine logs failures but never fails an operation because of one.
type Publisher interface {
	Publish(ctx context.Context, event LedgerEvent) error
	Close() error
}

// NopPublisher discards every event. Used in tests and when no broker
// is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event LedgerEvent) error { return nil }
func (NopPublisher) Close() error                                         { return nil }

var _ Publisher = NopPublisher{}
