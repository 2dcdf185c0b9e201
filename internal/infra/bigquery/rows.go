// Package bigquery implements the store interfaces on BigQuery. Table
// layout: one staging table and one batch table per source, one
// consolidated table, one alias table. Row ids and fingerprints carry
// everything undo and dedup need, so nothing is ever recomputed from
// source files.
package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/valorops/expense-portal/internal/domain"
)

const (
	consolidatedTable = "consolidated_expenses"
	aliasTable        = "identity_aliases"
)

// stagingTable returns the staging table name for a source, e.g.
// "staging_credit_card".
func stagingTable(source domain.Source) string {
	return "staging_" + string(source)
}

// batchTable returns the batch table name for a source.
func batchTable(source domain.Source) string {
	return "batches_" + string(source)
}

// amountScale is the NUMERIC scale used when converting BigQuery
// amounts back into decimals.
const amountScale = 9

// StagingRow mirrors the per-source staging table schema.
type StagingRow struct {
	ID      string `bigquery:"id"`
	BatchID string `bigquery:"batch_id"`

	RawIdentity  string `bigquery:"raw_identity"`
	Name         string `bigquery:"name"`
	EmployeeType string `bigquery:"employee_type"`
	Matched      bool   `bigquery:"matched"`

	Category string     `bigquery:"category"`
	Amount   *big.Rat   `bigquery:"amount"` // NUMERIC
	Date     civil.Date `bigquery:"date"`
	Project  string     `bigquery:"project"`
	Comments string     `bigquery:"comments"`

	CardName    string `bigquery:"card_name"`
	Vendor      string `bigquery:"vendor"`
	Currency    string `bigquery:"currency"`
	Description string `bigquery:"description"`

	Fingerprint     string              `bigquery:"fingerprint"`
	Synced          bool                `bigquery:"synced"`
	ConsolidatedRef bigquery.NullString `bigquery:"consolidated_ref"`

	CreatedAt time.Time `bigquery:"created_at"`
}

// BatchRow mirrors the per-source batch table schema.
type BatchRow struct {
	ID            string    `bigquery:"id"`
	CreatedAt     time.Time `bigquery:"created_at"`
	RecordCount   int64     `bigquery:"record_count"`
	EmployeeCount int64     `bigquery:"employee_count"`
	TotalAmount   *big.Rat  `bigquery:"total_amount"` // NUMERIC
}

// ConsolidatedRow mirrors the consolidated_expenses table schema.
type ConsolidatedRow struct {
	ID           string     `bigquery:"id"`
	Name         string     `bigquery:"name"`
	EmployeeType string     `bigquery:"employee_type"`
	Category     string     `bigquery:"category"`
	Amount       *big.Rat   `bigquery:"amount"` // NUMERIC
	Date         civil.Date `bigquery:"date"`
	Vendor       string     `bigquery:"vendor"`
	Project      string     `bigquery:"project"`
	Source       string     `bigquery:"source"`
	Year         int64      `bigquery:"year"`
	Month        int64      `bigquery:"month"`
	CreatedAt    time.Time  `bigquery:"created_at"`
}

// AliasRow mirrors the identity_aliases table schema.
type AliasRow struct {
	RawName       string `bigquery:"raw_name"`
	CanonicalName string `bigquery:"canonical_name"`
	EmployeeType  string `bigquery:"employee_type"`
}

func amountToRat(d decimal.Decimal) *big.Rat {
	return d.Rat()
}

func amountFromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, amountScale)
}

func dateOf(t time.Time) civil.Date {
	return civil.DateOf(t.UTC())
}

func dateToTime(d civil.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (r *StagingRow) toDomain(source domain.Source) *domain.StagingRecord {
	return &domain.StagingRecord{
		ID:                r.ID,
		Source:            source,
		BatchID:           r.BatchID,
		RawIdentity:       r.RawIdentity,
		CanonicalIdentity: domain.Identity{
			Name:         r.Name,
			EmployeeType: r.EmployeeType,
			Matched:      r.Matched,
		},
		Category:        r.Category,
		Amount:          amountFromRat(r.Amount),
		Date:            dateToTime(r.Date),
		Project:         r.Project,
		Comments:        r.Comments,
		CardName:        r.CardName,
		Vendor:          r.Vendor,
		Currency:        r.Currency,
		Description:     r.Description,
		Fingerprint:     r.Fingerprint,
		Synced:          r.Synced,
		ConsolidatedRef: r.ConsolidatedRef.StringVal,
		CreatedAt:       r.CreatedAt,
	}
}

func (r *BatchRow) toDomain(source domain.Source) *domain.Batch {
	return &domain.Batch{
		ID:            r.ID,
		Source:        source,
		CreatedAt:     r.CreatedAt,
		RecordCount:   int(r.RecordCount),
		EmployeeCount: int(r.EmployeeCount),
		TotalAmount:   amountFromRat(r.TotalAmount),
	}
}

func (r *ConsolidatedRow) toDomain() *domain.ConsolidatedRecord {
	return &domain.ConsolidatedRecord{
		ID:           r.ID,
		Name:         r.Name,
		EmployeeType: r.EmployeeType,
		Category:     r.Category,
		Amount:       amountFromRat(r.Amount),
		Date:         dateToTime(r.Date),
		Vendor:       r.Vendor,
		Project:      r.Project,
		Source:       r.Source,
		Year:         int(r.Year),
		Month:        int(r.Month),
		CreatedAt:    r.CreatedAt,
	}
}
