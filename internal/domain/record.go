package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Identity is a resolved person: the canonical display name plus the
// employee type from the alias table. Matched is false when resolution
// fell through every lookup and Name is the raw string unchanged, so
// reports can flag "unmapped identity" without discarding the record.
type Identity struct {
	Name         string `json:"name"`
	EmployeeType string `json:"employee_type"`
	Matched      bool   `json:"matched"`
}

// StagingRecord is one not-yet-canonical expense row owned by a single
// ingestion source. Amounts are stored in the reporting currency;
// conversion happens before the record reaches the engine.
type StagingRecord struct {
	ID      string `json:"id"`
	Source  Source `json:"source"`
	BatchID string `json:"batch_id"`

	RawIdentity       string   `json:"raw_identity"`
	CanonicalIdentity Identity `json:"canonical_identity"`

	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Date     time.Time       `json:"date"`
	Project  string          `json:"project,omitempty"`
	Comments string          `json:"comments,omitempty"`

	// Source-specific metadata. CardName for credit cards, Vendor for
	// payroll exports, Description for the raw transaction text.
	CardName    string `json:"card_name,omitempty"`
	Vendor      string `json:"vendor,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description,omitempty"`

	Fingerprint string `json:"fingerprint"`

	// Synced implies ConsolidatedRef is non-empty. The ref points at the
	// exact ledger row this record produced, which is what makes undo a
	// delete-by-identity instead of an aggregate recomputation.
	Synced          bool   `json:"synced"`
	ConsolidatedRef string `json:"consolidated_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Batch is an atomic group of staging records created by one
// upload/confirm action. TotalAmount and EmployeeCount are cached at
// creation time and never recomputed; the batch is immutable except for
// being deleted wholesale.
type Batch struct {
	ID            string          `json:"id"`
	Source        Source          `json:"source"`
	CreatedAt     time.Time       `json:"created_at"`
	RecordCount   int             `json:"record_count"`
	EmployeeCount int             `json:"employee_count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// ConsolidatedRecord is the canonical, source-agnostic expense row all
// reporting aggregates are computed over. One consolidated row exists
// per synced staging record (1:1); aggregation happens at query time.
type ConsolidatedRecord struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	EmployeeType string          `json:"employee_type,omitempty"`
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	Date         time.Time       `json:"date"`
	Vendor       string          `json:"vendor,omitempty"`
	Project      string          `json:"project,omitempty"`
	Source       string          `json:"source"`
	Year         int             `json:"year"`
	Month        int             `json:"month"`
	CreatedAt    time.Time       `json:"created_at"`
}

// IdentityAlias maps one raw spelling to a canonical person. RawName is
// matched case-insensitively after trimming.
type IdentityAlias struct {
	RawName       string `json:"raw_name"`
	CanonicalName string `json:"canonical_name"`
	EmployeeType  string `json:"employee_type"`
}

// Candidate is a parsed row at preview time: permissive (fields may be
// missing), annotated with its fingerprint, duplicate flag and resolved
// identity, and not yet persisted anywhere.
type Candidate struct {
	RawIdentity string          `json:"raw_identity"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Project     string          `json:"project,omitempty"`
	Comments    string          `json:"comments,omitempty"`
	CardName    string          `json:"card_name,omitempty"`
	Vendor      string          `json:"vendor,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	Description string          `json:"description,omitempty"`

	ResolvedIdentity Identity `json:"resolved_identity"`
	Fingerprint      string   `json:"fingerprint"`

	// IsDuplicate is a warning, not a block: duplicate candidates are
	// default-deselected in the UI but remain selectable.
	IsDuplicate bool `json:"is_duplicate"`
}

// RecordPatch is a partial update for a staging record. Nil fields are
// left untouched. Any applied patch unsyncs the record.
type RecordPatch struct {
	RawIdentity *string          `json:"raw_identity,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Date        *time.Time       `json:"date,omitempty"`
	Project     *string          `json:"project,omitempty"`
	Comments    *string          `json:"comments,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p RecordPatch) Empty() bool {
	return p.RawIdentity == nil && p.Category == nil && p.Amount == nil &&
		p.Date == nil && p.Project == nil && p.Comments == nil
}
