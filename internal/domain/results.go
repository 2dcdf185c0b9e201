package domain

import "github.com/shopspring/decimal"

// SyncResult reports the outcome of propagating staging records into the
// consolidated ledger. The call never fails wholesale: records that
// cannot be synced are skipped and recorded in Errors.
type SyncResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors,omitempty"`
}

// Merge folds another result into this one.
func (r *SyncResult) Merge(other SyncResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Errors = append(r.Errors, other.Errors...)
}

// UndoResult reports a compensating removal of prior syncs. A ledger row
// that is already gone is treated as already undone and counts toward
// neither Removed nor AmountReversed.
type UndoResult struct {
	Removed        int             `json:"removed"`
	AmountReversed decimal.Decimal `json:"amount_reversed"`
	Errors         []string        `json:"errors,omitempty"`
}

// DeleteResult reports a record or batch removal. AmountRemoved equals
// the batch's cached total when no member was edited after creation,
// and the sum of current member amounts otherwise.
type DeleteResult struct {
	DeletedCount  int             `json:"deleted_count"`
	AmountRemoved decimal.Decimal `json:"amount_removed"`
	Undo          UndoResult      `json:"undo"`
}

// ConfirmResult is returned by the confirm endpoint: the created batch
// plus the sync outcome when the source's policy is push-on-write.
type ConfirmResult struct {
	BatchID    string      `json:"batch_id"`
	Inserted   int         `json:"inserted"`
	Duplicates int         `json:"duplicates"`
	SyncResult *SyncResult `json:"sync_result,omitempty"`
}
