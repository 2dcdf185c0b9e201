// Package consolidation implements the engine that propagates staging
// records into the consolidated ledger and keeps both stores consistent
// under inserts, edits and deletes.
package consolidation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/valorops/expense-portal/internal/dedup"
	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/events"
	"github.com/valorops/expense-portal/internal/identity"
	"github.com/valorops/expense-portal/internal/store"
)

// Engine owns all writes to the consolidated ledger. Staging stores are
// written only through it so the two stores never diverge: a staging
// delete is always preceded by a compensating ledger delete, and a sync
// always records the produced ledger row id on the staging record.
type Engine struct {
	staging   store.StagingStore
	ledger    store.LedgerStore
	resolver  *identity.Resolver
	policies  map[domain.Source]domain.SyncPolicy
	publisher events.Publisher
	log       zerolog.Logger

	locks *recordLocks
}

// New creates an engine with the default per-source sync policies. Pass
// events.NopPublisher{} when no broker is configured.
func New(staging store.StagingStore, ledger store.LedgerStore, resolver *identity.Resolver, publisher events.Publisher, log zerolog.Logger) *Engine {
	return &Engine{
		staging:   staging,
		ledger:    ledger,
		resolver:  resolver,
		policies:  domain.DefaultPolicies(),
		publisher: publisher,
		log:       log,
		locks:     newRecordLocks(),
	}
}

// SetPolicy overrides the sync policy for one source. Adding a new
// source means declaring its policy here, not touching engine control
// flow.
func (e *Engine) SetPolicy(source domain.Source, policy domain.SyncPolicy) {
	e.policies[source] = policy
}

// Policy returns the sync policy for a source.
func (e *Engine) Policy(source domain.Source) domain.SyncPolicy {
	if p, ok := e.policies[source]; ok {
		return p
	}
	return domain.PolicyPullOnDemand
}

// CreateBatch validates and persists candidates as one atomic batch.
// Validation is strict here even though preview is permissive: any
// record missing identity, category, amount or date fails the whole
// call with a ValidationError. When the source's policy is
// push-on-write the members are synced before returning.
func (e *Engine) CreateBatch(ctx context.Context, source domain.Source, candidates []domain.Candidate) (*domain.Batch, *domain.SyncResult, error) {
	if len(candidates) == 0 {
		return nil, nil, domain.ErrEmptyBatch
	}

	for i, c := range candidates {
		if err := validateCandidate(i, c); err != nil {
			return nil, nil, err
		}
	}

	batchID := uuid.New().String()
	now := time.Now().UTC()

	records := make([]*domain.StagingRecord, 0, len(candidates))
	total := decimal.Zero
	employees := make(map[string]bool)

	for _, c := range candidates {
		resolved, err := e.resolver.Resolve(ctx, c.RawIdentity)
		if err != nil {
			return nil, nil, fmt.Errorf("create batch: %w", err)
		}

		fp := c.Fingerprint
		if fp == "" {
			fp = dedup.Fingerprint(source, c)
		}

		rec := &domain.StagingRecord{
			ID:                uuid.New().String(),
			Source:            source,
			BatchID:           batchID,
			RawIdentity:       c.RawIdentity,
			CanonicalIdentity: resolved,
			Category:          strings.TrimSpace(c.Category),
			Amount:            c.Amount,
			Date:              c.Date,
			Project:           c.Project,
			Comments:          c.Comments,
			CardName:          c.CardName,
			Vendor:            c.Vendor,
			Currency:          c.Currency,
			Description:       c.Description,
			Fingerprint:       fp,
			CreatedAt:         now,
		}
		records = append(records, rec)
		total = total.Add(c.Amount)
		employees[resolved.Name] = true
	}

	batch := &domain.Batch{
		ID:            batchID,
		Source:        source,
		CreatedAt:     now,
		RecordCount:   len(records),
		EmployeeCount: len(employees),
		TotalAmount:   total,
	}

	if err := e.staging.InsertBatch(ctx, batch, records); err != nil {
		return nil, nil, fmt.Errorf("create batch: insert: %w", err)
	}

	if e.Policy(source) != domain.PolicyPushOnWrite {
		return batch, nil, nil
	}

	result := e.Sync(ctx, records)
	e.publish(ctx, events.LedgerEvent{
		Type:       events.TypeSynced,
		Source:     source,
		BatchID:    batchID,
		Records:    result.Created + result.Updated,
		Amount:     total,
		OccurredAt: time.Now().UTC(),
	})
	return batch, &result, nil
}

// Sync propagates records into the ledger in input order. A record with
// an empty category or unresolved canonical identity is skipped and
// reported in Errors; the call never fails wholesale. Records with a
// consolidated ref are updated in place, the rest get a fresh ledger
// row whose id is stored back on the staging record. Each record is
// re-read under its per-record lock before writing, so the input slice
// may be a stale snapshot; deleted records are skipped. Calling Sync
// twice on unchanged, already-synced input is a no-op in effect.
func (e *Engine) Sync(ctx context.Context, records []*domain.StagingRecord) domain.SyncResult {
	var result domain.SyncResult

	for _, rec := range records {
		unlock := e.locks.lock(rec.ID)
		err := e.syncOne(ctx, rec, &result)
		unlock()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", rec.ID, err))
		}
	}
	return result
}

func (e *Engine) syncOne(ctx context.Context, rec *domain.StagingRecord, result *domain.SyncResult) error {
	// The caller's slice was snapshotted before the lock was taken.
	// Re-read under the lock so the write reflects any edit or delete
	// that committed in between.
	rec, err := e.staging.GetRecord(ctx, rec.Source, rec.ID)
	if domain.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh record: %w", err)
	}

	if strings.TrimSpace(rec.Category) == "" {
		return fmt.Errorf("empty category")
	}
	if strings.TrimSpace(rec.CanonicalIdentity.Name) == "" {
		return fmt.Errorf("empty identity")
	}

	if rec.ConsolidatedRef != "" {
		ledgerRec := consolidatedFrom(rec, rec.ConsolidatedRef)
		err := e.ledger.Update(ctx, ledgerRec)
		if domain.IsNotFound(err) {
			// The ledger row vanished under us (concurrent delete).
			// Re-inserting under the same ref keeps the invariant.
			err = e.ledger.Insert(ctx, ledgerRec)
			if err == nil {
				result.Created++
			}
		} else if err == nil {
			result.Updated++
		}
		if err != nil {
			return fmt.Errorf("update ledger: %w", err)
		}
	} else {
		ref := uuid.New().String()
		if err := e.ledger.Insert(ctx, consolidatedFrom(rec, ref)); err != nil {
			return fmt.Errorf("insert ledger: %w", err)
		}
		rec.ConsolidatedRef = ref
		result.Created++
	}

	if !rec.Synced {
		rec.Synced = true
		if err := e.staging.UpdateRecord(ctx, rec); err != nil {
			return fmt.Errorf("mark synced: %w", err)
		}
	}
	return nil
}

// SyncSource is the pull-on-demand trigger: it syncs every unsynced
// record of one source.
func (e *Engine) SyncSource(ctx context.Context, source domain.Source) (domain.SyncResult, error) {
	records, err := e.staging.ListRecords(ctx, store.RecordFilter{Source: source, Unsynced: true})
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("sync %s: list unsynced: %w", source, err)
	}

	result := e.Sync(ctx, records)
	if result.Created > 0 || result.Updated > 0 {
		e.publish(ctx, events.LedgerEvent{
			Type:       events.TypeSynced,
			Source:     source,
			Records:    result.Created + result.Updated,
			OccurredAt: time.Now().UTC(),
		})
	}
	return result, nil
}

// EditRecord applies a partial update. The record is unsynced
// unconditionally; the engine does not guess whether the edit changed
// the synced value. The consolidated ref is kept so the next sync
// updates the same ledger row instead of duplicating it. A raw identity
// change triggers re-resolution.
func (e *Engine) EditRecord(ctx context.Context, source domain.Source, id string, patch domain.RecordPatch) (*domain.StagingRecord, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	rec, err := e.staging.GetRecord(ctx, source, id)
	if err != nil {
		return nil, err
	}

	if patch.RawIdentity != nil && *patch.RawIdentity != rec.RawIdentity {
		rec.RawIdentity = *patch.RawIdentity
		resolved, err := e.resolver.Resolve(ctx, rec.RawIdentity)
		if err != nil {
			return nil, fmt.Errorf("edit record: resolve identity: %w", err)
		}
		rec.CanonicalIdentity = resolved
	}
	if patch.Category != nil {
		rec.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Amount != nil {
		rec.Amount = *patch.Amount
	}
	if patch.Date != nil {
		rec.Date = *patch.Date
	}
	if patch.Project != nil {
		rec.Project = *patch.Project
	}
	if patch.Comments != nil {
		rec.Comments = *patch.Comments
	}

	rec.Synced = false
	if err := e.staging.UpdateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("edit record: %w", err)
	}
	return rec, nil
}

// Undo compensates prior syncs by deleting the exact ledger rows the
// records reference. Deleting by reference rather than recomputing
// aggregates keeps deletes O(records) and avoids double-counting when
// several staging records share an identity/category/month. A ref that
// is already gone is logged and treated as already undone.
func (e *Engine) Undo(ctx context.Context, records []*domain.StagingRecord) domain.UndoResult {
	result := domain.UndoResult{AmountReversed: decimal.Zero}

	for _, rec := range records {
		if rec.ConsolidatedRef == "" {
			continue
		}

		ledgerRec, err := e.ledger.Get(ctx, rec.ConsolidatedRef)
		if domain.IsNotFound(err) {
			e.log.Debug().Str("record_id", rec.ID).Str("ref", rec.ConsolidatedRef).
				Msg("undo: ledger row already gone")
			continue
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", rec.ID, err))
			continue
		}

		existed, err := e.ledger.Delete(ctx, rec.ConsolidatedRef)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", rec.ID, err))
			continue
		}
		if existed {
			result.Removed++
			result.AmountReversed = result.AmountReversed.Add(ledgerRec.Amount)
		}
	}
	return result
}

// DeleteRecord removes one staging record. The undo runs first so the
// ledger never holds a dangling reference; only then does the staging
// delete commit.
func (e *Engine) DeleteRecord(ctx context.Context, source domain.Source, id string) (*domain.DeleteResult, error) {
	unlock := e.locks.lock(id)
	defer unlock()

	rec, err := e.staging.GetRecord(ctx, source, id)
	if err != nil {
		return nil, err
	}

	undo := e.Undo(ctx, []*domain.StagingRecord{rec})
	if len(undo.Errors) > 0 {
		return nil, fmt.Errorf("delete record %s: undo failed: %s", id, strings.Join(undo.Errors, "; "))
	}

	if err := e.staging.DeleteRecords(ctx, source, []string{id}); err != nil {
		return nil, fmt.Errorf("delete record %s: %w", id, err)
	}

	e.publish(ctx, events.LedgerEvent{
		Type:       events.TypeUndone,
		Source:     source,
		Records:    1,
		Amount:     undo.AmountReversed,
		OccurredAt: time.Now().UTC(),
	})

	return &domain.DeleteResult{DeletedCount: 1, AmountRemoved: rec.Amount, Undo: undo}, nil
}

// DeleteBatch undoes every member record, then removes the batch and
// its staging rows as one unit. A failed undo aborts the call before
// the staging delete, matching DeleteRecord. AmountRemoved is the sum
// of the current member amounts, which equals the batch's cached total
// when nothing was edited after creation.
func (e *Engine) DeleteBatch(ctx context.Context, source domain.Source, batchID string) (*domain.DeleteResult, error) {
	batch, err := e.staging.GetBatch(ctx, source, batchID)
	if err != nil {
		return nil, err
	}

	records, err := e.staging.ListRecords(ctx, store.RecordFilter{Source: source, BatchID: batchID})
	if err != nil {
		return nil, fmt.Errorf("delete batch %s: list members: %w", batchID, err)
	}

	unlock := e.lockAll(records)
	defer unlock()

	// Members can change between the listing and the lock acquisition;
	// re-read so the undo and the reported amounts use current state.
	records, err = e.staging.ListRecords(ctx, store.RecordFilter{Source: source, BatchID: batchID})
	if err != nil {
		return nil, fmt.Errorf("delete batch %s: list members: %w", batchID, err)
	}

	undo := e.Undo(ctx, records)
	if len(undo.Errors) > 0 {
		return nil, fmt.Errorf("delete batch %s: undo failed: %s", batchID, strings.Join(undo.Errors, "; "))
	}

	total := decimal.Zero
	for _, rec := range records {
		total = total.Add(rec.Amount)
	}

	if err := e.staging.DeleteBatch(ctx, source, batchID); err != nil {
		return nil, fmt.Errorf("delete batch %s: %w", batchID, err)
	}

	e.publish(ctx, events.LedgerEvent{
		Type:       events.TypeUndone,
		Source:     source,
		BatchID:    batch.ID,
		Records:    len(records),
		Amount:     undo.AmountReversed,
		OccurredAt: time.Now().UTC(),
	})

	return &domain.DeleteResult{DeletedCount: len(records), AmountRemoved: total, Undo: undo}, nil
}

// lockAll acquires every member lock in sorted id order to avoid
// deadlock against concurrent per-record operations.
func (e *Engine) lockAll(records []*domain.StagingRecord) func() {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	sort.Strings(ids)

	unlocks := make([]func(), 0, len(ids))
	for _, id := range ids {
		unlocks = append(unlocks, e.locks.lock(id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

func (e *Engine) publish(ctx context.Context, event events.LedgerEvent) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.log.Warn().Err(err).Str("type", string(event.Type)).Msg("publish ledger event")
	}
}

// validateCandidate enforces commit-time strictness: preview tolerates
// missing fields, CreateBatch does not.
func validateCandidate(i int, c domain.Candidate) error {
	if strings.TrimSpace(c.RawIdentity) == "" {
		return &domain.ValidationError{Index: i, Field: "identity", Reason: "required"}
	}
	if strings.TrimSpace(c.Category) == "" {
		return &domain.ValidationError{Index: i, Field: "category", Reason: "required"}
	}
	if c.Amount.IsZero() {
		return &domain.ValidationError{Index: i, Field: "amount", Reason: "required"}
	}
	if c.Date.IsZero() {
		return &domain.ValidationError{Index: i, Field: "date", Reason: "required"}
	}
	return nil
}

// consolidatedFrom maps a staging record to its ledger row. Year and
// month are derived from the date; the source label carries the card
// name for credit card rows ("Credit Card - Amex").
func consolidatedFrom(rec *domain.StagingRecord, ref string) *domain.ConsolidatedRecord {
	return &domain.ConsolidatedRecord{
		ID:           ref,
		Name:         rec.CanonicalIdentity.Name,
		EmployeeType: rec.CanonicalIdentity.EmployeeType,
		Category:     rec.Category,
		Amount:       rec.Amount,
		Date:         rec.Date,
		Vendor:       rec.Vendor,
		Project:      rec.Project,
		Source:       ledgerSource(rec),
		Year:         rec.Date.Year(),
		Month:        int(rec.Date.Month()),
		CreatedAt:    time.Now().UTC(),
	}
}

func ledgerSource(rec *domain.StagingRecord) string {
	if rec.Source == domain.SourceCreditCard && rec.CardName != "" {
		return rec.Source.Label() + " - " + rec.CardName
	}
	return rec.Source.Label()
}
