// Package memory provides in-memory implementations of the store
// interfaces. They back the test suite and local development; the
// BigQuery implementations in internal/infra/bigquery are the
// production counterparts.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/store"
)

// StagingStore is a thread-safe in-memory store.StagingStore. Records
// and batches are copied on the way in and out so callers cannot mutate
// internal state.
type StagingStore struct {
	mu      sync.Mutex
	records map[domain.Source]map[string]*domain.StagingRecord
	batches map[domain.Source]map[string]*domain.Batch
}

// NewStagingStore creates an empty staging store covering all sources.
func NewStagingStore() *StagingStore {
	s := &StagingStore{
		records: make(map[domain.Source]map[string]*domain.StagingRecord),
		batches: make(map[domain.Source]map[string]*domain.Batch),
	}
	for _, src := range domain.Sources {
		s.records[src] = make(map[string]*domain.StagingRecord)
		s.batches[src] = make(map[string]*domain.Batch)
	}
	return s
}

func (s *StagingStore) InsertBatch(ctx context.Context, batch *domain.Batch, records []*domain.StagingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := *batch
	s.batches[batch.Source][batch.ID] = &b
	for _, rec := range records {
		r := *rec
		s.records[rec.Source][rec.ID] = &r
	}
	return nil
}

func (s *StagingStore) GetRecord(ctx context.Context, source domain.Source, id string) (*domain.StagingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[source][id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "record", ID: id}
	}
	r := *rec
	return &r, nil
}

func (s *StagingStore) ListRecords(ctx context.Context, filter store.RecordFilter) ([]*domain.StagingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.StagingRecord
	for _, rec := range s.records[filter.Source] {
		if !matchesRecord(rec, filter) {
			continue
		}
		r := *rec
		out = append(out, &r)
	}

	// Newest first, stable across calls.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesRecord(rec *domain.StagingRecord, f store.RecordFilter) bool {
	if f.BatchID != "" && rec.BatchID != f.BatchID {
		return false
	}
	if f.Name != "" && rec.CanonicalIdentity.Name != f.Name {
		return false
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	if f.Year != 0 && rec.Date.Year() != f.Year {
		return false
	}
	if !f.From.IsZero() && rec.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && rec.Date.After(f.To) {
		return false
	}
	if f.Unsynced && rec.Synced {
		return false
	}
	return true
}

func (s *StagingStore) UpdateRecord(ctx context.Context, rec *domain.StagingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Source][rec.ID]; !ok {
		return &domain.NotFoundError{Entity: "record", ID: rec.ID}
	}
	r := *rec
	s.records[rec.Source][rec.ID] = &r
	return nil
}

func (s *StagingStore) DeleteRecords(ctx context.Context, source domain.Source, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		delete(s.records[source], id)
	}
	return nil
}

func (s *StagingStore) FingerprintExists(ctx context.Context, source domain.Source, fingerprints []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]bool)
	for _, rec := range s.records[source] {
		staged[rec.Fingerprint] = true
	}

	out := make(map[string]bool, len(fingerprints))
	for _, fp := range fingerprints {
		out[fp] = staged[fp]
	}
	return out, nil
}

func (s *StagingStore) GetBatch(ctx context.Context, source domain.Source, id string) (*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[source][id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "batch", ID: id}
	}
	b := *batch
	return &b, nil
}

func (s *StagingStore) ListBatches(ctx context.Context, source domain.Source) ([]*domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Batch, 0, len(s.batches[source]))
	for _, batch := range s.batches[source] {
		b := *batch
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *StagingStore) DeleteBatch(ctx context.Context, source domain.Source, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[source][id]; !ok {
		return &domain.NotFoundError{Entity: "batch", ID: id}
	}
	delete(s.batches[source], id)
	for rid, rec := range s.records[source] {
		if rec.BatchID == id {
			delete(s.records[source], rid)
		}
	}
	return nil
}

// Compile-time check.
var _ store.StagingStore = (*StagingStore)(nil)
