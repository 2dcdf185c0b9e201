package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/store"
)

// LedgerStore is a thread-safe in-memory store.LedgerStore.
type LedgerStore struct {
	mu      sync.Mutex
	records map[string]*domain.ConsolidatedRecord
}

// NewLedgerStore creates an empty ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{records: make(map[string]*domain.ConsolidatedRecord)}
}

func (s *LedgerStore) Insert(ctx context.Context, rec *domain.ConsolidatedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := *rec
	s.records[rec.ID] = &r
	return nil
}

func (s *LedgerStore) Update(ctx context.Context, rec *domain.ConsolidatedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return &domain.NotFoundError{Entity: "expense", ID: rec.ID}
	}
	r := *rec
	s.records[rec.ID] = &r
	return nil
}

func (s *LedgerStore) Get(ctx context.Context, id string) (*domain.ConsolidatedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "expense", ID: id}
	}
	r := *rec
	return &r, nil
}

func (s *LedgerStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.records[id]
	delete(s.records, id)
	return ok, nil
}

func (s *LedgerStore) List(ctx context.Context, filter store.ExpenseFilter) ([]*domain.ConsolidatedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.ConsolidatedRecord
	for _, rec := range s.records {
		if !matchesExpense(rec, filter) {
			continue
		}
		r := *rec
		out = append(out, &r)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesExpense(rec *domain.ConsolidatedRecord, f store.ExpenseFilter) bool {
	if f.Year != 0 && rec.Year != f.Year {
		return false
	}
	if f.Month != 0 && rec.Month != f.Month {
		return false
	}
	if f.Name != "" && rec.Name != f.Name {
		return false
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	if f.Source != "" && rec.Source != f.Source {
		return false
	}
	if !f.From.IsZero() && rec.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && rec.Date.After(f.To) {
		return false
	}
	return true
}

func (s *LedgerStore) Years(ctx context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[int]bool)
	for _, rec := range s.records {
		if rec.Year != 0 {
			seen[rec.Year] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

var _ store.LedgerStore = (*LedgerStore)(nil)
