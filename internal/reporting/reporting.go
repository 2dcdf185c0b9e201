// Package reporting assembles the aggregate views the UI reads:
// summaries, per-employee and monthly breakdowns, and the distinct
// value lists that feed filter dropdowns. All aggregation happens at
// query time over the consolidated ledger; ledger rows are 1:1 with
// staging records, so nothing here is ever recomputed on write.
package reporting

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/store"
)

// Summary is the portal landing view for one year.
type Summary struct {
	GrandTotal       decimal.Decimal            `json:"grand_total"`
	EmployeeCount    int                        `json:"employee_count"`
	TransactionCount int                        `json:"transaction_count"`
	ByCategory       map[string]decimal.Decimal `json:"by_category"`
}

// EmployeeBreakdown is one employee's total split by category.
type EmployeeBreakdown struct {
	Name         string                     `json:"employee_name"`
	EmployeeType string                     `json:"employee_type,omitempty"`
	Total        decimal.Decimal            `json:"total"`
	Categories   map[string]decimal.Decimal `json:"categories"`
}

// MonthBreakdown is one month's total split by category.
type MonthBreakdown struct {
	Month      int                        `json:"month"`
	Total      decimal.Decimal            `json:"total"`
	Categories map[string]decimal.Decimal `json:"categories"`
}

// Service computes reports over the consolidated ledger.
type Service struct {
	ledger store.LedgerStore
}

// NewService creates a reporting service.
func NewService(ledger store.LedgerStore) *Service {
	return &Service{ledger: ledger}
}

// Summary aggregates grand total, distinct employee count, transaction
// count and per-category totals. year==0 covers all years.
func (s *Service) Summary(ctx context.Context, year int) (*Summary, error) {
	records, err := s.ledger.List(ctx, store.ExpenseFilter{Year: year})
	if err != nil {
		return nil, fmt.Errorf("reporting: summary: %w", err)
	}

	out := &Summary{
		GrandTotal: decimal.Zero,
		ByCategory: make(map[string]decimal.Decimal),
	}
	employees := make(map[string]bool)

	for _, rec := range records {
		out.GrandTotal = out.GrandTotal.Add(rec.Amount)
		out.TransactionCount++
		employees[rec.Name] = true
		out.ByCategory[rec.Category] = out.ByCategory[rec.Category].Add(rec.Amount)
	}
	out.EmployeeCount = len(employees)
	return out, nil
}

// ByEmployee aggregates per employee and category, sorted by name.
func (s *Service) ByEmployee(ctx context.Context, year int) ([]EmployeeBreakdown, error) {
	records, err := s.ledger.List(ctx, store.ExpenseFilter{Year: year})
	if err != nil {
		return nil, fmt.Errorf("reporting: by employee: %w", err)
	}

	byName := make(map[string]*EmployeeBreakdown)
	for _, rec := range records {
		bd, ok := byName[rec.Name]
		if !ok {
			bd = &EmployeeBreakdown{
				Name:         rec.Name,
				EmployeeType: rec.EmployeeType,
				Total:        decimal.Zero,
				Categories:   make(map[string]decimal.Decimal),
			}
			byName[rec.Name] = bd
		}
		bd.Total = bd.Total.Add(rec.Amount)
		bd.Categories[rec.Category] = bd.Categories[rec.Category].Add(rec.Amount)
	}

	out := make([]EmployeeBreakdown, 0, len(byName))
	for _, bd := range byName {
		out = append(out, *bd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Monthly breaks one year down by month and category. name is optional.
func (s *Service) Monthly(ctx context.Context, year int, name string) ([]MonthBreakdown, error) {
	records, err := s.ledger.List(ctx, store.ExpenseFilter{Year: year, Name: name})
	if err != nil {
		return nil, fmt.Errorf("reporting: monthly: %w", err)
	}

	byMonth := make(map[int]*MonthBreakdown)
	for _, rec := range records {
		mb, ok := byMonth[rec.Month]
		if !ok {
			mb = &MonthBreakdown{Month: rec.Month, Total: decimal.Zero, Categories: make(map[string]decimal.Decimal)}
			byMonth[rec.Month] = mb
		}
		mb.Total = mb.Total.Add(rec.Amount)
		mb.Categories[rec.Category] = mb.Categories[rec.Category].Add(rec.Amount)
	}

	out := make([]MonthBreakdown, 0, len(byMonth))
	for _, mb := range byMonth {
		out = append(out, *mb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// Distinct lists for the filter dropdowns.

func (s *Service) Years(ctx context.Context) ([]int, error) {
	return s.ledger.Years(ctx)
}

func (s *Service) Names(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, func(r *domain.ConsolidatedRecord) string { return r.Name })
}

func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, func(r *domain.ConsolidatedRecord) string { return r.Category })
}

func (s *Service) Vendors(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, func(r *domain.ConsolidatedRecord) string { return r.Vendor })
}

func (s *Service) distinct(ctx context.Context, key func(*domain.ConsolidatedRecord) string) ([]string, error) {
	records, err := s.ledger.List(ctx, store.ExpenseFilter{})
	if err != nil {
		return nil, fmt.Errorf("reporting: distinct values: %w", err)
	}

	seen := make(map[string]bool)
	for _, rec := range records {
		if v := key(rec); v != "" {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
