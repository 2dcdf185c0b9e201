package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/infra/memory"
)

func seededService(t *testing.T) *Service {
	t.Helper()
	ledger := memory.NewLedgerStore()
	ctx := context.Background()

	records := []*domain.ConsolidatedRecord{
		rec("e1", 2026, 1, "Doug Smith", "Employee", "Travel", "100.00", "Uber"),
		rec("e2", 2026, 1, "Doug Smith", "Employee", "Meals", "40.00", ""),
		rec("e3", 2026, 2, "Doug Smith", "Employee", "Travel", "60.00", "Lyft"),
		rec("e4", 2026, 2, "Maria Ivanova", "Contractor", "Travel", "80.00", "Uber"),
		rec("e5", 2025, 11, "Maria Ivanova", "Contractor", "Supplies", "20.00", "Staples"),
	}
	for _, r := range records {
		if err := ledger.Insert(ctx, r); err != nil {
			t.Fatalf("Insert error = %v", err)
		}
	}
	return NewService(ledger)
}

func rec(id string, year, month int, name, empType, category, amount, vendor string) *domain.ConsolidatedRecord {
	return &domain.ConsolidatedRecord{
		ID:           id,
		Name:         name,
		EmployeeType: empType,
		Category:     category,
		Amount:       decimal.RequireFromString(amount),
		Date:         time.Date(year, time.Month(month), 10, 0, 0, 0, 0, time.UTC),
		Vendor:       vendor,
		Source:       "Manual",
		Year:         year,
		Month:        month,
	}
}

func TestSummary(t *testing.T) {
	svc := seededService(t)

	got, err := svc.Summary(context.Background(), 2026)
	if err != nil {
		t.Fatalf("Summary error = %v", err)
	}

	if want := decimal.RequireFromString("280.00"); !got.GrandTotal.Equal(want) {
		t.Errorf("GrandTotal = %s, want %s", got.GrandTotal, want)
	}
	if got.EmployeeCount != 2 {
		t.Errorf("EmployeeCount = %d, want 2", got.EmployeeCount)
	}
	if got.TransactionCount != 4 {
		t.Errorf("TransactionCount = %d, want 4", got.TransactionCount)
	}
	if want := decimal.RequireFromString("240.00"); !got.ByCategory["Travel"].Equal(want) {
		t.Errorf("ByCategory[Travel] = %s, want %s", got.ByCategory["Travel"], want)
	}
	if want := decimal.RequireFromString("40.00"); !got.ByCategory["Meals"].Equal(want) {
		t.Errorf("ByCategory[Meals] = %s, want %s", got.ByCategory["Meals"], want)
	}
	if _, ok := got.ByCategory["Supplies"]; ok {
		t.Errorf("2025 expense leaked into 2026 summary")
	}
}

func TestSummary_AllYears(t *testing.T) {
	svc := seededService(t)

	got, err := svc.Summary(context.Background(), 0)
	if err != nil {
		t.Fatalf("Summary error = %v", err)
	}
	if want := decimal.RequireFromString("300.00"); !got.GrandTotal.Equal(want) {
		t.Errorf("GrandTotal = %s, want %s", got.GrandTotal, want)
	}
	if got.TransactionCount != 5 {
		t.Errorf("TransactionCount = %d, want 5", got.TransactionCount)
	}
}

func TestByEmployee(t *testing.T) {
	svc := seededService(t)

	got, err := svc.ByEmployee(context.Background(), 2026)
	if err != nil {
		t.Fatalf("ByEmployee error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ByEmployee returned %d entries, want 2", len(got))
	}

	// Sorted by name.
	doug, maria := got[0], got[1]
	if doug.Name != "Doug Smith" || maria.Name != "Maria Ivanova" {
		t.Fatalf("order = [%s, %s], want [Doug Smith, Maria Ivanova]", doug.Name, maria.Name)
	}
	if want := decimal.RequireFromString("200.00"); !doug.Total.Equal(want) {
		t.Errorf("Doug total = %s, want %s", doug.Total, want)
	}
	if want := decimal.RequireFromString("160.00"); !doug.Categories["Travel"].Equal(want) {
		t.Errorf("Doug Travel = %s, want %s", doug.Categories["Travel"], want)
	}
	if maria.EmployeeType != "Contractor" {
		t.Errorf("Maria type = %q, want Contractor", maria.EmployeeType)
	}
	if want := decimal.RequireFromString("80.00"); !maria.Total.Equal(want) {
		t.Errorf("Maria total = %s, want %s", maria.Total, want)
	}
}

func TestMonthly(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	got, err := svc.Monthly(ctx, 2026, "")
	if err != nil {
		t.Fatalf("Monthly error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Monthly returned %d months, want 2", len(got))
	}
	if got[0].Month != 1 || got[1].Month != 2 {
		t.Errorf("months = [%d, %d], want [1, 2]", got[0].Month, got[1].Month)
	}
	if want := decimal.RequireFromString("140.00"); !got[0].Total.Equal(want) {
		t.Errorf("January total = %s, want %s", got[0].Total, want)
	}
	if want := decimal.RequireFromString("140.00"); !got[1].Total.Equal(want) {
		t.Errorf("February total = %s, want %s", got[1].Total, want)
	}

	// Name filter narrows to one person.
	maria, err := svc.Monthly(ctx, 2026, "Maria Ivanova")
	if err != nil {
		t.Fatalf("Monthly error = %v", err)
	}
	if len(maria) != 1 || maria[0].Month != 2 {
		t.Fatalf("Monthly(Maria) = %+v, want only February", maria)
	}
	if want := decimal.RequireFromString("80.00"); !maria[0].Total.Equal(want) {
		t.Errorf("Maria February = %s, want %s", maria[0].Total, want)
	}
}

func TestDistinctLists(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	years, err := svc.Years(ctx)
	if err != nil {
		t.Fatalf("Years error = %v", err)
	}
	if len(years) != 2 || years[0] != 2026 || years[1] != 2025 {
		t.Errorf("Years = %v, want [2026 2025]", years)
	}

	names, err := svc.Names(ctx)
	if err != nil {
		t.Fatalf("Names error = %v", err)
	}
	if len(names) != 2 || names[0] != "Doug Smith" || names[1] != "Maria Ivanova" {
		t.Errorf("Names = %v, want sorted pair", names)
	}

	categories, err := svc.Categories(ctx)
	if err != nil {
		t.Fatalf("Categories error = %v", err)
	}
	wantCats := []string{"Meals", "Supplies", "Travel"}
	if len(categories) != len(wantCats) {
		t.Fatalf("Categories = %v, want %v", categories, wantCats)
	}
	for i, c := range wantCats {
		if categories[i] != c {
			t.Errorf("Categories[%d] = %q, want %q", i, categories[i], c)
		}
	}

	// Empty vendors are dropped from the dropdown list.
	vendors, err := svc.Vendors(ctx)
	if err != nil {
		t.Fatalf("Vendors error = %v", err)
	}
	wantVendors := []string{"Lyft", "Staples", "Uber"}
	if len(vendors) != len(wantVendors) {
		t.Fatalf("Vendors = %v, want %v", vendors, wantVendors)
	}
	for i, v := range wantVendors {
		if vendors[i] != v {
			t.Errorf("Vendors[%d] = %q, want %q", i, vendors[i], v)
		}
	}
}
