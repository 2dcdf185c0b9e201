package notionsync

import (
	"context"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/infra/memory"
)

// fakeNotion is an in-memory NotionService.
type fakeNotion struct {
	pages   []notionapi.Page
	created []notionapi.Properties
	deleted []string
}

func pageWithExpenseID(pageID, expenseID string) notionapi.Page {
	props := notionapi.Properties{}
	if expenseID != "" {
		props["Expense ID"] = &notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{PlainText: expenseID}},
		}
	}
	return notionapi.Page{ID: notionapi.ObjectID(pageID), Properties: props}
}

func (f *fakeNotion) CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error) {
	f.created = append(f.created, properties)
	return &notionapi.Page{ID: notionapi.ObjectID("created")}, nil
}

func (f *fakeNotion) UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error) {
	return &notionapi.Page{ID: notionapi.ObjectID(pageID)}, nil
}

func (f *fakeNotion) QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return &notionapi.DatabaseQueryResponse{Results: f.pages, HasMore: false}, nil
}

func (f *fakeNotion) DeletePage(ctx context.Context, pageID string) error {
	f.deleted = append(f.deleted, pageID)
	return nil
}

func seededLedger(t *testing.T, ids ...string) *memory.LedgerStore {
	t.Helper()
	ledger := memory.NewLedgerStore()
	for _, id := range ids {
		err := ledger.Insert(context.Background(), &domain.ConsolidatedRecord{
			ID:       id,
			Name:     "Doug Smith",
			Category: "Travel",
			Amount:   decimal.RequireFromString("10.00"),
			Date:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Source:   "Manual",
			Year:     2026,
			Month:    3,
		})
		if err != nil {
			t.Fatalf("Insert error = %v", err)
		}
	}
	return ledger
}

func TestSyncExpenses_CreatesMissingPages(t *testing.T) {
	ledger := seededLedger(t, "e1", "e2")
	notion := &fakeNotion{}

	result, err := SyncExpenses(context.Background(), ledger, notion, "db", 2026, false)
	if err != nil {
		t.Fatalf("SyncExpenses error = %v", err)
	}

	if result.Created != 2 || result.Skipped != 0 || result.Deleted != 0 || result.Total != 2 {
		t.Errorf("result = %+v, want {Created:2 Total:2}", result)
	}
	if len(notion.created) != 2 {
		t.Errorf("created %d pages, want 2", len(notion.created))
	}
}

func TestSyncExpenses_SkipsExistingPages(t *testing.T) {
	ledger := seededLedger(t, "e1", "e2")
	notion := &fakeNotion{pages: []notionapi.Page{pageWithExpenseID("p1", "e1")}}

	result, err := SyncExpenses(context.Background(), ledger, notion, "db", 2026, false)
	if err != nil {
		t.Fatalf("SyncExpenses error = %v", err)
	}

	if result.Created != 1 || result.Skipped != 1 || result.Deleted != 0 {
		t.Errorf("result = %+v, want {Created:1 Skipped:1}", result)
	}
	if len(notion.deleted) != 0 {
		t.Errorf("deleted pages %v, want none", notion.deleted)
	}
}

func TestSyncExpenses_ArchivesStalePages(t *testing.T) {
	ledger := seededLedger(t, "e1")
	notion := &fakeNotion{pages: []notionapi.Page{
		pageWithExpenseID("p1", "e1"),
		pageWithExpenseID("p2", "gone"), // ledger row deleted since last sync
		pageWithExpenseID("p3", ""),     // pre-idempotency page without an id
	}}

	result, err := SyncExpenses(context.Background(), ledger, notion, "db", 2026, false)
	if err != nil {
		t.Fatalf("SyncExpenses error = %v", err)
	}

	if result.Created != 0 || result.Skipped != 1 || result.Deleted != 2 {
		t.Errorf("result = %+v, want {Skipped:1 Deleted:2}", result)
	}
	if len(notion.deleted) != 2 {
		t.Fatalf("deleted pages = %v, want [p2 p3]", notion.deleted)
	}
	for _, id := range notion.deleted {
		if id == "p1" {
			t.Errorf("live page p1 was archived")
		}
	}
}

func TestSyncExpenses_DryRunTouchesNothing(t *testing.T) {
	ledger := seededLedger(t, "e1", "e2")
	notion := &fakeNotion{pages: []notionapi.Page{pageWithExpenseID("p1", "stale")}}

	result, err := SyncExpenses(context.Background(), ledger, notion, "db", 2026, true)
	if err != nil {
		t.Fatalf("SyncExpenses error = %v", err)
	}

	// Counts report what would happen; the fake saw no writes.
	if result.Created != 2 || result.Deleted != 1 {
		t.Errorf("result = %+v, want {Created:2 Deleted:1}", result)
	}
	if len(notion.created) != 0 || len(notion.deleted) != 0 {
		t.Errorf("dry run performed writes: created=%d deleted=%d", len(notion.created), len(notion.deleted))
	}
}

func TestExpenseToNotionProperties(t *testing.T) {
	rec := &domain.ConsolidatedRecord{
		ID:           "e1",
		Name:         "Doug Smith",
		EmployeeType: "Employee",
		Category:     "Travel",
		Amount:       decimal.RequireFromString("12.34"),
		Date:         time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Vendor:       "Uber",
		Source:       "Credit Card - Amex",
	}

	props := ExpenseToNotionProperties(rec)

	title, ok := props["Name"].(notionapi.TitleProperty)
	if !ok || len(title.Title) != 1 || title.Title[0].Text.Content != "Doug Smith" {
		t.Errorf("Name property = %+v, want title Doug Smith", props["Name"])
	}
	idProp, ok := props["Expense ID"].(notionapi.RichTextProperty)
	if !ok || len(idProp.RichText) != 1 || idProp.RichText[0].Text.Content != "e1" {
		t.Errorf("Expense ID property = %+v, want e1", props["Expense ID"])
	}
	amount, ok := props["Amount"].(notionapi.NumberProperty)
	if !ok || amount.Number != 12.34 {
		t.Errorf("Amount property = %+v, want 12.34", props["Amount"])
	}
	source, ok := props["Source"].(notionapi.SelectProperty)
	if !ok || source.Select.Name != "Credit Card - Amex" {
		t.Errorf("Source property = %+v, want select", props["Source"])
	}
	if _, ok := props["Project"]; ok {
		t.Errorf("empty Project produced a property")
	}
	if _, ok := props["Date"]; !ok {
		t.Errorf("Date property missing")
	}
}

func TestExtractExpenseID(t *testing.T) {
	tests := []struct {
		name string
		page notionapi.Page
		want string
	}{
		{"page with id", pageWithExpenseID("p1", "e42"), "e42"},
		{"page without property", notionapi.Page{Properties: notionapi.Properties{}}, ""},
		{"empty rich text", notionapi.Page{Properties: notionapi.Properties{
			"Expense ID": &notionapi.RichTextProperty{},
		}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractExpenseID(tt.page); got != tt.want {
				t.Errorf("extractExpenseID() = %q, want %q", got, tt.want)
			}
		})
	}
}
