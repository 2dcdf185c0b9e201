package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/valorops/expense-portal/internal/consolidation"
	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/events"
	"github.com/valorops/expense-portal/internal/identity"
	"github.com/valorops/expense-portal/internal/infra/memory"
	"github.com/valorops/expense-portal/internal/logger"
	"github.com/valorops/expense-portal/internal/preview"
	"github.com/valorops/expense-portal/internal/store"
)

func newSourcesHandler(t *testing.T) (*SourcesHandler, *memory.StagingStore, *memory.LedgerStore) {
	t.Helper()
	staging := memory.NewStagingStore()
	ledger := memory.NewLedgerStore()
	aliases := memory.NewAliasStore(
		domain.IdentityAlias{RawName: "dsmith", CanonicalName: "Doug Smith", EmployeeType: "Employee"},
	)
	resolver := identity.NewResolver(aliases)
	log := logger.NewWithWriter(io.Discard)
	engine := consolidation.New(staging, ledger, resolver, events.NopPublisher{}, log)
	previewSvc := preview.NewService(staging, resolver)
	return NewSourcesHandler(engine, previewSvc, staging, log), staging, ledger
}

const sampleBody = `{"records": [
	{"raw_identity": "dsmith", "category": "Travel", "amount": "19.90", "date": "2026-04-10", "description": "UBER TRIP"},
	{"raw_identity": "Unknown", "category": "Meals", "amount": "8.50", "date": "2026-04-11"}
]}`

func TestPreview(t *testing.T) {
	h, _, _ := newSourcesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/credit_card/preview", strings.NewReader(sampleBody))
	w := httptest.NewRecorder()
	h.Preview(w, req, domain.SourceCreditCard)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body)
	}

	var resp struct {
		Records []domain.Candidate `json:"records"`
		Summary preview.Summary    `json:"summary"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Summary.Total != 2 || resp.Summary.New != 2 {
		t.Errorf("summary = %+v, want {Total:2 New:2}", resp.Summary)
	}
	if resp.Records[0].ResolvedIdentity.Name != "Doug Smith" {
		t.Errorf("resolved identity = %q, want Doug Smith", resp.Records[0].ResolvedIdentity.Name)
	}
	if resp.Records[1].ResolvedIdentity.Matched {
		t.Errorf("unknown identity reported as matched")
	}
}

func TestPreview_BadDate(t *testing.T) {
	h, _, _ := newSourcesHandler(t)

	body := `{"records": [{"raw_identity": "dsmith", "amount": "1.00", "date": "04/10/2026"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/credit_card/preview", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Preview(w, req, domain.SourceCreditCard)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestConfirm_CreatesBatch(t *testing.T) {
	h, staging, _ := newSourcesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/credit_card/confirm", strings.NewReader(sampleBody))
	w := httptest.NewRecorder()
	h.Confirm(w, req, domain.SourceCreditCard)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", w.Code, w.Body)
	}

	var result domain.ConfirmResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Inserted != 2 || result.Duplicates != 0 {
		t.Errorf("result = %+v, want {Inserted:2 Duplicates:0}", result)
	}
	// Credit card is pull-on-demand, so confirm does not sync.
	if result.SyncResult != nil {
		t.Errorf("confirm synced a pull-on-demand source: %+v", result.SyncResult)
	}

	records, err := staging.ListRecords(req.Context(), store.RecordFilter{Source: domain.SourceCreditCard, BatchID: result.BatchID})
	if err != nil {
		t.Fatalf("ListRecords error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("staged %d records, want 2", len(records))
	}
}

func TestConfirm_ReportsDuplicates(t *testing.T) {
	h, _, _ := newSourcesHandler(t)

	first := httptest.NewRequest(http.MethodPost, "/api/credit_card/confirm", strings.NewReader(sampleBody))
	h.Confirm(httptest.NewRecorder(), first, domain.SourceCreditCard)

	second := httptest.NewRequest(http.MethodPost, "/api/credit_card/confirm", strings.NewReader(sampleBody))
	w := httptest.NewRecorder()
	h.Confirm(w, second, domain.SourceCreditCard)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", w.Code, w.Body)
	}
	var result domain.ConfirmResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Duplicates != 2 {
		t.Errorf("Duplicates = %d, want 2 on re-confirm of identical rows", result.Duplicates)
	}
}

func TestConfirm_ValidationFailure(t *testing.T) {
	h, _, _ := newSourcesHandler(t)

	body := `{"records": [{"raw_identity": "dsmith", "amount": "1.00", "date": "2026-04-10"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/manual/confirm", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.Confirm(w, req, domain.SourceManual)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing category", w.Code)
	}
}

func TestConfirm_EmptyBatch(t *testing.T) {
	h, _, _ := newSourcesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/manual/confirm", strings.NewReader(`{"records": []}`))
	w := httptest.NewRecorder()
	h.Confirm(w, req, domain.SourceManual)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for empty batch", w.Code)
	}
}

func TestPatchRecord(t *testing.T) {
	h, staging, _ := newSourcesHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/credit_card/confirm", strings.NewReader(sampleBody))
	h.Confirm(httptest.NewRecorder(), req, domain.SourceCreditCard)

	records, err := staging.ListRecords(req.Context(), store.RecordFilter{Source: domain.SourceCreditCard})
	if err != nil {
		t.Fatalf("ListRecords error = %v", err)
	}
	id := records[0].ID

	patch := httptest.NewRequest(http.MethodPatch, "/api/credit_card/records/"+id,
		strings.NewReader(`{"category": "Transport"}`))
	w := httptest.NewRecorder()
	h.PatchRecord(w, patch, domain.SourceCreditCard, id)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body)
	}
	var rec domain.StagingRecord
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rec.Category != "Transport" {
		t.Errorf("category = %q, want Transport", rec.Category)
	}
}

func TestPatchRecord_EmptyPatch(t *testing.T) {
	h, _, _ := newSourcesHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/credit_card/records/x", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.PatchRecord(w, req, domain.SourceCreditCard, "x")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for empty patch", w.Code)
	}
}

func TestPatchRecord_NotFound(t *testing.T) {
	h, _, _ := newSourcesHandler(t)

	req := httptest.NewRequest(http.MethodPatch, "/api/credit_card/records/missing",
		strings.NewReader(`{"category": "Travel"}`))
	w := httptest.NewRecorder()
	h.PatchRecord(w, req, domain.SourceCreditCard, "missing")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDeleteBatch_SyncedBatchReversesLedger(t *testing.T) {
	h, staging, ledger := newSourcesHandler(t)

	// Payroll is push-on-write, so confirm populates the ledger.
	body := `{"records": [{"raw_identity": "dsmith", "category": "Supplies", "amount": "25.00", "date": "2026-04-10", "vendor": "Staples"}]}`
	confirm := httptest.NewRequest(http.MethodPost, "/api/payroll/confirm", strings.NewReader(body))
	cw := httptest.NewRecorder()
	h.Confirm(cw, confirm, domain.SourcePayroll)

	var created domain.ConfirmResult
	if err := json.NewDecoder(cw.Body).Decode(&created); err != nil {
		t.Fatalf("decode confirm response: %v", err)
	}
	if created.SyncResult == nil || created.SyncResult.Created != 1 {
		t.Fatalf("confirm sync result = %+v, want one created row", created.SyncResult)
	}

	del := httptest.NewRequest(http.MethodDelete, "/api/payroll/batches/"+created.BatchID, nil)
	w := httptest.NewRecorder()
	h.DeleteBatch(w, del, domain.SourcePayroll, created.BatchID)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body)
	}
	var result domain.DeleteResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.DeletedCount != 1 || result.Undo.Removed != 1 {
		t.Errorf("result = %+v, want one record and one ledger row removed", result)
	}

	rows, err := ledger.List(del.Context(), store.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ledger.List error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("ledger has %d rows after batch delete, want 0", len(rows))
	}
	if _, err := staging.GetBatch(del.Context(), domain.SourcePayroll, created.BatchID); !domain.IsNotFound(err) {
		t.Errorf("batch still present after delete")
	}
}

func TestSync_Endpoint(t *testing.T) {
	h, _, ledger := newSourcesHandler(t)

	confirm := httptest.NewRequest(http.MethodPost, "/api/credit_card/confirm", strings.NewReader(sampleBody))
	h.Confirm(httptest.NewRecorder(), confirm, domain.SourceCreditCard)

	req := httptest.NewRequest(http.MethodPost, "/api/credit_card/sync", nil)
	w := httptest.NewRecorder()
	h.Sync(w, req, domain.SourceCreditCard)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body)
	}
	var result domain.SyncResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Created != 2 {
		t.Errorf("Created = %d, want 2", result.Created)
	}

	rows, err := ledger.List(req.Context(), store.ExpenseFilter{})
	if err != nil {
		t.Fatalf("ledger.List error = %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("ledger has %d rows after sync, want 2", len(rows))
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"2026-04-10", false},
		{"2026-04-10T12:30:00Z", false},
		{"04/10/2026", true},
		{"yesterday", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := parseDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
