package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/valorops/expense-portal/internal/api/middleware"
	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/reporting"
	"github.com/valorops/expense-portal/internal/store"
)

// ExpensesHandler serves the consolidated ledger read endpoints.
type ExpensesHandler struct {
	ledger  store.LedgerStore
	reports *reporting.Service
	log     zerolog.Logger
}

// NewExpensesHandler creates a new expenses handler.
func NewExpensesHandler(ledger store.LedgerStore, reports *reporting.Service, log zerolog.Logger) *ExpensesHandler {
	return &ExpensesHandler{
		ledger:  ledger,
		reports: reports,
		log:     log,
	}
}

// List handles GET /api/expenses with optional filters.
func (h *ExpensesHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.ExpenseFilter{
		Name:     query.Get("name"),
		Category: query.Get("category"),
		Source:   query.Get("source"),
	}
	var err error
	if filter.Year, err = intParam(query.Get("year")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
		return
	}
	if filter.Month, err = intParam(query.Get("month")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid month")
		return
	}
	if fromStr := query.Get("from"); fromStr != "" {
		if filter.From, err = parseDate(fromStr); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if toStr := query.Get("to"); toStr != "" {
		if filter.To, err = parseDate(toStr); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	expenses, err := h.ledger.List(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list expenses")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list expenses")
		return
	}

	if expenses == nil {
		expenses = []*domain.ConsolidatedRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expenses": expenses,
		"count":    len(expenses),
	})
}

// Summary handles GET /api/expenses/summary?year=.
func (h *ExpensesHandler) Summary(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r.URL.Query().Get("year"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
		return
	}

	summary, err := h.reports.Summary(r.Context(), year)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// ByEmployee handles GET /api/expenses/by-employee?year=.
func (h *ExpensesHandler) ByEmployee(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r.URL.Query().Get("year"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
		return
	}

	breakdown, err := h.reports.ByEmployee(r.Context(), year)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build employee breakdown")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build breakdown")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"employees": breakdown,
		"count":     len(breakdown),
	})
}

// Monthly handles GET /api/expenses/monthly?year=&name=.
func (h *ExpensesHandler) Monthly(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	year, err := intParam(query.Get("year"))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
		return
	}

	months, err := h.reports.Monthly(r.Context(), year, query.Get("name"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build monthly breakdown")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build breakdown")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"months": months,
		"count":  len(months),
	})
}

// Years handles GET /api/expenses/years.
func (h *ExpensesHandler) Years(w http.ResponseWriter, r *http.Request) {
	h.distinct(w, r, "years", func() ([]string, error) {
		years, err := h.reports.Years(r.Context())
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(years))
		for _, y := range years {
			out = append(out, strconv.Itoa(y))
		}
		return out, nil
	})
}

// Names handles GET /api/expenses/names.
func (h *ExpensesHandler) Names(w http.ResponseWriter, r *http.Request) {
	h.distinct(w, r, "names", func() ([]string, error) { return h.reports.Names(r.Context()) })
}

// Categories handles GET /api/expenses/categories.
func (h *ExpensesHandler) Categories(w http.ResponseWriter, r *http.Request) {
	h.distinct(w, r, "categories", func() ([]string, error) { return h.reports.Categories(r.Context()) })
}

// Vendors handles GET /api/expenses/vendors.
func (h *ExpensesHandler) Vendors(w http.ResponseWriter, r *http.Request) {
	h.distinct(w, r, "vendors", func() ([]string, error) { return h.reports.Vendors(r.Context()) })
}

func (h *ExpensesHandler) distinct(w http.ResponseWriter, r *http.Request, key string, fetch func() ([]string, error)) {
	values, err := fetch()
	if err != nil {
		h.log.Error().Err(err).Str("list", key).Msg("Failed to list distinct values")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list "+key)
		return
	}
	if values == nil {
		values = []string{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{key: values})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
