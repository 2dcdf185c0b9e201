package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/valorops/expense-portal/internal/api/middleware"
	"github.com/valorops/expense-portal/internal/categorize"
)

// CategorizeHandler serves AI category suggestions for parsed rows.
type CategorizeHandler struct {
	suggester categorize.Suggester
	log       zerolog.Logger
}

// NewCategorizeHandler creates a new categorize handler.
func NewCategorizeHandler(suggester categorize.Suggester, log zerolog.Logger) *CategorizeHandler {
	return &CategorizeHandler{
		suggester: suggester,
		log:       log,
	}
}

// Suggest handles POST /api/categorize. One category comes back per
// submitted description, in order.
func (h *CategorizeHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Descriptions []string `json:"descriptions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Descriptions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "descriptions is required")
		return
	}

	categories, err := h.suggester.Suggest(r.Context(), req.Descriptions)
	if err != nil {
		h.log.Error().Err(err).Int("descriptions", len(req.Descriptions)).Msg("Failed to suggest categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to suggest categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}
