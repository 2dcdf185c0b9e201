package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/valorops/expense-portal/internal/api/middleware"
	"github.com/valorops/expense-portal/internal/consolidation"
	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/preview"
	"github.com/valorops/expense-portal/internal/store"
)

// SourcesHandler serves the per-source endpoints: preview, confirm,
// record and batch management, and the manual sync trigger.
type SourcesHandler struct {
	engine  *consolidation.Engine
	preview *preview.Service
	staging store.StagingStore
	log     zerolog.Logger
}

// NewSourcesHandler creates a new sources handler.
func NewSourcesHandler(engine *consolidation.Engine, previewSvc *preview.Service, staging store.StagingStore, log zerolog.Logger) *SourcesHandler {
	return &SourcesHandler{
		engine:  engine,
		preview: previewSvc,
		staging: staging,
		log:     log,
	}
}

// Preview handles POST /api/{source}/preview. Nothing is persisted;
// the response is the annotated candidate list plus summary counts.
func (h *SourcesHandler) Preview(w http.ResponseWriter, r *http.Request, source domain.Source) {
	var req struct {
		Records []candidatePayload `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	candidates, err := toCandidates(req.Records)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	annotated, summary, err := h.preview.Annotate(r.Context(), source, candidates)
	if err != nil {
		h.log.Error().Err(err).Str("source", string(source)).Msg("Failed to annotate preview")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build preview")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": annotated,
		"summary": summary,
	})
}

// Confirm handles POST /api/{source}/confirm: creates the batch and,
// for push-on-write sources, syncs it in the same request.
func (h *SourcesHandler) Confirm(w http.ResponseWriter, r *http.Request, source domain.Source) {
	var req struct {
		Records []candidatePayload `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	candidates, err := toCandidates(req.Records)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Annotate before committing so the result reports how many of the
	// confirmed rows were already staged, and so the batch reuses the
	// fingerprints computed here.
	annotated, summary, err := h.preview.Annotate(r.Context(), source, candidates)
	if err != nil {
		h.log.Error().Err(err).Str("source", string(source)).Msg("Failed to annotate candidates")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to confirm batch")
		return
	}

	batch, syncResult, err := h.engine.CreateBatch(r.Context(), source, annotated)
	if err != nil {
		h.log.Error().Err(err).Str("source", string(source)).Msg("Failed to create batch")
		writeDomainError(w, err)
		return
	}

	h.log.Info().
		Str("source", string(source)).
		Str("batch_id", batch.ID).
		Int("records", batch.RecordCount).
		Msg("Batch confirmed")

	middleware.WriteJSON(w, http.StatusCreated, domain.ConfirmResult{
		BatchID:    batch.ID,
		Inserted:   batch.RecordCount,
		Duplicates: summary.Duplicates,
		SyncResult: syncResult,
	})
}

// ListRecords handles GET /api/{source}/records with optional filters.
func (h *SourcesHandler) ListRecords(w http.ResponseWriter, r *http.Request, source domain.Source) {
	query := r.URL.Query()
	filter := store.RecordFilter{
		Source:   source,
		BatchID:  query.Get("batch_id"),
		Name:     query.Get("name"),
		Category: query.Get("category"),
		Unsynced: query.Get("unsynced") == "true",
	}
	if yearStr := query.Get("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid year")
			return
		}
		filter.Year = year
	}
	if fromStr := query.Get("from"); fromStr != "" {
		from, err := parseDate(fromStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.From = from
	}
	if toStr := query.Get("to"); toStr != "" {
		to, err := parseDate(toStr)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.To = to
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	records, err := h.staging.ListRecords(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Str("source", string(source)).Msg("Failed to list records")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list records")
		return
	}

	if records == nil {
		records = []*domain.StagingRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// PatchRecord handles PATCH /api/{source}/records/{id}.
func (h *SourcesHandler) PatchRecord(w http.ResponseWriter, r *http.Request, source domain.Source, id string) {
	var patch domain.RecordPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patch.Empty() {
		middleware.WriteError(w, http.StatusBadRequest, "Empty patch")
		return
	}

	rec, err := h.engine.EditRecord(r.Context(), source, id, patch)
	if err != nil {
		h.log.Error().Err(err).Str("record_id", id).Msg("Failed to edit record")
		writeDomainError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/{source}/records/{id}.
func (h *SourcesHandler) DeleteRecord(w http.ResponseWriter, r *http.Request, source domain.Source, id string) {
	result, err := h.engine.DeleteRecord(r.Context(), source, id)
	if err != nil {
		h.log.Error().Err(err).Str("record_id", id).Msg("Failed to delete record")
		writeDomainError(w, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// ListBatches handles GET /api/{source}/batches.
func (h *SourcesHandler) ListBatches(w http.ResponseWriter, r *http.Request, source domain.Source) {
	batches, err := h.staging.ListBatches(r.Context(), source)
	if err != nil {
		h.log.Error().Err(err).Str("source", string(source)).Msg("Failed to list batches")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list batches")
		return
	}

	if batches == nil {
		batches = []*domain.Batch{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"batches": batches,
		"count":   len(batches),
	})
}

// DeleteBatch handles DELETE /api/{source}/batches/{id}.
func (h *SourcesHandler) DeleteBatch(w http.ResponseWriter, r *http.Request, source domain.Source, id string) {
	result, err := h.engine.DeleteBatch(r.Context(), source, id)
	if err != nil {
		h.log.Error().Err(err).Str("batch_id", id).Msg("Failed to delete batch")
		writeDomainError(w, err)
		return
	}

	h.log.Info().
		Str("source", string(source)).
		Str("batch_id", id).
		Int("deleted", result.DeletedCount).
		Str("amount", result.AmountRemoved.String()).
		Msg("Batch deleted")

	middleware.WriteJSON(w, http.StatusOK, result)
}

// Sync handles POST /api/{source}/sync, the pull-on-demand trigger.
func (h *SourcesHandler) Sync(w http.ResponseWriter, r *http.Request, source domain.Source) {
	result, err := h.engine.SyncSource(r.Context(), source)
	if err != nil {
		h.log.Error().Err(err).Str("source", string(source)).Msg("Failed to sync source")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to sync")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}
