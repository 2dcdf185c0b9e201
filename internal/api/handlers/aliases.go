package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/valorops/expense-portal/internal/api/middleware"
	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/identity"
	"github.com/valorops/expense-portal/internal/store"
)

// AliasesHandler serves the identity alias admin endpoints. Every write
// invalidates the resolver cache so the next resolution sees the change.
type AliasesHandler struct {
	aliases  store.AliasStore
	resolver *identity.Resolver
	log      zerolog.Logger
}

// NewAliasesHandler creates a new aliases handler.
func NewAliasesHandler(aliases store.AliasStore, resolver *identity.Resolver, log zerolog.Logger) *AliasesHandler {
	return &AliasesHandler{
		aliases:  aliases,
		resolver: resolver,
		log:      log,
	}
}

// List handles GET /api/aliases.
func (h *AliasesHandler) List(w http.ResponseWriter, r *http.Request) {
	aliases, err := h.aliases.ListAliases(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list aliases")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list aliases")
		return
	}

	if aliases == nil {
		aliases = []domain.IdentityAlias{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"aliases": aliases,
		"count":   len(aliases),
	})
}

// Put handles PUT /api/aliases.
func (h *AliasesHandler) Put(w http.ResponseWriter, r *http.Request) {
	var alias domain.IdentityAlias
	if err := json.NewDecoder(r.Body).Decode(&alias); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if alias.RawName == "" || alias.CanonicalName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "raw_name and canonical_name are required")
		return
	}

	if err := h.aliases.PutAlias(r.Context(), alias); err != nil {
		h.log.Error().Err(err).Str("raw_name", alias.RawName).Msg("Failed to store alias")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store alias")
		return
	}
	h.resolver.Invalidate()

	h.log.Info().Str("raw_name", alias.RawName).Str("canonical_name", alias.CanonicalName).Msg("Alias stored")
	middleware.WriteJSON(w, http.StatusOK, alias)
}

// Delete handles DELETE /api/aliases?raw_name=.
func (h *AliasesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rawName := r.URL.Query().Get("raw_name")
	if rawName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "raw_name is required")
		return
	}

	existed, err := h.aliases.DeleteAlias(r.Context(), rawName)
	if err != nil {
		h.log.Error().Err(err).Str("raw_name", rawName).Msg("Failed to delete alias")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete alias")
		return
	}
	if !existed {
		middleware.WriteError(w, http.StatusNotFound, "Alias not found")
		return
	}
	h.resolver.Invalidate()

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
