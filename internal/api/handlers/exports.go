package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/valorops/expense-portal/internal/api/middleware"
	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/exportfiles"
)

// ExportsHandler stores raw source export files in GCS so every batch
// can be traced back to the file it came from.
type ExportsHandler struct {
	files  exportfiles.Storage
	bucket string
	log    zerolog.Logger
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(files exportfiles.Storage, bucket string, log zerolog.Logger) *ExportsHandler {
	return &ExportsHandler{
		files:  files,
		bucket: bucket,
		log:    log,
	}
}

// CreateUploadURL handles POST /api/exports/upload-url. With user
// credentials the upload goes back through this API rather than a
// signed URL.
func (h *ExportsHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source   string `json:"source"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Filename == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Filename is required")
		return
	}
	source, err := domain.ParseSource(req.Source)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.bucket == "" {
		middleware.WriteError(w, http.StatusServiceUnavailable, "No export bucket configured")
		return
	}

	objectName := exportfiles.ObjectName(source, req.Filename)
	exportID := uuid.New().String()

	uploadURL := fmt.Sprintf("/api/exports/upload/%s?object_name=%s", exportID, url.QueryEscape(objectName))

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"upload_url":  uploadURL,
		"gcs_uri":     fmt.Sprintf("gs://%s/%s", h.bucket, objectName),
		"object_name": objectName,
		"export_id":   exportID,
	})
}

// Upload handles POST /api/exports/upload/{id}: streams the request
// body into the bucket under the object name issued by CreateUploadURL.
func (h *ExportsHandler) Upload(w http.ResponseWriter, r *http.Request, exportID string) {
	objectName := r.URL.Query().Get("object_name")
	if objectName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "object_name is required")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	gcsURI, written, err := h.files.UploadStream(r.Context(), objectName, contentType, r.Body)
	if err != nil {
		h.log.Error().Err(err).Str("object_name", objectName).Msg("Failed to upload export file")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	h.log.Info().
		Str("export_id", exportID).
		Str("gcs_uri", gcsURI).
		Int64("bytes", written).
		Msg("Export file uploaded")

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"export_id": exportID,
		"gcs_uri":   gcsURI,
		"status":    "uploaded",
	})
}
