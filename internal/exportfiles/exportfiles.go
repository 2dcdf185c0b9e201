// Package exportfiles stores raw source export files (card statements,
// payroll exports, ride history CSVs) in a GCS bucket. The portal keeps
// the original file next to every confirmed batch so a dispute can
// always be traced back to the upload.
package exportfiles

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/valorops/expense-portal/internal/domain"
)

// Storage is the subset of export file operations the HTTP handlers and
// the ingest CLI use.
type Storage interface {
	UploadStream(ctx context.Context, objectName, contentType string, r io.Reader) (string, int64, error)
	Fetch(ctx context.Context, gcsURI string) ([]byte, error)
}

// Store reads and writes export files in one bucket. It assumes
// Application Default Credentials are configured.
type Store struct {
	bucket string
}

func NewStore(bucket string) *Store {
	return &Store{bucket: bucket}
}

var _ Storage = (*Store)(nil)

// ObjectName builds a dated, collision-free object name for an export
// file, e.g. "exports/credit_card/2026/08/30/<uuid>-statement.xlsx".
func ObjectName(source domain.Source, filename string) string {
	return fmt.Sprintf("exports/%s/%s/%s-%s",
		source, time.Now().UTC().Format("2006/01/02"), uuid.NewString(), path.Base(filename))
}

// UploadStream writes r to the bucket under objectName and returns the
// gs:// URI and the number of bytes written.
func (s *Store) UploadStream(ctx context.Context, objectName, contentType string, r io.Reader) (string, int64, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("UploadStream: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	written, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return "", 0, fmt.Errorf("UploadStream: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("UploadStream: finalizing upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), written, nil
}

// UploadFile uploads a local file, used by the ingest CLI.
func (s *Store) UploadFile(ctx context.Context, objectName, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("UploadFile: opening %q: %w", filePath, err)
	}
	defer f.Close()

	uri, _, err := s.UploadStream(ctx, objectName, "", f)
	return uri, err
}

// Fetch downloads the file bytes from a gs:// URI.
func (s *Store) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := ParseURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: creating storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: opening object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object: %w", err)
	}
	return data, nil
}

// ParseURI splits a gs://bucket/path URI into bucket and object path.
func ParseURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
