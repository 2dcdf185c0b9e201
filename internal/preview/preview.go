// Package preview annotates parsed source rows before anything is
// persisted: each candidate gets its fingerprint, its duplicate flag
// and its resolved identity so the caller can review and select rows
// for confirmation.
package preview

import (
	"context"
	"fmt"

	"github.com/valorops/expense-portal/internal/dedup"
	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/identity"
	"github.com/valorops/expense-portal/internal/store"
)

// Summary counts the outcome of one preview. Duplicates are
// default-deselected, never rejected.
type Summary struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Duplicates int `json:"duplicates"`
}

// Service performs candidate annotation. It reads the staging store for
// duplicate checks but writes nothing.
type Service struct {
	staging  store.StagingStore
	resolver *identity.Resolver
}

// NewService creates a preview service.
func NewService(staging store.StagingStore, resolver *identity.Resolver) *Service {
	return &Service{staging: staging, resolver: resolver}
}

// Annotate fingerprints every candidate, resolves its identity and
// flags duplicates against the already-staged records of the same
// source. Re-uploading an unchanged export therefore flags every row.
// Repeats inside the upload itself are flagged too, after their first
// occurrence. The duplicate check never crosses sources: the same
// purchase can legitimately appear once per source export.
func (s *Service) Annotate(ctx context.Context, source domain.Source, candidates []domain.Candidate) ([]domain.Candidate, Summary, error) {
	fingerprints := make([]string, len(candidates))
	for i := range candidates {
		fingerprints[i] = dedup.Fingerprint(source, candidates[i])
	}

	staged, err := s.staging.FingerprintExists(ctx, source, fingerprints)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("preview: check fingerprints: %w", err)
	}

	summary := Summary{Total: len(candidates)}
	seen := make(map[string]bool)

	out := make([]domain.Candidate, len(candidates))
	for i, c := range candidates {
		resolved, err := s.resolver.Resolve(ctx, c.RawIdentity)
		if err != nil {
			return nil, Summary{}, fmt.Errorf("preview: resolve identity: %w", err)
		}

		c.Fingerprint = fingerprints[i]
		c.ResolvedIdentity = resolved
		c.IsDuplicate = staged[c.Fingerprint] || seen[c.Fingerprint]
		seen[c.Fingerprint] = true

		if c.IsDuplicate {
			summary.Duplicates++
		} else {
			summary.New++
		}
		out[i] = c
	}
	return out, summary, nil
}
