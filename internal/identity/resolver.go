// Package identity maps raw, free-text names found in source exports to
// canonical person records using an administrator-maintained alias table.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/store"
)

// Resolver resolves raw identity strings against the alias table.
// Resolution happens once at ingest time and the result is stored on the
// staging record; it is never recomputed on read. The alias set is
// cached per process and refetched after Invalidate.
type Resolver struct {
	aliases store.AliasStore

	mu        sync.RWMutex
	loaded    bool
	canonical map[string]domain.Identity // exact canonical name -> identity
	lowerCanl map[string]domain.Identity // lowercased canonical name -> identity
	aliasMap  map[string]domain.Identity // normalized alias -> identity
}

// NewResolver creates a resolver backed by the given alias store. The
// store is injected, not a singleton: callers that need fresh aliases
// construct their own resolver or call Invalidate after alias edits.
func NewResolver(aliases store.AliasStore) *Resolver {
	return &Resolver{aliases: aliases}
}

// Resolve maps a raw name to its canonical identity. Lookup order, first
// match wins: exact canonical match, case-insensitive canonical match
// after trimming, alias-table lookup. When nothing matches the raw
// string is returned unchanged with Matched=false so downstream reports
// can flag unmapped identities without dropping the record.
func (r *Resolver) Resolve(ctx context.Context, raw string) (domain.Identity, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.Identity{Name: raw}, nil
	}

	if err := r.ensureLoaded(ctx); err != nil {
		return domain.Identity{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.canonical[raw]; ok {
		return id, nil
	}

	key := normalizeKey(raw)
	if id, ok := r.lowerCanl[key]; ok {
		return id, nil
	}
	if id, ok := r.aliasMap[key]; ok {
		return id, nil
	}
	// Source exports often write "J. Douglas Smith"; retry with periods
	// stripped before giving up.
	if id, ok := r.aliasMap[stripPeriods(key)]; ok {
		return id, nil
	}

	return domain.Identity{Name: raw, Matched: false}, nil
}

// CanonicalNames returns the distinct canonical names, for dropdowns.
func (r *Resolver) CanonicalNames(ctx context.Context) ([]string, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.canonical))
	for name := range r.canonical {
		names = append(names, name)
	}
	return names, nil
}

// Invalidate discards the cached alias set. The next Resolve refetches
// from the store. Alias admin handlers call this after every write.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.loaded = false
	r.mu.Unlock()
}

func (r *Resolver) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}

	aliases, err := r.aliases.ListAliases(ctx)
	if err != nil {
		return fmt.Errorf("identity: load aliases: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.canonical = make(map[string]domain.Identity)
	r.lowerCanl = make(map[string]domain.Identity)
	r.aliasMap = make(map[string]domain.Identity)

	for _, a := range aliases {
		id := domain.Identity{Name: a.CanonicalName, EmployeeType: a.EmployeeType, Matched: true}
		r.canonical[a.CanonicalName] = id
		r.lowerCanl[normalizeKey(a.CanonicalName)] = id
		r.aliasMap[normalizeKey(a.RawName)] = id
	}
	r.loaded = true
	return nil
}

// normalizeKey lowercases, trims and collapses interior whitespace.
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

func stripPeriods(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, ".", " ")), " ")
}
