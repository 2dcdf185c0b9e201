package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/store"
)

// AliasStore is a thread-safe in-memory store.AliasStore keyed by the
// lowercased raw name.
type AliasStore struct {
	mu      sync.Mutex
	aliases map[string]domain.IdentityAlias
}

// NewAliasStore creates an alias store seeded with the given aliases.
func NewAliasStore(seed ...domain.IdentityAlias) *AliasStore {
	s := &AliasStore{aliases: make(map[string]domain.IdentityAlias)}
	for _, a := range seed {
		s.aliases[aliasKey(a.RawName)] = a
	}
	return s
}

func (s *AliasStore) ListAliases(ctx context.Context) ([]domain.IdentityAlias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.IdentityAlias, 0, len(s.aliases))
	for _, a := range s.aliases {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RawName < out[j].RawName })
	return out, nil
}

func (s *AliasStore) PutAlias(ctx context.Context, alias domain.IdentityAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aliases[aliasKey(alias.RawName)] = alias
	return nil
}

func (s *AliasStore) DeleteAlias(ctx context.Context, rawName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := aliasKey(rawName)
	_, ok := s.aliases[key]
	delete(s.aliases, key)
	return ok, nil
}

func aliasKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

var _ store.AliasStore = (*AliasStore)(nil)
