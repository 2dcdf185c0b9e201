package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/store"
)

// AliasRepository implements store.AliasStore on BigQuery.
type AliasRepository struct {
	client *bigquery.Client
}

// NewAliasRepository creates an AliasRepository with a shared client.
func NewAliasRepository(ctx context.Context) (*AliasRepository, error) {
	client, err := NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewAliasRepository: %w", err)
	}
	return &AliasRepository{client: client}, nil
}

// NewAliasRepositoryWithClient wraps an existing client. The caller
// keeps ownership of the client.
func NewAliasRepositoryWithClient(client *bigquery.Client) *AliasRepository {
	return &AliasRepository{client: client}
}

// Close closes the underlying BigQuery client.
func (r *AliasRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

var _ store.AliasStore = (*AliasRepository)(nil)

// ListAliases returns the full alias table ordered by raw name.
func (r *AliasRepository) ListAliases(ctx context.Context) ([]domain.IdentityAlias, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT raw_name, canonical_name, employee_type
		FROM %s
		ORDER BY raw_name
	`, tableRef(aliasTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListAliases: reading query: %w", err)
	}

	var aliases []domain.IdentityAlias
	for {
		var row AliasRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListAliases: iterating results: %w", err)
		}
		aliases = append(aliases, domain.IdentityAlias{
			RawName:       row.RawName,
			CanonicalName: row.CanonicalName,
			EmployeeType:  row.EmployeeType,
		})
	}
	return aliases, nil
}

// PutAlias inserts or replaces the mapping for alias.RawName. Raw names
// are matched case-insensitively.
func (r *AliasRepository) PutAlias(ctx context.Context, alias domain.IdentityAlias) error {
	query := fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @raw_name AS raw_name, @canonical_name AS canonical_name, @employee_type AS employee_type) s
		ON LOWER(t.raw_name) = LOWER(s.raw_name)
		WHEN MATCHED THEN
			UPDATE SET canonical_name = s.canonical_name, employee_type = s.employee_type
		WHEN NOT MATCHED THEN
			INSERT (raw_name, canonical_name, employee_type)
			VALUES (s.raw_name, s.canonical_name, s.employee_type)
	`, tableRef(aliasTable))
	params := []bigquery.QueryParameter{
		{Name: "raw_name", Value: alias.RawName},
		{Name: "canonical_name", Value: alias.CanonicalName},
		{Name: "employee_type", Value: alias.EmployeeType},
	}

	if _, err := runDML(ctx, r.client, query, params); err != nil {
		return fmt.Errorf("PutAlias: upserting %q: %w", alias.RawName, err)
	}
	return nil
}

// DeleteAlias removes a mapping and reports whether it existed.
func (r *AliasRepository) DeleteAlias(ctx context.Context, rawName string) (bool, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE LOWER(raw_name) = LOWER(@raw_name)
	`, tableRef(aliasTable))
	params := []bigquery.QueryParameter{{Name: "raw_name", Value: rawName}}

	affected, err := runDML(ctx, r.client, query, params)
	if err != nil {
		return false, fmt.Errorf("DeleteAlias: deleting %q: %w", rawName, err)
	}
	return affected > 0, nil
}
