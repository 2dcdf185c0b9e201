package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/store"
)

const ledgerColumns = "id, name, employee_type, category, amount, date, vendor, project, source, year, month, created_at"

// LedgerRepository implements store.LedgerStore on BigQuery.
type LedgerRepository struct {
	client *bigquery.Client
}

// NewLedgerRepository creates a LedgerRepository with a shared client.
func NewLedgerRepository(ctx context.Context) (*LedgerRepository, error) {
	client, err := NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerRepository: %w", err)
	}
	return &LedgerRepository{client: client}, nil
}

// NewLedgerRepositoryWithClient wraps an existing client. The caller
// keeps ownership of the client.
func NewLedgerRepositoryWithClient(client *bigquery.Client) *LedgerRepository {
	return &LedgerRepository{client: client}
}

// Close closes the underlying BigQuery client.
func (r *LedgerRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

var _ store.LedgerStore = (*LedgerRepository)(nil)

func ledgerParams(rec *domain.ConsolidatedRecord) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "id", Value: rec.ID},
		{Name: "name", Value: rec.Name},
		{Name: "employee_type", Value: rec.EmployeeType},
		{Name: "category", Value: rec.Category},
		{Name: "amount", Value: amountToRat(rec.Amount)},
		{Name: "date", Value: dateOf(rec.Date)},
		{Name: "vendor", Value: rec.Vendor},
		{Name: "project", Value: rec.Project},
		{Name: "source", Value: rec.Source},
		{Name: "year", Value: int64(rec.Year)},
		{Name: "month", Value: int64(rec.Month)},
		{Name: "created_at", Value: rec.CreatedAt},
	}
}

// Insert writes a new ledger row.
func (r *LedgerRepository) Insert(ctx context.Context, rec *domain.ConsolidatedRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (@id, @name, @employee_type, @category, @amount, @date, @vendor, @project, @source, @year, @month, @created_at)
	`, tableRef(consolidatedTable), ledgerColumns)

	if _, err := runDML(ctx, r.client, query, ledgerParams(rec)); err != nil {
		return fmt.Errorf("Insert: inserting %s: %w", rec.ID, err)
	}
	return nil
}

// Update overwrites the ledger row with the same id. Returns a
// NotFoundError when no row matched, which the sync path uses to detect
// rows removed behind its back.
func (r *LedgerRepository) Update(ctx context.Context, rec *domain.ConsolidatedRecord) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			name = @name,
			employee_type = @employee_type,
			category = @category,
			amount = @amount,
			date = @date,
			vendor = @vendor,
			project = @project,
			source = @source,
			year = @year,
			month = @month
		WHERE id = @id
	`, tableRef(consolidatedTable))

	affected, err := runDML(ctx, r.client, query, ledgerParams(rec))
	if err != nil {
		return fmt.Errorf("Update: updating %s: %w", rec.ID, err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Entity: "expense", ID: rec.ID}
	}
	return nil
}

// Get fetches a ledger row by id.
func (r *LedgerRepository) Get(ctx context.Context, id string) (*domain.ConsolidatedRecord, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE id = @id
		LIMIT 1
	`, ledgerColumns, tableRef(consolidatedTable)))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: reading query: %w", err)
	}

	var row ConsolidatedRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, &domain.NotFoundError{Entity: "expense", ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("Get: iterating results: %w", err)
	}
	return row.toDomain(), nil
}

// Delete removes a ledger row and reports whether it existed.
func (r *LedgerRepository) Delete(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id = @id
	`, tableRef(consolidatedTable))
	params := []bigquery.QueryParameter{{Name: "id", Value: id}}

	affected, err := runDML(ctx, r.client, query, params)
	if err != nil {
		return false, fmt.Errorf("Delete: deleting %s: %w", id, err)
	}
	return affected > 0, nil
}

// List returns ledger rows matching the filter, newest first.
func (r *LedgerRepository) List(ctx context.Context, filter store.ExpenseFilter) ([]*domain.ConsolidatedRecord, error) {
	conditions := []string{"TRUE"}
	var params []bigquery.QueryParameter

	if filter.Year != 0 {
		conditions = append(conditions, "year = @year")
		params = append(params, bigquery.QueryParameter{Name: "year", Value: int64(filter.Year)})
	}
	if filter.Month != 0 {
		conditions = append(conditions, "month = @month")
		params = append(params, bigquery.QueryParameter{Name: "month", Value: int64(filter.Month)})
	}
	if filter.Name != "" {
		conditions = append(conditions, "LOWER(name) = LOWER(@name)")
		params = append(params, bigquery.QueryParameter{Name: "name", Value: filter.Name})
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: filter.Category})
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = @source")
		params = append(params, bigquery.QueryParameter{Name: "source", Value: filter.Source})
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "date >= @from_date")
		params = append(params, bigquery.QueryParameter{Name: "from_date", Value: dateOf(filter.From)})
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "date <= @to_date")
		params = append(params, bigquery.QueryParameter{Name: "to_date", Value: dateOf(filter.To)})
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s
		ORDER BY date DESC, created_at DESC
	`, ledgerColumns, tableRef(consolidatedTable), strings.Join(conditions, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf("\t\tLIMIT %d\n", filter.Limit)
	}

	q := r.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("List: reading query: %w", err)
	}

	var records []*domain.ConsolidatedRecord
	for {
		var row ConsolidatedRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: iterating results: %w", err)
		}
		records = append(records, row.toDomain())
	}
	return records, nil
}

// Years returns the distinct years present in the ledger, newest first.
func (r *LedgerRepository) Years(ctx context.Context) ([]int, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT DISTINCT year FROM %s
		ORDER BY year DESC
	`, tableRef(consolidatedTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Years: reading query: %w", err)
	}

	var years []int
	for {
		var row struct {
			Year int64 `bigquery:"year"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Years: iterating results: %w", err)
		}
		years = append(years, int(row.Year))
	}
	return years, nil
}
