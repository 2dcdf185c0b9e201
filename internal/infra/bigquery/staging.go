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

// stagingColumns is the column order used by every staging INSERT.
const stagingColumns = "id, batch_id, raw_identity, name, employee_type, matched, category, amount, date, project, comments, card_name, vendor, currency, description, fingerprint, synced, consolidated_ref, created_at"

// StagingRepository implements store.StagingStore on BigQuery.
type StagingRepository struct {
	client *bigquery.Client
}

// NewStagingRepository creates a StagingRepository with a shared client.
func NewStagingRepository(ctx context.Context) (*StagingRepository, error) {
	client, err := NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStagingRepository: %w", err)
	}
	return &StagingRepository{client: client}, nil
}

// NewStagingRepositoryWithClient wraps an existing client. The caller
// keeps ownership of the client.
func NewStagingRepositoryWithClient(client *bigquery.Client) *StagingRepository {
	return &StagingRepository{client: client}
}

// Close closes the underlying BigQuery client.
func (r *StagingRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

var _ store.StagingStore = (*StagingRepository)(nil)

// InsertBatch writes the batch row and all member records inside one
// multi-statement transaction, so a failed upload never leaves orphan
// records behind.
func (r *StagingRepository) InsertBatch(ctx context.Context, batch *domain.Batch, records []*domain.StagingRecord) error {
	if len(records) == 0 {
		return domain.ErrEmptyBatch
	}

	var (
		valueRows []string
		params    []bigquery.QueryParameter
	)
	for i, rec := range records {
		p := fmt.Sprintf("r%d_", i)
		valueRows = append(valueRows, fmt.Sprintf(
			"(@%[1]sid, @%[1]sbatch_id, @%[1]sraw_identity, @%[1]sname, @%[1]semployee_type, @%[1]smatched, @%[1]scategory, @%[1]samount, @%[1]sdate, @%[1]sproject, @%[1]scomments, @%[1]scard_name, @%[1]svendor, @%[1]scurrency, @%[1]sdescription, @%[1]sfingerprint, @%[1]ssynced, @%[1]sconsolidated_ref, @%[1]screated_at)", p))
		params = append(params,
			bigquery.QueryParameter{Name: p + "id", Value: rec.ID},
			bigquery.QueryParameter{Name: p + "batch_id", Value: rec.BatchID},
			bigquery.QueryParameter{Name: p + "raw_identity", Value: rec.RawIdentity},
			bigquery.QueryParameter{Name: p + "name", Value: rec.CanonicalIdentity.Name},
			bigquery.QueryParameter{Name: p + "employee_type", Value: rec.CanonicalIdentity.EmployeeType},
			bigquery.QueryParameter{Name: p + "matched", Value: rec.CanonicalIdentity.Matched},
			bigquery.QueryParameter{Name: p + "category", Value: rec.Category},
			bigquery.QueryParameter{Name: p + "amount", Value: amountToRat(rec.Amount)},
			bigquery.QueryParameter{Name: p + "date", Value: dateOf(rec.Date)},
			bigquery.QueryParameter{Name: p + "project", Value: rec.Project},
			bigquery.QueryParameter{Name: p + "comments", Value: rec.Comments},
			bigquery.QueryParameter{Name: p + "card_name", Value: rec.CardName},
			bigquery.QueryParameter{Name: p + "vendor", Value: rec.Vendor},
			bigquery.QueryParameter{Name: p + "currency", Value: rec.Currency},
			bigquery.QueryParameter{Name: p + "description", Value: rec.Description},
			bigquery.QueryParameter{Name: p + "fingerprint", Value: rec.Fingerprint},
			bigquery.QueryParameter{Name: p + "synced", Value: rec.Synced},
			bigquery.QueryParameter{Name: p + "consolidated_ref", Value: rec.ConsolidatedRef},
			bigquery.QueryParameter{Name: p + "created_at", Value: rec.CreatedAt},
		)
	}
	params = append(params,
		bigquery.QueryParameter{Name: "b_id", Value: batch.ID},
		bigquery.QueryParameter{Name: "b_created_at", Value: batch.CreatedAt},
		bigquery.QueryParameter{Name: "b_record_count", Value: int64(batch.RecordCount)},
		bigquery.QueryParameter{Name: "b_employee_count", Value: int64(batch.EmployeeCount)},
		bigquery.QueryParameter{Name: "b_total_amount", Value: amountToRat(batch.TotalAmount)},
	)

	script := fmt.Sprintf(`
		BEGIN TRANSACTION;
		INSERT INTO %s (%s)
		VALUES %s;
		INSERT INTO %s (id, created_at, record_count, employee_count, total_amount)
		VALUES (@b_id, @b_created_at, @b_record_count, @b_employee_count, @b_total_amount);
		COMMIT TRANSACTION;
	`, tableRef(stagingTable(batch.Source)), stagingColumns, strings.Join(valueRows, ",\n\t\t"), tableRef(batchTable(batch.Source)))

	if _, err := runDML(ctx, r.client, script, params); err != nil {
		return fmt.Errorf("InsertBatch: inserting %d records: %w", len(records), err)
	}
	return nil
}

// GetRecord fetches a single staging record by id.
func (r *StagingRepository) GetRecord(ctx context.Context, source domain.Source, id string) (*domain.StagingRecord, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE id = @id
		LIMIT 1
	`, stagingColumns, tableRef(stagingTable(source))))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetRecord: reading query: %w", err)
	}

	var row StagingRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, &domain.NotFoundError{Entity: "record", ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("GetRecord: iterating results: %w", err)
	}
	return row.toDomain(source), nil
}

// ListRecords returns staging records matching the filter, newest first.
func (r *StagingRepository) ListRecords(ctx context.Context, filter store.RecordFilter) ([]*domain.StagingRecord, error) {
	conditions := []string{"TRUE"}
	var params []bigquery.QueryParameter

	if filter.BatchID != "" {
		conditions = append(conditions, "batch_id = @batch_id")
		params = append(params, bigquery.QueryParameter{Name: "batch_id", Value: filter.BatchID})
	}
	if filter.Name != "" {
		conditions = append(conditions, "LOWER(name) = LOWER(@name)")
		params = append(params, bigquery.QueryParameter{Name: "name", Value: filter.Name})
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: filter.Category})
	}
	if filter.Year != 0 {
		conditions = append(conditions, "EXTRACT(YEAR FROM date) = @year")
		params = append(params, bigquery.QueryParameter{Name: "year", Value: int64(filter.Year)})
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "date >= @from_date")
		params = append(params, bigquery.QueryParameter{Name: "from_date", Value: dateOf(filter.From)})
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "date <= @to_date")
		params = append(params, bigquery.QueryParameter{Name: "to_date", Value: dateOf(filter.To)})
	}
	if filter.Unsynced {
		conditions = append(conditions, "synced = FALSE")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s
		ORDER BY created_at DESC, date DESC
	`, stagingColumns, tableRef(stagingTable(filter.Source)), strings.Join(conditions, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf("\t\tLIMIT %d\n", filter.Limit)
	}

	q := r.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecords: reading query: %w", err)
	}

	var records []*domain.StagingRecord
	for {
		var row StagingRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecords: iterating results: %w", err)
		}
		records = append(records, row.toDomain(filter.Source))
	}
	return records, nil
}

// UpdateRecord overwrites every mutable column of the stored record.
func (r *StagingRepository) UpdateRecord(ctx context.Context, rec *domain.StagingRecord) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			raw_identity = @raw_identity,
			name = @name,
			employee_type = @employee_type,
			matched = @matched,
			category = @category,
			amount = @amount,
			date = @date,
			project = @project,
			comments = @comments,
			card_name = @card_name,
			vendor = @vendor,
			currency = @currency,
			description = @description,
			fingerprint = @fingerprint,
			synced = @synced,
			consolidated_ref = @consolidated_ref
		WHERE id = @id
	`, tableRef(stagingTable(rec.Source)))

	params := []bigquery.QueryParameter{
		{Name: "id", Value: rec.ID},
		{Name: "raw_identity", Value: rec.RawIdentity},
		{Name: "name", Value: rec.CanonicalIdentity.Name},
		{Name: "employee_type", Value: rec.CanonicalIdentity.EmployeeType},
		{Name: "matched", Value: rec.CanonicalIdentity.Matched},
		{Name: "category", Value: rec.Category},
		{Name: "amount", Value: amountToRat(rec.Amount)},
		{Name: "date", Value: dateOf(rec.Date)},
		{Name: "project", Value: rec.Project},
		{Name: "comments", Value: rec.Comments},
		{Name: "card_name", Value: rec.CardName},
		{Name: "vendor", Value: rec.Vendor},
		{Name: "currency", Value: rec.Currency},
		{Name: "description", Value: rec.Description},
		{Name: "fingerprint", Value: rec.Fingerprint},
		{Name: "synced", Value: rec.Synced},
		{Name: "consolidated_ref", Value: rec.ConsolidatedRef},
	}

	affected, err := runDML(ctx, r.client, query, params)
	if err != nil {
		return fmt.Errorf("UpdateRecord: updating %s: %w", rec.ID, err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Entity: "record", ID: rec.ID}
	}
	return nil
}

// DeleteRecords removes the given record ids from the source's staging
// table. Missing ids are ignored.
func (r *StagingRepository) DeleteRecords(ctx context.Context, source domain.Source, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE id IN UNNEST(@ids)
	`, tableRef(stagingTable(source)))
	params := []bigquery.QueryParameter{{Name: "ids", Value: ids}}

	if _, err := runDML(ctx, r.client, query, params); err != nil {
		return fmt.Errorf("DeleteRecords: deleting %d records: %w", len(ids), err)
	}
	return nil
}

// FingerprintExists reports which fingerprints are already staged for
// the source.
func (r *StagingRepository) FingerprintExists(ctx context.Context, source domain.Source, fingerprints []string) (map[string]bool, error) {
	result := make(map[string]bool, len(fingerprints))
	if len(fingerprints) == 0 {
		return result, nil
	}

	q := r.client.Query(fmt.Sprintf(`
		SELECT DISTINCT fingerprint FROM %s
		WHERE fingerprint IN UNNEST(@fingerprints)
	`, tableRef(stagingTable(source))))
	q.Parameters = []bigquery.QueryParameter{{Name: "fingerprints", Value: fingerprints}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FingerprintExists: reading query: %w", err)
	}
	for {
		var row struct {
			Fingerprint string `bigquery:"fingerprint"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FingerprintExists: iterating results: %w", err)
		}
		result[row.Fingerprint] = true
	}
	return result, nil
}

// GetBatch fetches a batch row by id.
func (r *StagingRepository) GetBatch(ctx context.Context, source domain.Source, id string) (*domain.Batch, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT id, created_at, record_count, employee_count, total_amount
		FROM %s
		WHERE id = @id
		LIMIT 1
	`, tableRef(batchTable(source))))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetBatch: reading query: %w", err)
	}

	var row BatchRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, &domain.NotFoundError{Entity: "batch", ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("GetBatch: iterating results: %w", err)
	}
	return row.toDomain(source), nil
}

// ListBatches returns all batches for a source, newest first.
func (r *StagingRepository) ListBatches(ctx context.Context, source domain.Source) ([]*domain.Batch, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT id, created_at, record_count, employee_count, total_amount
		FROM %s
		ORDER BY created_at DESC
	`, tableRef(batchTable(source))))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBatches: reading query: %w", err)
	}

	var batches []*domain.Batch
	for {
		var row BatchRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListBatches: iterating results: %w", err)
		}
		batches = append(batches, row.toDomain(source))
	}
	return batches, nil
}

// DeleteBatch removes the batch row and all member records in one
// transaction.
func (r *StagingRepository) DeleteBatch(ctx context.Context, source domain.Source, id string) error {
	script := fmt.Sprintf(`
		BEGIN TRANSACTION;
		DELETE FROM %s WHERE batch_id = @batch_id;
		DELETE FROM %s WHERE id = @batch_id;
		COMMIT TRANSACTION;
	`, tableRef(stagingTable(source)), tableRef(batchTable(source)))
	params := []bigquery.QueryParameter{{Name: "batch_id", Value: id}}

	if _, err := runDML(ctx, r.client, script, params); err != nil {
		return fmt.Errorf("DeleteBatch: deleting batch %s: %w", id, err)
	}
	return nil
}
