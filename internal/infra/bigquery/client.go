package bigquery

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/bigquery"
)

var (
	projectID = envOr("BQ_PROJECT_ID", "valor-expense-portal")
	datasetID = envOr("BQ_DATASET_ID", "expenses")
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// tableRef renders a fully qualified backtick-quoted table name.
func tableRef(table string) string {
	return "`" + projectID + "." + datasetID + "." + table + "`"
}

// NewClient creates a BigQuery client for the configured project.
func NewClient(ctx context.Context) (*bigquery.Client, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating client: %w", err)
	}
	return client, nil
}

// runDML runs a DML statement to completion and returns the number of
// affected rows. Scripts (BEGIN TRANSACTION ... COMMIT) report zero.
func runDML(ctx context.Context, client *bigquery.Client, query string, params []bigquery.QueryParameter) (int64, error) {
	q := client.Query(query)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
		return qs.NumDMLAffectedRows, nil
	}
	return 0, nil
}
