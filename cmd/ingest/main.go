// Command ingest stages a parsed export file from disk or GCS: preview
// the rows, confirm them as a batch, and optionally sync the batch into
// the consolidated ledger.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/valorops/expense-portal/internal/consolidation"
	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/events"
	"github.com/valorops/expense-portal/internal/exportfiles"
	"github.com/valorops/expense-portal/internal/identity"
	infraBQ "github.com/valorops/expense-portal/internal/infra/bigquery"
	"github.com/valorops/expense-portal/internal/logger"
	"github.com/valorops/expense-portal/internal/preview"
)

// row is the JSON shape of one parsed export line. Parsing the source
// spreadsheet into this shape happens upstream of this tool.
type row struct {
	RawIdentity string          `json:"raw_identity"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Project     string          `json:"project"`
	Comments    string          `json:"comments"`
	CardName    string          `json:"card_name"`
	Vendor      string          `json:"vendor"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
}

func main() {
	_ = godotenv.Load()
	log := logger.New("ingest")

	sourceStr := flag.String("source", "", "Intake source: credit_card, payroll, ride_history, manual (required)")
	file := flag.String("file", "", "Path or gs:// URI of the parsed rows JSON file (required)")
	previewOnly := flag.Bool("preview-only", false, "Annotate and print the summary without staging anything")
	sync := flag.Bool("sync", false, "Sync the batch after confirming (pull-on-demand sources)")
	flag.Parse()

	if *sourceStr == "" {
		log.Fatal().Msg("Error: --source is required")
	}
	if *file == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	source, err := domain.ParseSource(*sourceStr)
	if err != nil {
		log.Fatal().Err(err).Msg("Error: invalid source")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	candidates, err := loadCandidates(ctx, *file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to load rows")
	}
	log.Info().Int("rows", len(candidates)).Str("source", string(source)).Msg("Loaded export rows")

	client, err := infraBQ.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	staging := infraBQ.NewStagingRepositoryWithClient(client)
	ledger := infraBQ.NewLedgerRepositoryWithClient(client)
	aliases := infraBQ.NewAliasRepositoryWithClient(client)

	resolver := identity.NewResolver(aliases)
	previewSvc := preview.NewService(staging, resolver)
	engine := consolidation.New(staging, ledger, resolver, events.NopPublisher{}, log)

	annotated, summary, err := previewSvc.Annotate(ctx, source, candidates)
	if err != nil {
		log.Fatal().Err(err).Msg("Preview failed")
	}

	fmt.Printf("Preview: %d rows, %d new, %d duplicates\n", summary.Total, summary.New, summary.Duplicates)
	for _, c := range annotated {
		marker := " "
		if c.IsDuplicate {
			marker = "D"
		}
		matched := c.ResolvedIdentity.Name
		if !c.ResolvedIdentity.Matched {
			matched += " (unmapped)"
		}
		fmt.Printf("  [%s] %-30s %10s  %s\n", marker, matched, c.Amount.StringFixed(2), c.Category)
	}

	if *previewOnly {
		return
	}

	batch, syncResult, err := engine.CreateBatch(ctx, source, annotated)
	if err != nil {
		log.Fatal().Err(err).Msg("Confirm failed")
	}
	fmt.Printf("Confirmed batch %s: %d records, %d employees, total %s\n",
		batch.ID, batch.RecordCount, batch.EmployeeCount, batch.TotalAmount.StringFixed(2))

	if syncResult == nil && *sync {
		result, err := engine.SyncSource(ctx, source)
		if err != nil {
			log.Fatal().Err(err).Msg("Sync failed")
		}
		syncResult = &result
	}

	if syncResult != nil {
		fmt.Printf("Synced: %d created, %d updated", syncResult.Created, syncResult.Updated)
		if len(syncResult.Errors) > 0 {
			fmt.Printf(", %d errors:\n  %s", len(syncResult.Errors), strings.Join(syncResult.Errors, "\n  "))
		}
		fmt.Println()
	}
}

func loadCandidates(ctx context.Context, file string) ([]domain.Candidate, error) {
	var data []byte
	var err error
	if strings.HasPrefix(file, "gs://") {
		bucket, _, uriErr := exportfiles.ParseURI(file)
		if uriErr != nil {
			return nil, uriErr
		}
		data, err = exportfiles.NewStore(bucket).Fetch(ctx, file)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, err
	}

	var rows []row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing rows JSON: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(rows))
	for i, r := range rows {
		var date time.Time
		if r.Date != "" {
			date, err = time.Parse("2006-01-02", r.Date)
			if err != nil {
				return nil, fmt.Errorf("row %d: invalid date %q, want YYYY-MM-DD", i, r.Date)
			}
		}
		candidates = append(candidates, domain.Candidate{
			RawIdentity: r.RawIdentity,
			Category:    r.Category,
			Amount:      r.Amount,
			Date:        date,
			Project:     r.Project,
			Comments:    r.Comments,
			CardName:    r.CardName,
			Vendor:      r.Vendor,
			Currency:    r.Currency,
			Description: r.Description,
		})
	}
	return candidates, nil
}
