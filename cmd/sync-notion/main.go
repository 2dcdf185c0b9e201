// Command sync-notion mirrors one year of the consolidated ledger into
// the year-end review database in Notion.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	infraBQ "github.com/valorops/expense-portal/internal/infra/bigquery"
	"github.com/valorops/expense-portal/internal/logger"
	"github.com/valorops/expense-portal/internal/notionsync"
)

func main() {
	_ = godotenv.Load()
	log := logger.New("sync-notion")

	year := flag.Int("year", time.Now().Year(), "Ledger year to sync")
	notionToken := flag.String("notion-token", os.Getenv("NOTION_TOKEN"), "Notion API token (or set NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", os.Getenv("NOTION_DB_ID"), "Notion database ID (or set NOTION_DB_ID)")
	dryRun := flag.Bool("dry-run", false, "Preview changes without writing to Notion")
	flag.Parse()

	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token or NOTION_TOKEN is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id or NOTION_DB_ID is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	ledger, err := infraBQ.NewLedgerRepository(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger repository")
	}
	defer ledger.Close()

	notionClient := notionsync.NewNotionClient(*notionToken)

	result, err := notionsync.SyncExpenses(ctx, ledger, notionClient, *notionDBID, *year, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d skipped, %d archived (of %d ledger rows)\n",
		result.Created, result.Skipped, result.Deleted, result.Total)
}
