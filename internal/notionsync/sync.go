package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/valorops/expense-portal/internal/logger"
	"github.com/valorops/expense-portal/internal/store"
)

// Result summarizes one sync run.
type Result struct {
	Created int
	Skipped int
	Deleted int
	Total   int
}

// SyncExpenses mirrors one year of the consolidated ledger into a
// Notion database:
//  1. query the ledger for the year
//  2. archive Notion pages whose ledger row no longer exists
//  3. create pages for ledger rows Notion does not have yet
//
// Existing pages are skipped, not rewritten: ledger rows are immutable
// once synced to Notion except through delete-and-resync.
func SyncExpenses(ctx context.Context, ledger store.LedgerStore, notionClient NotionService, notionDBID string, year int, dryRun bool) (*Result, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Int("year", year).
		Bool("dry_run", dryRun).
		Msg("Starting expense sync to Notion")

	expenses, err := ledger.List(ctx, store.ExpenseFilter{Year: year})
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	log.Info().Int("expense_count", len(expenses)).Msg("Retrieved consolidated expenses")

	validIDs := make(map[string]bool, len(expenses))
	for _, rec := range expenses {
		validIDs[rec.ID] = true
	}

	pages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("query Notion pages: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]bool, len(pages))
	result := &Result{Total: len(expenses)}

	// Pages without an expense id, or whose ledger row is gone, are
	// stale and get archived.
	for _, page := range pages {
		id := extractExpenseID(page)
		if id != "" && validIDs[id] {
			existing[id] = true
			continue
		}

		if dryRun {
			log.Info().
				Str("expense_id", id).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			result.Deleted++
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("expense_id", id).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			continue
		}
		result.Deleted++
	}

	for _, rec := range expenses {
		if existing[rec.ID] {
			result.Skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("expense_id", rec.ID).
				Str("name", rec.Name).
				Msg("[DRY RUN] Would create Notion page")
			result.Created++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, ExpenseToNotionProperties(rec))
		if err != nil {
			log.Warn().
				Err(err).
				Str("expense_id", rec.ID).
				Msg("Failed to create Notion page")
			continue
		}
		log.Debug().
			Str("expense_id", rec.ID).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
		result.Created++
	}

	log.Info().
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("deleted", result.Deleted).
		Int("total", result.Total).
		Msg("Expense sync completed")

	return result, nil
}

func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
