// Package notionsync mirrors the consolidated ledger for one year into
// a Notion database, where finance runs the year-end review. The ledger
// row id is stored on each page, which makes the sync idempotent and
// lets stale pages be archived when their ledger rows disappear.
package notionsync

import (
	"context"

	"github.com/jomei/notionapi"
)

// NotionService is the Notion API subset the sync uses. An interface so
// tests can run against a fake.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, filter *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	DeletePage(ctx context.Context, pageID string) error
}
