package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/valorops/expense-portal/internal/domain"
)

// ExpenseToNotionProperties converts a consolidated ledger row into the
// property set of the year-end Notion database. The Expense ID property
// carries the ledger row id for idempotency.
func ExpenseToNotionProperties(rec *domain.ConsolidatedRecord) notionapi.Properties {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.Name,
					},
				},
			},
		},
		"Expense ID": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.ID,
					},
				},
			},
		},
	}

	amount, _ := rec.Amount.Float64()
	props["Amount"] = notionapi.NumberProperty{
		Number: amount,
	}

	if rec.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: rec.Category,
			},
		}
	}

	if rec.Source != "" {
		props["Source"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: rec.Source,
			},
		}
	}

	if rec.EmployeeType != "" {
		props["Employee Type"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: rec.EmployeeType,
			},
		}
	}

	if rec.Vendor != "" {
		props["Vendor"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.Vendor,
					},
				},
			},
		}
	}

	if rec.Project != "" {
		props["Project"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.Project,
					},
				},
			},
		}
	}

	if !rec.Date.IsZero() {
		d := notionapi.Date(time.Date(
			rec.Date.Year(), rec.Date.Month(), rec.Date.Day(),
			0, 0, 0, 0, time.UTC,
		))
		props["Date"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: &d,
			},
		}
	}

	return props
}

// extractExpenseID reads the ledger row id back off a Notion page.
// Returns empty string for pages an older sync created without one.
func extractExpenseID(page notionapi.Page) string {
	if prop, ok := page.Properties["Expense ID"]; ok {
		if richText, ok := prop.(*notionapi.RichTextProperty); ok {
			if len(richText.RichText) > 0 {
				return richText.RichText[0].PlainText
			}
		}
	}
	return ""
}
