// Package categorize suggests expense categories for raw transaction
// descriptions using Gemini, constrained to the portal's fixed category
// vocabulary. It is a collaborator of the ingestion flow: suggestions
// feed the preview screen and are never written anywhere by this
// package.
package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for categorization.
const DefaultModelName = "gemini-2.5-flash"

// Categories is the fixed vocabulary the portal reports against. The
// model must answer with one of these or an empty string.
var Categories = []string{
	"Airfare",
	"Board meetings",
	"Catering - Event",
	"Computer Equipment",
	"Conferences & Seminars",
	"Delivery and Postage",
	"Gifts",
	"Ground Transportation - Local",
	"Ground Transportation - Travel",
	"IT Subscriptions",
	"Lodging",
	"Meals & Entertainment - Local",
	"Meals & Entertainment - Travel",
	"Membership Dues",
	"Miscellaneous",
	"Office Supplies",
	"Pantry Food",
	"Personal Expenses",
	"Printing",
	"Telephone/Internet",
	"Training",
	"Travel Agent Fees",
}

// Suggester maps transaction descriptions to category suggestions.
// The interface exists so handlers can be tested without a model call.
type Suggester interface {
	Suggest(ctx context.Context, descriptions []string) ([]string, error)
}

// GeminiSuggester is the Gemini-backed Suggester.
type GeminiSuggester struct {
	model string
}

// NewGeminiSuggester creates a suggester using the default model.
func NewGeminiSuggester() *GeminiSuggester {
	return &GeminiSuggester{model: DefaultModelName}
}

// Suggest sends one batch of descriptions to the model and returns one
// category per description, in input order. Unrecognizable descriptions
// come back as empty strings; the caller leaves those uncategorized.
func (g *GeminiSuggester) Suggest(ctx context.Context, descriptions []string) ([]string, error) {
	if len(descriptions) == 0 {
		return nil, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("categorize: create genai client: %w", err)
	}

	prompt, err := buildPrompt(descriptions)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("categorize: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("categorize: empty response from model")
	}

	var suggestions []string
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &suggestions); err != nil {
		return nil, fmt.Errorf("categorize: unmarshal response: %w\nraw response: %s", err, rawText)
	}
	if len(suggestions) != len(descriptions) {
		return nil, fmt.Errorf("categorize: got %d suggestions for %d descriptions", len(suggestions), len(descriptions))
	}

	// Drop anything outside the vocabulary rather than trusting the model.
	valid := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		valid[c] = true
	}
	for i, s := range suggestions {
		if !valid[s] {
			suggestions[i] = ""
		}
	}
	return suggestions, nil
}

func buildPrompt(descriptions []string) (string, error) {
	payload, err := json.Marshal(descriptions)
	if err != nil {
		return "", fmt.Errorf("categorize: marshal descriptions: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are an expense categorization assistant. Categorize each expense description into one of the following categories:\n\n")
	for _, c := range Categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nRules:\n")
	b.WriteString("1. Airlines (American, Delta, United, LATAM, Qatar) are \"Airfare\".\n")
	b.WriteString("2. Hotels (Hilton, Marriott, Hyatt, Airbnb) are \"Lodging\".\n")
	b.WriteString("3. Any restaurant, fast-food chain or coffee shop is \"Meals & Entertainment - Travel\".\n")
	b.WriteString("4. For Ground Transportation and Meals & Entertainment, default to the \"- Travel\" suffix.\n")
	b.WriteString("5. If no category fits, use an empty string \"\".\n")
	b.WriteString("\nHere are the expense descriptions to categorize:\n")
	b.Write(payload)
	b.WriteString("\n\nReturn ONLY a valid JSON array of strings, one per description, nothing else.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	return b.String(), nil
}

// cleanModelJSON strips Markdown fences and surrounding junk when the
// model ignores the output instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
