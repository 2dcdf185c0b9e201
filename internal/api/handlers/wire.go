// Package handlers implements the portal's HTTP surface on the stdlib
// mux. Routing lives in cmd/api; each handler struct owns one resource.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valorops/expense-portal/internal/api/middleware"
	"github.com/valorops/expense-portal/internal/domain"
)

// candidatePayload is the wire form of a parsed expense row. Dates
// arrive as "2006-01-02" from the frontend; RFC 3339 is accepted too.
type candidatePayload struct {
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

func (p candidatePayload) toDomain() (domain.Candidate, error) {
	var date time.Time
	if p.Date != "" {
		var err error
		date, err = parseDate(p.Date)
		if err != nil {
			return domain.Candidate{}, err
		}
	}
	return domain.Candidate{
		RawIdentity: p.RawIdentity,
		Category:    p.Category,
		Amount:      p.Amount,
		Date:        date,
		Project:     p.Project,
		Comments:    p.Comments,
		CardName:    p.CardName,
		Vendor:      p.Vendor,
		Currency:    p.Currency,
		Description: p.Description,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func toCandidates(payloads []candidatePayload) ([]domain.Candidate, error) {
	candidates := make([]domain.Candidate, 0, len(payloads))
	for i, p := range payloads {
		c, err := p.toDomain()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFound(err):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case domain.IsValidation(err), errors.Is(err, domain.ErrEmptyBatch):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
