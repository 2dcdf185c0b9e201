// Package dedup computes stable fingerprints for incoming expense rows
// so that re-parsing an unchanged source export yields the same keys.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/valorops/expense-portal/internal/domain"
)

const dateFormat = "2006-01-02"

// Fingerprint derives the dedup key for a candidate: a SHA-256 over the
// normalized identity, date, amount and a source-specific discriminator.
// The raw identity (not the resolved one) goes into the key, so adding
// an alias later does not re-classify previously staged rows.
func Fingerprint(source domain.Source, c domain.Candidate) string {
	parts := []string{
		string(source),
		normalize(c.RawIdentity),
		c.Date.Format(dateFormat),
		c.Amount.String(),
		discriminator(source, c),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// discriminator distinguishes two same-day, same-amount purchases by the
// same person: the transaction description for credit cards and ride
// exports, the vendor name for payroll reimbursements.
func discriminator(source domain.Source, c domain.Candidate) string {
	switch source {
	case domain.SourcePayroll:
		return normalize(c.Vendor)
	default:
		return normalize(c.Description)
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
