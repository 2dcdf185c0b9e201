package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/valorops/expense-portal/internal/domain"
)

func candidate(identity, desc, vendor string) domain.Candidate {
	return domain.Candidate{
		RawIdentity: identity,
		Amount:      decimal.RequireFromString("42.50"),
		Date:        time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Description: desc,
		Vendor:      vendor,
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	c := candidate("Doug Smith", "UBER TRIP 1234", "")

	a := Fingerprint(domain.SourceCreditCard, c)
	b := Fingerprint(domain.SourceCreditCard, c)
	if a != b {
		t.Errorf("Fingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func TestFingerprint_NormalizesIdentityAndDiscriminator(t *testing.T) {
	base := Fingerprint(domain.SourceCreditCard, candidate("Doug Smith", "uber trip", ""))

	tests := []struct {
		name string
		c    domain.Candidate
		same bool
	}{
		{"case folded identity", candidate("DOUG SMITH", "uber trip", ""), true},
		{"collapsed whitespace", candidate("  Doug   Smith ", "uber  trip", ""), true},
		{"different identity", candidate("Maria Ivanova", "uber trip", ""), false},
		{"different description", candidate("Doug Smith", "lyft trip", ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fingerprint(domain.SourceCreditCard, tt.c)
			if (got == base) != tt.same {
				t.Errorf("Fingerprint match = %v, want %v", got == base, tt.same)
			}
		})
	}
}

func TestFingerprint_SourceScoped(t *testing.T) {
	c := candidate("Doug Smith", "lunch", "")

	cc := Fingerprint(domain.SourceCreditCard, c)
	ride := Fingerprint(domain.SourceRideHistory, c)
	if cc == ride {
		t.Errorf("same row fingerprinted identically across sources")
	}
}

func TestFingerprint_PayrollUsesVendor(t *testing.T) {
	a := candidate("Doug Smith", "ignored", "Office Depot")
	b := candidate("Doug Smith", "different description", "Office Depot")
	c := candidate("Doug Smith", "ignored", "Staples")

	fpA := Fingerprint(domain.SourcePayroll, a)
	fpB := Fingerprint(domain.SourcePayroll, b)
	fpC := Fingerprint(domain.SourcePayroll, c)

	if fpA != fpB {
		t.Errorf("payroll fingerprint varies with description; vendor should be the discriminator")
	}
	if fpA == fpC {
		t.Errorf("payroll fingerprint ignores vendor change")
	}
}

func TestFingerprint_AmountAndDate(t *testing.T) {
	base := candidate("Doug Smith", "lunch", "")

	changedAmount := base
	changedAmount.Amount = decimal.RequireFromString("42.51")
	if Fingerprint(domain.SourceManual, base) == Fingerprint(domain.SourceManual, changedAmount) {
		t.Errorf("fingerprint ignores amount change")
	}

	changedDate := base
	changedDate.Date = base.Date.AddDate(0, 0, 1)
	if Fingerprint(domain.SourceManual, base) == Fingerprint(domain.SourceManual, changedDate) {
		t.Errorf("fingerprint ignores date change")
	}

	// Time-of-day must not matter; only the calendar date is keyed.
	withTime := base
	withTime.Date = base.Date.Add(13 * time.Hour)
	if Fingerprint(domain.SourceManual, base) != Fingerprint(domain.SourceManual, withTime) {
		t.Errorf("fingerprint varies with time of day")
	}
}
