package identity

import (
	"context"
	"testing"

	"github.com/valorops/expense-portal/internal/domain"
	"github.com/valorops/expense-portal/internal/infra/memory"
)

func testResolver() *Resolver {
	aliases := memory.NewAliasStore(
		domain.IdentityAlias{RawName: "dsmith", CanonicalName: "Doug Smith", EmployeeType: "Employee"},
		domain.IdentityAlias{RawName: "J Douglas Smith", CanonicalName: "Doug Smith", EmployeeType: "Employee"},
		domain.IdentityAlias{RawName: "m.ivanova", CanonicalName: "Maria Ivanova", EmployeeType: "Contractor"},
	)
	return NewResolver(aliases)
}

func TestResolver_Resolve(t *testing.T) {
	r := testResolver()
	ctx := context.Background()

	tests := []struct {
		name        string
		raw         string
		wantName    string
		wantType    string
		wantMatched bool
	}{
		{
			name:        "exact canonical name",
			raw:         "Doug Smith",
			wantName:    "Doug Smith",
			wantType:    "Employee",
			wantMatched: true,
		},
		{
			name:        "canonical case insensitive",
			raw:         "doug smith",
			wantName:    "Doug Smith",
			wantType:    "Employee",
			wantMatched: true,
		},
		{
			name:        "canonical with extra whitespace",
			raw:         "  Doug   Smith ",
			wantName:    "Doug Smith",
			wantType:    "Employee",
			wantMatched: true,
		},
		{
			name:        "alias lookup",
			raw:         "dsmith",
			wantName:    "Doug Smith",
			wantType:    "Employee",
			wantMatched: true,
		},
		{
			name:        "alias with periods stripped",
			raw:         "J. Douglas Smith",
			wantName:    "Doug Smith",
			wantType:    "Employee",
			wantMatched: true,
		},
		{
			name:        "alias stored with period",
			raw:         "M.Ivanova",
			wantName:    "Maria Ivanova",
			wantType:    "Contractor",
			wantMatched: true,
		},
		{
			name:        "unmapped raw name passes through",
			raw:         "Unknown Person",
			wantName:    "Unknown Person",
			wantType:    "",
			wantMatched: false,
		},
		{
			name:        "empty raw name",
			raw:         "",
			wantName:    "",
			wantType:    "",
			wantMatched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tt.raw)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.raw, err)
			}
			if got.Name != tt.wantName {
				t.Errorf("Resolve(%q).Name = %q, want %q", tt.raw, got.Name, tt.wantName)
			}
			if got.EmployeeType != tt.wantType {
				t.Errorf("Resolve(%q).EmployeeType = %q, want %q", tt.raw, got.EmployeeType, tt.wantType)
			}
			if got.Matched != tt.wantMatched {
				t.Errorf("Resolve(%q).Matched = %v, want %v", tt.raw, got.Matched, tt.wantMatched)
			}
		})
	}
}

func TestResolver_Invalidate(t *testing.T) {
	ctx := context.Background()
	aliases := memory.NewAliasStore()
	r := NewResolver(aliases)

	got, err := r.Resolve(ctx, "newhire")
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if got.Matched {
		t.Fatalf("Resolve before alias exists: Matched = true, want false")
	}

	if err := aliases.PutAlias(ctx, domain.IdentityAlias{
		RawName: "newhire", CanonicalName: "New Hire", EmployeeType: "Employee",
	}); err != nil {
		t.Fatalf("PutAlias error = %v", err)
	}

	// The cache is still warm; the new alias is invisible until
	// Invalidate.
	got, err = r.Resolve(ctx, "newhire")
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if got.Matched {
		t.Errorf("Resolve with stale cache: Matched = true, want false")
	}

	r.Invalidate()

	got, err = r.Resolve(ctx, "newhire")
	if err != nil {
		t.Fatalf("Resolve error = %v", err)
	}
	if !got.Matched || got.Name != "New Hire" {
		t.Errorf("Resolve after Invalidate = %+v, want New Hire matched", got)
	}
}

func TestResolver_CanonicalNames(t *testing.T) {
	r := testResolver()

	names, err := r.CanonicalNames(context.Background())
	if err != nil {
		t.Fatalf("CanonicalNames error = %v", err)
	}

	want := map[string]bool{"Doug Smith": true, "Maria Ivanova": true}
	if len(names) != len(want) {
		t.Fatalf("CanonicalNames returned %d names, want %d: %v", len(names), len(want), names)
	}
	for _, n := range names {
		if !want[n] {
			t.Errorf("CanonicalNames returned unexpected name %q", n)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Doug Smith", "doug smith"},
		{"  Doug   Smith  ", "doug smith"},
		{"DOUG SMITH", "doug smith"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeKey(tt.input); got != tt.want {
				t.Errorf("normalizeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
