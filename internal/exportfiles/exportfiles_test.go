package exportfiles

import (
	"strings"
	"testing"

	"github.com/valorops/expense-portal/internal/domain"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "valid uri",
			uri:        "gs://my-bucket/exports/credit_card/2026/08/30/abc-statement.xlsx",
			wantBucket: "my-bucket",
			wantObject: "exports/credit_card/2026/08/30/abc-statement.xlsx",
		},
		{
			name:    "missing scheme",
			uri:     "my-bucket/file.csv",
			wantErr: true,
		},
		{
			name:    "bucket only",
			uri:     "gs://my-bucket",
			wantErr: true,
		},
		{
			name:    "empty object path",
			uri:     "gs://my-bucket/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if bucket != tt.wantBucket {
				t.Errorf("bucket = %q, want %q", bucket, tt.wantBucket)
			}
			if object != tt.wantObject {
				t.Errorf("object = %q, want %q", object, tt.wantObject)
			}
		})
	}
}

func TestObjectName(t *testing.T) {
	name := ObjectName(domain.SourceCreditCard, "/tmp/uploads/statement.xlsx")

	if !strings.HasPrefix(name, "exports/credit_card/") {
		t.Errorf("ObjectName = %q, want exports/credit_card/ prefix", name)
	}
	if !strings.HasSuffix(name, "-statement.xlsx") {
		t.Errorf("ObjectName = %q, want -statement.xlsx suffix", name)
	}
	if strings.Contains(name, "/tmp/") {
		t.Errorf("ObjectName = %q leaked the local directory", name)
	}

	// The uuid component makes repeated uploads of the same file
	// distinct objects.
	if other := ObjectName(domain.SourceCreditCard, "statement.xlsx"); other == name {
		t.Errorf("two ObjectName calls collided: %q", name)
	}
}
