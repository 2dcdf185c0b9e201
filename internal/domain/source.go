package domain

import "fmt"

// Source identifies which ingestion pipeline a staging record came from.
// Each source has its own staging table, its own batch table and its own
// sync policy; the consolidated ledger is the only shared table.
type Source string

const (
	SourceCreditCard  Source = "credit_card"
	SourcePayroll     Source = "payroll"
	SourceRideHistory Source = "ride_history"
	SourceManual      Source = "manual"
)

// Sources lists every known source in a stable order.
var Sources = []Source{SourceCreditCard, SourcePayroll, SourceRideHistory, SourceManual}

// ParseSource converts a path/query parameter into a Source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceCreditCard, SourcePayroll, SourceRideHistory, SourceManual:
		return Source(s), nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Label returns the human-readable form stored in the consolidated
// ledger's source column.
func (s Source) Label() string {
	switch s {
	case SourceCreditCard:
		return "Credit Card"
	case SourcePayroll:
		return "Payroll"
	case SourceRideHistory:
		return "Ride History"
	case SourceManual:
		return "Manual"
	}
	return string(s)
}

// SyncPolicy controls when staging records are propagated into the
// consolidated ledger.
type SyncPolicy string

const (
	// PolicyPushOnWrite syncs every member record synchronously inside
	// CreateBatch, so the ledger reflects the upload immediately.
	PolicyPushOnWrite SyncPolicy = "push_on_write"

	// PolicyPullOnDemand accumulates records with Synced=false until an
	// explicit sync call; used where a human assigns categories first.
	PolicyPullOnDemand SyncPolicy = "pull_on_demand"
)

// DefaultPolicies maps each source to its sync policy. Payroll and ride
// exports arrive pre-categorized and go straight to the ledger; credit
// card statements and manual entries wait for category review.
func DefaultPolicies() map[Source]SyncPolicy {
	return map[Source]SyncPolicy{
		SourceCreditCard:  PolicyPullOnDemand,
		SourcePayroll:     PolicyPushOnWrite,
		SourceRideHistory: PolicyPushOnWrite,
		SourceManual:      PolicyPullOnDemand,
	}
}
