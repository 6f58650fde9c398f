package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ComplianceReportRequest requests the send-decision breakdown for a client
// over a date range. Client isolation: ClientID is required.

type ComplianceReportRequest struct {
	ClientID string    `json:"client_id"`
	Range    TimeRange `json:"range"`

	// Category optionally narrows to marketing or transactional decisions.
	Category string `json:"category,omitempty"`
}

type ComplianceReport struct {
	ClientID string    `json:"client_id"`
	Range    TimeRange `json:"range"`
	Category string    `json:"category,omitempty"`

	TotalDecisions int `json:"total_decisions"`
	Allowed        int `json:"allowed"`
	Blocked        int `json:"blocked"`
	Deferred       int `json:"deferred"`

	// BlockedByReason breaks the blocked count down by the machine-readable
	// reason (dnc_listed, opted_out, no_consent, quiet_hours, ...).
	BlockedByReason map[string]int `json:"blocked_by_reason"`

	// ByCategory splits decisions by message category.
	ByCategory map[string]CategoryCounts `json:"by_category"`

	OptOuts int `json:"opt_outs"`
}

type CategoryCounts struct {
	Allowed  int `json:"allowed"`
	Blocked  int `json:"blocked"`
	Deferred int `json:"deferred"`
}
