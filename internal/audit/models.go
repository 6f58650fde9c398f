package audit

import "time"

// Event is an immutable, append-only compliance audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - client_id is required for tenancy isolation.
// - One event is written per send decision, whether the send was allowed,
//   deferred, or blocked; regulatory reporting reads these rows.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`

	Type EventType `json:"type" db:"type"`

	// Recipient is the destination phone number (E.164).
	Recipient string `json:"recipient,omitempty" db:"recipient"`

	// Category is the message category (marketing, transactional, ...).
	Category string `json:"category,omitempty" db:"category"`

	// Outcome is allowed | blocked | deferred for send decisions.
	Outcome string `json:"outcome,omitempty" db:"outcome"`

	// Reason carries the machine-readable block/defer reason, if any.
	Reason string `json:"reason,omitempty" db:"reason"`

	// Target identifiers (optional, depending on the event type).
	LeadID    string `json:"lead_id,omitempty" db:"lead_id"`
	MessageID string `json:"message_id,omitempty" db:"message_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeSendDecision EventType = "send_decision"
	EventTypeOptOut       EventType = "opt_out"
	EventTypeQuotaReset   EventType = "quota_reset"
)
