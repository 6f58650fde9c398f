package escalation

import "time"

// EscalationClaim is a pending hand-off of a conversation to a human.
//
// Invariants:
// - claim_token is opaque and unguessable; possessing it is the credential
//   for the claim link.
// - pending -> claimed and pending -> expired are the only transitions, both
//   conditional updates; there is no un-claiming.
// - SLA breach is an orthogonal observability flag, never a status.
type EscalationClaim struct {
	ID       string `json:"id" db:"id"`
	LeadID   string `json:"lead_id" db:"lead_id"`
	ClientID string `json:"client_id" db:"client_id"`

	ClaimToken string `json:"-" db:"claim_token"`

	Reason string `json:"reason" db:"reason"`

	// LastLeadMessage is a context snapshot for the claiming human.
	LastLeadMessage string `json:"last_lead_message,omitempty" db:"last_lead_message"`

	Status Status `json:"status" db:"status"`

	ClaimedBy string     `json:"claimed_by,omitempty" db:"claimed_by"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty" db:"claimed_at"`

	Resolution      string     `json:"resolution,omitempty" db:"resolution"`
	ResolutionNotes string     `json:"resolution_notes,omitempty" db:"resolution_notes"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`

	SLABreachedAt *time.Time `json:"sla_breached_at,omitempty" db:"sla_breached_at"`

	NotifiedAt time.Time `json:"notified_at" db:"notified_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type Status string

const (
	StatusPending Status = "pending"
	StatusClaimed Status = "claimed"
	StatusExpired Status = "expired"
)

// ClaimFailure is the typed outcome of a failed claim attempt; the claim-link
// error page renders a different message per value.
type ClaimFailure string

const (
	FailureNone           ClaimFailure = ""
	FailureInvalid        ClaimFailure = "invalid"
	FailureAlreadyClaimed ClaimFailure = "already_claimed"
	FailureExpired        ClaimFailure = "expired"
)

// Escalation reasons recorded on enqueue.
const (
	ReasonExplicitRequest = "explicit_request"
	ReasonSentiment       = "negative_sentiment"
	ReasonSLABreach       = "sla_breach"
	ReasonRuleMatch       = "rule_match"
)
