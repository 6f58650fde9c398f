package sequence

import "time"

// ScheduledMessage is one pending or dispatched step of a drip sequence.
//
// Invariants:
// - sent XOR cancelled XOR pending; a row is never both sent and cancelled.
// - Terminal once sent or cancelled; both marks are conditional updates that
//   only fire while the row is still pending.
type ScheduledMessage struct {
	ID       string `json:"id" db:"id"`
	LeadID   string `json:"lead_id" db:"lead_id"`
	ClientID string `json:"client_id" db:"client_id"`

	SequenceType SequenceType `json:"sequence_type" db:"sequence_type"`

	// SequenceStep is 1-based within the sequence.
	SequenceStep int `json:"sequence_step" db:"sequence_step"`

	// Body is the fully rendered message content.
	Body string `json:"body" db:"body"`

	SendAt time.Time `json:"send_at" db:"send_at"`

	Sent   bool       `json:"sent" db:"sent"`
	SentAt *time.Time `json:"sent_at,omitempty" db:"sent_at"`

	Cancelled       bool   `json:"cancelled" db:"cancelled"`
	CancelledReason string `json:"cancelled_reason,omitempty" db:"cancelled_reason"`

	// ProviderSID is the transport message id once sent.
	ProviderSID string `json:"provider_sid,omitempty" db:"provider_sid"`

	// Attempts counts delivery tries across dispatch ticks.
	Attempts int `json:"attempts" db:"attempts"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Pending reports whether the row is still dispatchable.
func (m ScheduledMessage) Pending() bool { return !m.Sent && !m.Cancelled }

type SequenceType string

const (
	TypeAppointmentReminder SequenceType = "appointment_reminder"
	TypeEstimateFollowup    SequenceType = "estimate_followup"
	TypeReviewRequest       SequenceType = "review_request"
	TypeReferralRequest     SequenceType = "referral_request"
	TypePaymentReminder     SequenceType = "payment_reminder"

	// TypeMissedCallFollowup is the single-step text-back scheduled when a
	// ring-group dial ends unanswered.
	TypeMissedCallFollowup SequenceType = "missed_call_followup"
)

func (t SequenceType) Valid() bool {
	switch t {
	case TypeAppointmentReminder, TypeEstimateFollowup, TypeReviewRequest,
		TypeReferralRequest, TypePaymentReminder, TypeMissedCallFollowup:
		return true
	default:
		return false
	}
}

// Cancellation reasons written by the scheduler itself.
const (
	ReasonSuperseded     = "superseded"
	ReasonDeliveryFailed = "delivery_failed"
	ReasonLeadOptedOut   = "lead_opted_out"
)
