package leads

import "time"

// Lead is a prospective customer owned by exactly one client.
//
// Invariants:
// - Leads are never deleted, only status-transitioned.
// - actionRequired and conversationMode are shared across subsystems; writers
//   must use the narrow partial-update repository methods, never a full-row
//   overwrite, so concurrent writers cannot clobber each other.
type Lead struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`

	// Phone is E.164.
	Phone string `json:"phone" db:"phone"`
	Name  string `json:"name" db:"name"`

	Status Status `json:"status" db:"status"`

	ConversationMode ConversationMode `json:"conversation_mode" db:"conversation_mode"`
	ActionRequired   bool             `json:"action_required" db:"action_required"`

	// Timezone, when set, overrides the client timezone for quiet-hours math.
	Timezone string `json:"timezone,omitempty" db:"timezone"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusNew                  Status = "new"
	StatusContacted            Status = "contacted"
	StatusEstimateSent         Status = "estimate_sent"
	StatusAppointmentScheduled Status = "appointment_scheduled"
	StatusActionRequired       Status = "action_required"
	StatusWon                  Status = "won"
	StatusLost                 Status = "lost"
	StatusOptedOut             Status = "opted_out"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusContacted, StatusEstimateSent, StatusAppointmentScheduled,
		StatusActionRequired, StatusWon, StatusLost, StatusOptedOut:
		return true
	default:
		return false
	}
}

type ConversationMode string

const (
	ModeAI    ConversationMode = "ai"
	ModeHuman ConversationMode = "human"
)
