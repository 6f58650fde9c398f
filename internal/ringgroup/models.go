package ringgroup

import "time"

// CallAttempt is one fan-out voice dial. It transitions to exactly one
// terminal status; both transitions are guarded on the current status still
// being ringing, which is the router's core correctness property since
// multiple provider callbacks can race for the same attempt.
type CallAttempt struct {
	ID       string `json:"id" db:"id"`
	LeadID   string `json:"lead_id" db:"lead_id"`
	ClientID string `json:"client_id" db:"client_id"`

	Status Status `json:"status" db:"status"`

	// AnsweredBy is the winning team member id, set only on answered.
	AnsweredBy string     `json:"answered_by,omitempty" db:"answered_by"`
	AnsweredAt *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Status string

const (
	StatusRinging  Status = "ringing"
	StatusAnswered Status = "answered"
	StatusNoAnswer Status = "no-answer"
)
