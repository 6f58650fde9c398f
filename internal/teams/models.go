package teams

import "time"

// TeamMember is a client staff contact eligible for ring-group calls and
// hot-transfer SMS. This core reads team members; CRUD lives in the client
// admin surface outside this service.
type TeamMember struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`

	Name  string `json:"name" db:"name"`
	Phone string `json:"phone" db:"phone"`

	// Priority is the dial order; lower dials first when a provider supports
	// sequential fallback, and orders notification lists otherwise.
	Priority int `json:"priority" db:"priority"`

	ReceiveHotTransfers bool `json:"receive_hot_transfers" db:"receive_hot_transfers"`
	IsActive            bool `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Eligible reports whether the member may receive ring-group calls.
func (m TeamMember) Eligible() bool {
	return m.IsActive && m.ReceiveHotTransfers
}
