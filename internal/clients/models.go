package clients

import "time"

// Client is a service-business tenant. All engagement data is scoped by
// client_id; cross-client reads are never allowed.
//
// Settings here are consumed read-only by the engagement core. Admin CRUD for
// clients lives outside this service.
type Client struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// CompanyName is the customer-facing business name used in templates.
	CompanyName string `json:"company_name" db:"company_name"`

	// FromNumber is the client's provisioned sending number (E.164).
	FromNumber string `json:"from_number" db:"from_number"`

	// Timezone is an IANA zone name, e.g. "America/Toronto".
	Timezone string `json:"timezone" db:"timezone"`

	// Quiet window bounds in local "HH:MM". Start may be after End for windows
	// that cross midnight (e.g. 22:00-08:00).
	QuietHoursStart string `json:"quiet_hours_start" db:"quiet_hours_start"`
	QuietHoursEnd   string `json:"quiet_hours_end" db:"quiet_hours_end"`

	// MonthlyMessageLimit is the plan allotment enforced by the gateway.
	// Zero means no plan limit is configured.
	MonthlyMessageLimit int `json:"monthly_message_limit" db:"monthly_message_limit"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Location resolves the client's IANA timezone, falling back to UTC when the
// zone is unset or unknown.
func (c Client) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
