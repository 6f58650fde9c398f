package clients

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("clients: not found")

// Repository reads client settings. The engagement core never writes clients.
type Repository interface {
	Get(ctx context.Context, clientID string) (Client, error)

	// GetByNumber resolves the tenant for an inbound webhook by the dialed
	// or texted provider number.
	GetByNumber(ctx context.Context, phone string) (Client, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Get(ctx context.Context, clientID string) (Client, error) {
	const q = `
SELECT id, name, company_name, from_number, timezone,
       quiet_hours_start, quiet_hours_end, monthly_message_limit,
       created_at, updated_at
FROM clients
WHERE id = $1`

	var c Client
	err := r.db.QueryRowContext(ctx, q, clientID).Scan(
		&c.ID, &c.Name, &c.CompanyName, &c.FromNumber, &c.Timezone,
		&c.QuietHoursStart, &c.QuietHoursEnd, &c.MonthlyMessageLimit,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

func (r *PostgresRepo) GetByNumber(ctx context.Context, phone string) (Client, error) {
	const q = `
SELECT id, name, company_name, from_number, timezone,
       quiet_hours_start, quiet_hours_end, monthly_message_limit,
       created_at, updated_at
FROM clients
WHERE from_number = $1`

	var c Client
	err := r.db.QueryRowContext(ctx, q, phone).Scan(
		&c.ID, &c.Name, &c.CompanyName, &c.FromNumber, &c.Timezone,
		&c.QuietHoursStart, &c.QuietHoursEnd, &c.MonthlyMessageLimit,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, err
	}
	return c, nil
}
