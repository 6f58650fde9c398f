package teams

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("teams: not found")

// Repository reads team members; this core never writes them.
type Repository interface {
	Get(ctx context.Context, clientID, memberID string) (TeamMember, error)

	// ListEligible returns active hot-transfer members ordered by priority.
	ListEligible(ctx context.Context, clientID string) ([]TeamMember, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Get(ctx context.Context, clientID, memberID string) (TeamMember, error) {
	const q = `
SELECT id, client_id, name, phone, priority, receive_hot_transfers, is_active, created_at
FROM team_members
WHERE client_id = $1 AND id = $2`

	var m TeamMember
	err := r.db.QueryRowContext(ctx, q, clientID, memberID).Scan(
		&m.ID, &m.ClientID, &m.Name, &m.Phone, &m.Priority,
		&m.ReceiveHotTransfers, &m.IsActive, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return TeamMember{}, ErrNotFound
	}
	if err != nil {
		return TeamMember{}, err
	}
	return m, nil
}

func (r *PostgresRepo) ListEligible(ctx context.Context, clientID string) ([]TeamMember, error) {
	const q = `
SELECT id, client_id, name, phone, priority, receive_hot_transfers, is_active, created_at
FROM team_members
WHERE client_id = $1 AND is_active = true AND receive_hot_transfers = true
ORDER BY priority ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, q, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(
			&m.ID, &m.ClientID, &m.Name, &m.Phone, &m.Priority,
			&m.ReceiveHotTransfers, &m.IsActive, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
