package plans

import (
	"context"
	"database/sql"
	"time"
)

// Repository persists durable plan usage and the monthly reset marker.
type Repository interface {
	// RecordUsage increments the month-keyed usage row by n.
	RecordUsage(ctx context.Context, clientID, month string, n int) error

	// MarkReset records that the reset cron ran for month. Returns true only
	// on the first call for that month.
	MarkReset(ctx context.Context, month string, at time.Time) (bool, error)

	// Usage reads the durable usage counter for a month.
	Usage(ctx context.Context, clientID, month string) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) RecordUsage(ctx context.Context, clientID, month string, n int) error {
	const q = `
INSERT INTO plan_usage (client_id, month, messages_sent, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (client_id, month)
DO UPDATE SET messages_sent = plan_usage.messages_sent + EXCLUDED.messages_sent,
              updated_at = now()`
	_, err := r.db.ExecContext(ctx, q, clientID, month, n)
	return err
}

func (r *PostgresRepo) MarkReset(ctx context.Context, month string, at time.Time) (bool, error) {
	const q = `
INSERT INTO plan_resets (month, reset_at)
VALUES ($1, $2)
ON CONFLICT (month) DO NOTHING`
	res, err := r.db.ExecContext(ctx, q, month, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepo) Usage(ctx context.Context, clientID, month string) (int, error) {
	const q = `SELECT messages_sent FROM plan_usage WHERE client_id = $1 AND month = $2`
	var n int
	err := r.db.QueryRowContext(ctx, q, clientID, month).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}
