package ringgroup

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("ringgroup: not found")
	ErrInvalidArgument = errors.New("ringgroup: invalid argument")
)

// Repository persists call attempts.
//
// ClaimAnswered and MarkNoAnswer are compare-and-set transitions: a single
// conditional UPDATE whose WHERE clause requires status = 'ringing'. They
// return whether the transition fired so the router can distinguish the
// winning callback from a late or duplicate one. A read-then-write here would
// reintroduce the race the design eliminates.
type Repository interface {
	Create(ctx context.Context, a CallAttempt) error
	Get(ctx context.Context, id string) (CallAttempt, error)

	ClaimAnswered(ctx context.Context, id, memberID string, at time.Time) (bool, error)
	MarkNoAnswer(ctx context.Context, id string, at time.Time) (bool, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, a CallAttempt) error {
	if a.ID == "" || a.ClientID == "" || a.LeadID == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO call_attempts (id, lead_id, client_id, status, created_at)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q, a.ID, a.LeadID, a.ClientID, a.Status, a.CreatedAt)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (CallAttempt, error) {
	const q = `
SELECT id, lead_id, client_id, status, COALESCE(answered_by, ''), answered_at, ended_at, created_at
FROM call_attempts
WHERE id = $1`
	var a CallAttempt
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&a.ID, &a.LeadID, &a.ClientID, &a.Status, &a.AnsweredBy,
		&a.AnsweredAt, &a.EndedAt, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CallAttempt{}, ErrNotFound
	}
	if err != nil {
		return CallAttempt{}, err
	}
	return a, nil
}

func (r *PostgresRepo) ClaimAnswered(ctx context.Context, id, memberID string, at time.Time) (bool, error) {
	const q = `
UPDATE call_attempts
SET status = $2, answered_by = $3, answered_at = $4
WHERE id = $1 AND status = $5`
	return r.condExec(ctx, q, id, StatusAnswered, memberID, at.UTC(), StatusRinging)
}

func (r *PostgresRepo) MarkNoAnswer(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `
UPDATE call_attempts
SET status = $2, ended_at = $3
WHERE id = $1 AND status = $4`
	return r.condExec(ctx, q, id, StatusNoAnswer, at.UTC(), StatusRinging)
}

func (r *PostgresRepo) condExec(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
