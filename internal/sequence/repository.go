package sequence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"engagement-platform/pkg/utils"
)

var (
	ErrNotFound        = errors.New("sequence: not found")
	ErrInvalidArgument = errors.New("sequence: invalid argument")
)

// Repository is the persistence contract for scheduled messages.
//
// The terminal marks (MarkSent, MarkCancelled) and Reschedule are conditional
// updates guarded on the row still being pending; they report whether the
// transition fired so callers can distinguish a win from a lost race.
type Repository interface {
	// Supersede atomically cancels every pending message for the lead (all
	// sequence types) and inserts the new set in one transaction.
	Supersede(ctx context.Context, clientID, leadID, reason string, msgs []ScheduledMessage) (cancelled int, err error)

	// CancelPending cancels pending messages for the lead; only filters by
	// sequence type when it is non-empty. Idempotent.
	CancelPending(ctx context.Context, clientID, leadID string, only SequenceType, reason string) (int, error)

	// ListDue returns pending rows with send_at <= now, oldest first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]ScheduledMessage, error)

	MarkSent(ctx context.Context, id, providerSID string, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id, reason string, at time.Time) (bool, error)

	// Reschedule moves a pending row's send_at (quiet-hours deferral).
	Reschedule(ctx context.Context, id string, sendAt time.Time) (bool, error)

	// IncrementAttempts bumps the delivery attempt counter, returning the new
	// cumulative count.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	ListByLead(ctx context.Context, clientID, leadID string) ([]ScheduledMessage, error)
}

type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const cancelPendingSQL = `
UPDATE scheduled_messages
SET cancelled = true, cancelled_reason = $3, updated_at = $4
WHERE client_id = $1 AND lead_id = $2
  AND sent = false AND cancelled = false`

func (r *PostgresRepo) Supersede(ctx context.Context, clientID, leadID, reason string, msgs []ScheduledMessage) (int, error) {
	if clientID == "" || leadID == "" {
		return 0, ErrInvalidArgument
	}
	now := r.clock().UTC()

	var cancelled int64
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, cancelPendingSQL, clientID, leadID, reason, now)
		if err != nil {
			return err
		}
		cancelled, err = res.RowsAffected()
		if err != nil {
			return err
		}

		const ins = `
INSERT INTO scheduled_messages (id, lead_id, client_id, sequence_type, sequence_step,
                                body, send_at, sent, cancelled, attempts, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, false, false, 0, $8, $8)`
		for _, m := range msgs {
			if _, err := tx.ExecContext(ctx, ins,
				m.ID, m.LeadID, m.ClientID, m.SequenceType, m.SequenceStep,
				m.Body, m.SendAt.UTC(), now,
			); err != nil {
				return err
			}
		}
		return nil
	})
	return int(cancelled), err
}

func (r *PostgresRepo) CancelPending(ctx context.Context, clientID, leadID string, only SequenceType, reason string) (int, error) {
	if clientID == "" || leadID == "" {
		return 0, ErrInvalidArgument
	}
	now := r.clock().UTC()

	q := cancelPendingSQL
	args := []any{clientID, leadID, reason, now}
	if only != "" {
		q += ` AND sequence_type = $5`
		args = append(args, only)
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *PostgresRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]ScheduledMessage, error) {
	const q = `
SELECT id, lead_id, client_id, sequence_type, sequence_step, body, send_at,
       sent, sent_at, cancelled, cancelled_reason, provider_sid, attempts,
       created_at, updated_at
FROM scheduled_messages
WHERE send_at <= $1 AND sent = false AND cancelled = false
ORDER BY send_at ASC
LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *PostgresRepo) MarkSent(ctx context.Context, id, providerSID string, at time.Time) (bool, error) {
	const q = `
UPDATE scheduled_messages
SET sent = true, sent_at = $2, provider_sid = $3, updated_at = $2
WHERE id = $1 AND sent = false AND cancelled = false`
	return r.condExec(ctx, q, id, at.UTC(), providerSID)
}

func (r *PostgresRepo) MarkCancelled(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	const q = `
UPDATE scheduled_messages
SET cancelled = true, cancelled_reason = $2, updated_at = $3
WHERE id = $1 AND sent = false AND cancelled = false`
	return r.condExec(ctx, q, id, reason, at.UTC())
}

func (r *PostgresRepo) Reschedule(ctx context.Context, id string, sendAt time.Time) (bool, error) {
	const q = `
UPDATE scheduled_messages
SET send_at = $2, updated_at = $3
WHERE id = $1 AND sent = false AND cancelled = false`
	return r.condExec(ctx, q, id, sendAt.UTC(), r.clock().UTC())
}

func (r *PostgresRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	const q = `
UPDATE scheduled_messages
SET attempts = attempts + 1, updated_at = $2
WHERE id = $1
RETURNING attempts`
	var n int
	err := r.db.QueryRowContext(ctx, q, id, r.clock().UTC()).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, err
}

func (r *PostgresRepo) ListByLead(ctx context.Context, clientID, leadID string) ([]ScheduledMessage, error) {
	const q = `
SELECT id, lead_id, client_id, sequence_type, sequence_step, body, send_at,
       sent, sent_at, cancelled, cancelled_reason, provider_sid, attempts,
       created_at, updated_at
FROM scheduled_messages
WHERE client_id = $1 AND lead_id = $2
ORDER BY send_at ASC`
	rows, err := r.db.QueryContext(ctx, q, clientID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
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

func scanMessages(rows *sql.Rows) ([]ScheduledMessage, error) {
	var out []ScheduledMessage
	for rows.Next() {
		var m ScheduledMessage
		if err := rows.Scan(
			&m.ID, &m.LeadID, &m.ClientID, &m.SequenceType, &m.SequenceStep,
			&m.Body, &m.SendAt, &m.Sent, &m.SentAt, &m.Cancelled,
			&m.CancelledReason, &m.ProviderSID, &m.Attempts,
			&m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
