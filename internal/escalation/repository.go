package escalation

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("escalation: not found")
	ErrInvalidArgument = errors.New("escalation: invalid argument")
)

// Repository persists escalation claims.
//
// Claim and Expire are compare-and-set transitions guarded on status still
// being pending; they must succeed for exactly one caller under concurrent
// claim attempts.
type Repository interface {
	Create(ctx context.Context, c EscalationClaim) error
	Get(ctx context.Context, id string) (EscalationClaim, error)
	GetByToken(ctx context.Context, token string) (EscalationClaim, error)

	Claim(ctx context.Context, id, memberID string, at time.Time) (bool, error)
	Expire(ctx context.Context, id string, at time.Time) (bool, error)

	// MarkResolved records the resolution on a claimed, unresolved row.
	MarkResolved(ctx context.Context, id, resolution, notes string, at time.Time) error

	// MarkSLABreached sets the breach flag once; later calls are no-ops.
	MarkSLABreached(ctx context.Context, id string, at time.Time) (bool, error)

	// ListPendingBefore returns pending claims created before cutoff.
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]EscalationClaim, error)

	// ListUnbreachedBefore returns pending or claimed-but-unresolved claims
	// created before cutoff that are not yet flagged.
	ListUnbreachedBefore(ctx context.Context, cutoff time.Time) ([]EscalationClaim, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const selectClaim = `
SELECT id, lead_id, client_id, claim_token, reason, last_lead_message, status,
       COALESCE(claimed_by, ''), claimed_at, COALESCE(resolution, ''),
       COALESCE(resolution_notes, ''), resolved_at, sla_breached_at,
       notified_at, created_at
FROM escalation_claims`

func (r *PostgresRepo) Create(ctx context.Context, c EscalationClaim) error {
	if c.ID == "" || c.ClientID == "" || c.LeadID == "" || c.ClaimToken == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO escalation_claims (id, lead_id, client_id, claim_token, reason,
                               last_lead_message, status, notified_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.LeadID, c.ClientID, c.ClaimToken, c.Reason,
		c.LastLeadMessage, c.Status, c.NotifiedAt, c.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (EscalationClaim, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectClaim+` WHERE id = $1`, id))
}

func (r *PostgresRepo) GetByToken(ctx context.Context, token string) (EscalationClaim, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectClaim+` WHERE claim_token = $1`, token))
}

func (r *PostgresRepo) Claim(ctx context.Context, id, memberID string, at time.Time) (bool, error) {
	const q = `
UPDATE escalation_claims
SET status = $2, claimed_by = $3, claimed_at = $4
WHERE id = $1 AND status = $5`
	return r.condExec(ctx, q, id, StatusClaimed, memberID, at.UTC(), StatusPending)
}

func (r *PostgresRepo) Expire(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `
UPDATE escalation_claims
SET status = $2, resolved_at = $3
WHERE id = $1 AND status = $4`
	return r.condExec(ctx, q, id, StatusExpired, at.UTC(), StatusPending)
}

func (r *PostgresRepo) MarkResolved(ctx context.Context, id, resolution, notes string, at time.Time) error {
	const q = `
UPDATE escalation_claims
SET resolution = $2, resolution_notes = $3, resolved_at = $4
WHERE id = $1 AND status = $5 AND resolved_at IS NULL`
	ok, err := r.condExec(ctx, q, id, resolution, notes, at.UTC(), StatusClaimed)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) MarkSLABreached(ctx context.Context, id string, at time.Time) (bool, error) {
	const q = `
UPDATE escalation_claims
SET sla_breached_at = $2
WHERE id = $1 AND sla_breached_at IS NULL`
	return r.condExec(ctx, q, id, at.UTC())
}

func (r *PostgresRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]EscalationClaim, error) {
	return r.list(ctx, selectClaim+` WHERE status = $1 AND created_at < $2`, StatusPending, cutoff.UTC())
}

func (r *PostgresRepo) ListUnbreachedBefore(ctx context.Context, cutoff time.Time) ([]EscalationClaim, error) {
	const q = ` WHERE created_at < $1 AND sla_breached_at IS NULL
  AND (status = $2 OR (status = $3 AND resolved_at IS NULL))`
	return r.list(ctx, selectClaim+q, cutoff.UTC(), StatusPending, StatusClaimed)
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...any) ([]EscalationClaim, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EscalationClaim
	for rows.Next() {
		var c EscalationClaim
		if err := rows.Scan(
			&c.ID, &c.LeadID, &c.ClientID, &c.ClaimToken, &c.Reason,
			&c.LastLeadMessage, &c.Status, &c.ClaimedBy, &c.ClaimedAt,
			&c.Resolution, &c.ResolutionNotes, &c.ResolvedAt, &c.SLABreachedAt,
			&c.NotifiedAt, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) scanOne(row *sql.Row) (EscalationClaim, error) {
	var c EscalationClaim
	err := row.Scan(
		&c.ID, &c.LeadID, &c.ClientID, &c.ClaimToken, &c.Reason,
		&c.LastLeadMessage, &c.Status, &c.ClaimedBy, &c.ClaimedAt,
		&c.Resolution, &c.ResolutionNotes, &c.ResolvedAt, &c.SLABreachedAt,
		&c.NotifiedAt, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return EscalationClaim{}, ErrNotFound
	}
	if err != nil {
		return EscalationClaim{}, err
	}
	return c, nil
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
