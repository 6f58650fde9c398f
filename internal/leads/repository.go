package leads

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("leads: not found")
	ErrInvalidArgument = errors.New("leads: invalid argument")
)

// Repository is the persistence contract for leads.
//
// Every mutation is a targeted partial update scoped by (lead_id, client_id).
// There is deliberately no Save(Lead) method: the shared conversation-state
// fields are written by multiple subsystems and a blind full-row write would
// reintroduce lost updates.
type Repository interface {
	Get(ctx context.Context, clientID, leadID string) (Lead, error)
	GetByPhone(ctx context.Context, clientID, phone string) (Lead, error)
	Create(ctx context.Context, l Lead) error

	SetStatus(ctx context.Context, clientID, leadID string, status Status) error
	SetActionRequired(ctx context.Context, clientID, leadID string, required bool) error
	SetConversationMode(ctx context.Context, clientID, leadID string, mode ConversationMode) error
}

type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) Get(ctx context.Context, clientID, leadID string) (Lead, error) {
	const q = `
SELECT id, client_id, phone, name, status, conversation_mode, action_required,
       timezone, created_at, updated_at
FROM leads
WHERE client_id = $1 AND id = $2`
	return r.scanOne(r.db.QueryRowContext(ctx, q, clientID, leadID))
}

func (r *PostgresRepo) GetByPhone(ctx context.Context, clientID, phone string) (Lead, error) {
	const q = `
SELECT id, client_id, phone, name, status, conversation_mode, action_required,
       timezone, created_at, updated_at
FROM leads
WHERE client_id = $1 AND phone = $2
ORDER BY created_at DESC
LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, clientID, phone))
}

func (r *PostgresRepo) Create(ctx context.Context, l Lead) error {
	if l.ID == "" || l.ClientID == "" || l.Phone == "" {
		return ErrInvalidArgument
	}
	if !l.Status.Valid() {
		return ErrInvalidArgument
	}
	now := r.clock().UTC()
	const q = `
INSERT INTO leads (id, client_id, phone, name, status, conversation_mode,
                   action_required, timezone, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`
	_, err := r.db.ExecContext(ctx, q,
		l.ID, l.ClientID, l.Phone, l.Name, l.Status, l.ConversationMode,
		l.ActionRequired, l.Timezone, now,
	)
	return err
}

func (r *PostgresRepo) SetStatus(ctx context.Context, clientID, leadID string, status Status) error {
	if !status.Valid() {
		return ErrInvalidArgument
	}
	const q = `
UPDATE leads SET status = $3, updated_at = $4
WHERE client_id = $1 AND id = $2`
	return r.execScoped(ctx, q, clientID, leadID, status, r.clock().UTC())
}

func (r *PostgresRepo) SetActionRequired(ctx context.Context, clientID, leadID string, required bool) error {
	const q = `
UPDATE leads SET action_required = $3, updated_at = $4
WHERE client_id = $1 AND id = $2`
	return r.execScoped(ctx, q, clientID, leadID, required, r.clock().UTC())
}

func (r *PostgresRepo) SetConversationMode(ctx context.Context, clientID, leadID string, mode ConversationMode) error {
	if mode != ModeAI && mode != ModeHuman {
		return ErrInvalidArgument
	}
	const q = `
UPDATE leads SET conversation_mode = $3, updated_at = $4
WHERE client_id = $1 AND id = $2`
	return r.execScoped(ctx, q, clientID, leadID, mode, r.clock().UTC())
}

func (r *PostgresRepo) execScoped(ctx context.Context, q, clientID, leadID string, args ...any) error {
	all := append([]any{clientID, leadID}, args...)
	res, err := r.db.ExecContext(ctx, q, all...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) scanOne(row *sql.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.ClientID, &l.Phone, &l.Name, &l.Status, &l.ConversationMode,
		&l.ActionRequired, &l.Timezone, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	if err != nil {
		return Lead{}, err
	}
	return l, nil
}
