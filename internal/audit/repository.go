package audit

import (
	"context"
	"database/sql"
	"time"
)

// PostgresRepo persists audit events. INSERT-only by construction.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, client_id, type, recipient, category, outcome,
                          reason, lead_id, message_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.ClientID, e.Type, e.Recipient, e.Category, e.Outcome,
		e.Reason, e.LeadID, e.MessageID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListRange(ctx context.Context, clientID string, from, to time.Time) ([]Event, error) {
	const q = `
SELECT id, client_id, type, recipient, category, outcome,
       reason, lead_id, message_id, message, metadata, created_at
FROM audit_events
WHERE client_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, q, clientID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID, &e.ClientID, &e.Type, &e.Recipient, &e.Category, &e.Outcome,
			&e.Reason, &e.LeadID, &e.MessageID, &e.Message, &e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
