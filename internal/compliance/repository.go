package compliance

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresStore reads consent state from the compliance tables. The gateway
// only reads; RecordOptOut is the single write, driven by inbound STOP.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) IsDNCListed(ctx context.Context, clientID, phone string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM dnc_entries WHERE client_id = $1 AND phone = $2)`
	var listed bool
	if err := s.db.QueryRowContext(ctx, q, clientID, phone).Scan(&listed); err != nil {
		return false, err
	}
	return listed, nil
}

func (s *PostgresStore) LatestOptOut(ctx context.Context, clientID, phone string) (time.Time, bool, error) {
	const q = `
SELECT occurred_at FROM opt_outs
WHERE client_id = $1 AND phone = $2
ORDER BY occurred_at DESC
LIMIT 1`
	var t time.Time
	err := s.db.QueryRowContext(ctx, q, clientID, phone).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (s *PostgresStore) LatestConsent(ctx context.Context, clientID, phone, scope string) (time.Time, bool, error) {
	const q = `
SELECT granted_at FROM consent_records
WHERE client_id = $1 AND phone = $2 AND scope = $3 AND revoked_at IS NULL
ORDER BY granted_at DESC
LIMIT 1`
	var t time.Time
	err := s.db.QueryRowContext(ctx, q, clientID, phone, scope).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func (s *PostgresStore) RecordOptOut(ctx context.Context, rec OptOutRecord) error {
	const q = `INSERT INTO opt_outs (client_id, phone, occurred_at) VALUES ($1, $2, $3)`
	_, err := s.db.ExecContext(ctx, q, rec.ClientID, rec.Phone, rec.OccurredAt)
	return err
}
