package compliance

import (
	"context"
	"time"
)

// Per-phone-number consent state consumed read-only by the gateway. Writes
// (granting consent, recording opt-outs, DNC management) happen in the inbound
// message flow and the admin surface, not here.

type Category string

const (
	CategoryMarketing     Category = "marketing"
	CategoryTransactional Category = "transactional"
)

func (c Category) Valid() bool {
	return c == CategoryMarketing || c == CategoryTransactional
}

type ConsentBasis string

const (
	// BasisExpressConsent is an affirmative opt-in covering marketing scope.
	BasisExpressConsent ConsentBasis = "express_consent"

	// BasisExistingRelationship covers transactional messages to an active
	// customer without an explicit opt-in record.
	BasisExistingRelationship ConsentBasis = "existing_relationship"
)

// ConsentRecord is an active opt-in for one phone number and scope.
// A phone has zero or one active record per scope.
type ConsentRecord struct {
	ID       string `json:"id" db:"id"`
	ClientID string `json:"client_id" db:"client_id"`
	Phone    string `json:"phone" db:"phone"`

	// Scope matches Category values.
	Scope string `json:"scope" db:"scope"`

	GrantedAt time.Time  `json:"granted_at" db:"granted_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
}

// OptOutRecord marks a received STOP; a newer opt-out overrides any consent.
type OptOutRecord struct {
	ClientID   string    `json:"client_id" db:"client_id"`
	Phone      string    `json:"phone" db:"phone"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// DNCEntry is an absolute contact prohibition; no consent basis overrides it.
type DNCEntry struct {
	ClientID string    `json:"client_id" db:"client_id"`
	Phone    string    `json:"phone" db:"phone"`
	AddedAt  time.Time `json:"added_at" db:"added_at"`
}

// Store is the read contract the gateway checks before every send.
// Any store read error fails closed: the send is blocked, never allowed.
type Store interface {
	IsDNCListed(ctx context.Context, clientID, phone string) (bool, error)

	// LatestOptOut returns the most recent opt-out time, if any.
	LatestOptOut(ctx context.Context, clientID, phone string) (time.Time, bool, error)

	// LatestConsent returns the most recent unrevoked consent grant covering
	// scope, if any.
	LatestConsent(ctx context.Context, clientID, phone, scope string) (time.Time, bool, error)

	// RecordOptOut appends an opt-out event; used by the inbound STOP flow.
	RecordOptOut(ctx context.Context, rec OptOutRecord) error
}
