package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only for writes.
// ListRange exists solely for compliance reporting over a date window.

type Repository interface {
	Append(ctx context.Context, e Event) error
	ListRange(ctx context.Context, clientID string, from, to time.Time) ([]Event, error)
}

// Service records compliance audit information.
//
// IMPORTANT:
// - Callers must treat audit logging as best-effort: a failed audit write is
//   surfaced on an operational log channel but never blocks the send outcome.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.ClientID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogSendDecision records the outcome of one gateway decision.
func (s *Service) LogSendDecision(ctx context.Context, clientID, recipient, category, outcome, reason, leadID, messageID string) error {
	return s.Append(ctx, Event{
		ClientID:  clientID,
		Type:      EventTypeSendDecision,
		Recipient: recipient,
		Category:  category,
		Outcome:   outcome,
		Reason:    reason,
		LeadID:    leadID,
		MessageID: messageID,
	})
}

// LogOptOut records an inbound opt-out keyword event.
func (s *Service) LogOptOut(ctx context.Context, clientID, recipient, leadID string) error {
	return s.Append(ctx, Event{
		ClientID:  clientID,
		Type:      EventTypeOptOut,
		Recipient: recipient,
		LeadID:    leadID,
		Message:   "stop keyword received",
	})
}

// ListRange returns events for a client within [from, to).
func (s *Service) ListRange(ctx context.Context, clientID string, from, to time.Time) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if clientID == "" {
		return nil, ErrInvalidEvent
	}
	return s.repo.ListRange(ctx, clientID, from, to)
}
