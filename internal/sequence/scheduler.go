package sequence

import (
	"context"
	"time"

	"engagement-platform/internal/clients"
	"engagement-platform/internal/compliance"
	"engagement-platform/internal/leads"
	"engagement-platform/internal/telephony"
	"engagement-platform/internal/template"
	"engagement-platform/pkg/logger"

	"github.com/google/uuid"
)

// Gateway is the compliance checkpoint every dispatch passes through.
type Gateway interface {
	CheckAndSend(ctx context.Context, req compliance.CheckRequest) (compliance.Result, error)
}

// Scheduler owns the lifecycle of multi-step SMS drip campaigns per lead.
type Scheduler struct {
	repo    Repository
	gateway Gateway
	leads   leads.Repository
	clients clients.Repository

	// maxAttempts is the cumulative delivery-attempt cap before a pending
	// message is terminally cancelled as delivery_failed.
	maxAttempts int

	batchSize int
	clock     func() time.Time
}

func NewScheduler(repo Repository, gateway Gateway, leadRepo leads.Repository, clientRepo clients.Repository) *Scheduler {
	return &Scheduler{
		repo:        repo,
		gateway:     gateway,
		leads:       leadRepo,
		clients:     clientRepo,
		maxAttempts: 3,
		batchSize:   500,
		clock:       time.Now,
	}
}

type StartRequest struct {
	ClientID string
	LeadID   string
	Type     SequenceType

	// Steps overrides the default per-type table when non-empty.
	Steps []Step

	// AnchorAt anchors relative offsets (e.g. the appointment time for
	// reminders). Zero means "now".
	AnchorAt time.Time

	// Vars are merged over the lead/client variables.
	Vars map[string]string
}

type StartResult struct {
	Created    int
	IDs        []string
	Superseded int
}

// Start cancels every still-pending message for the lead (the supersede set:
// a lead is never the target of two conflicting drip campaigns at once),
// renders each step with lead/client variables, and inserts one row per step.
// Send times are computed in the client's local calendar.
func (s *Scheduler) Start(ctx context.Context, req StartRequest) (StartResult, error) {
	if req.ClientID == "" || req.LeadID == "" {
		return StartResult{}, ErrInvalidArgument
	}
	if !req.Type.Valid() {
		return StartResult{}, ErrInvalidArgument
	}

	client, err := s.clients.Get(ctx, req.ClientID)
	if err != nil {
		return StartResult{}, err
	}
	lead, err := s.leads.Get(ctx, req.ClientID, req.LeadID)
	if err != nil {
		return StartResult{}, err
	}

	steps := req.Steps
	if len(steps) == 0 {
		steps = DefaultSteps(req.Type)
	}
	if len(steps) == 0 {
		return StartResult{}, ErrInvalidArgument
	}

	vars := map[string]string{
		"name":    lead.Name,
		"company": client.CompanyName,
	}
	for k, v := range req.Vars {
		vars[k] = v
	}

	anchor := req.AnchorAt
	if anchor.IsZero() {
		anchor = s.clock()
	}
	loc := client.Location()
	now := s.clock().UTC()

	msgs := make([]ScheduledMessage, 0, len(steps))
	ids := make([]string, 0, len(steps))
	for i, step := range steps {
		id := uuid.NewString()
		ids = append(ids, id)
		msgs = append(msgs, ScheduledMessage{
			ID:           id,
			LeadID:       req.LeadID,
			ClientID:     req.ClientID,
			SequenceType: req.Type,
			SequenceStep: i + 1,
			Body:         template.Render(step.Body, vars),
			SendAt:       step.At(anchor, loc).UTC(),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	superseded, err := s.repo.Supersede(ctx, req.ClientID, req.LeadID, ReasonSuperseded, msgs)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{Created: len(msgs), IDs: ids, Superseded: superseded}, nil
}

// Cancel marks matching pending messages cancelled. Cancelling twice is a
// no-op, not an error.
func (s *Scheduler) Cancel(ctx context.Context, clientID, leadID string, only SequenceType, reason string) (int, error) {
	if only != "" && !only.Valid() {
		return 0, ErrInvalidArgument
	}
	return s.repo.CancelPending(ctx, clientID, leadID, only, reason)
}

type DispatchStats struct {
	Due       int
	Sent      int
	Blocked   int
	Deferred  int
	Retried   int
	Failed    int
	Cancelled int
}

// DispatchDue drains the due set. One row's failure never aborts the batch;
// each terminal mark is a conditional update so concurrent dispatchers cannot
// double-send a row.
func (s *Scheduler) DispatchDue(ctx context.Context, now time.Time) (DispatchStats, error) {
	log := logger.From(ctx)

	due, err := s.repo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return DispatchStats{}, err
	}

	stats := DispatchStats{Due: len(due)}
	for _, msg := range due {
		if err := s.dispatchOne(ctx, now, msg, &stats); err != nil {
			log.Error("dispatch item failed", "message_id", msg.ID, "lead_id", msg.LeadID, "err", err)
			stats.Failed++
		}
	}
	return stats, nil
}

func (s *Scheduler) dispatchOne(ctx context.Context, now time.Time, msg ScheduledMessage, stats *DispatchStats) error {
	lead, err := s.leads.Get(ctx, msg.ClientID, msg.LeadID)
	if err != nil {
		return err
	}

	res, sendErr := s.gateway.CheckAndSend(ctx, compliance.CheckRequest{
		ClientID:          msg.ClientID,
		LeadID:            msg.LeadID,
		MessageID:         msg.ID,
		To:                lead.Phone,
		Body:              msg.Body,
		Category:          categoryFor(msg.SequenceType),
		ConsentBasis:      basisFor(msg.SequenceType),
		RecipientTimezone: lead.Timezone,
		QueueOnQuietHours: true,
	})

	switch res.Outcome {
	case compliance.OutcomeDeferred:
		if _, err := s.repo.Reschedule(ctx, msg.ID, res.ResumeAt); err != nil {
			return err
		}
		stats.Deferred++
		return nil

	case compliance.OutcomeBlocked:
		// A blocked message is terminal, never silently retried; the reason
		// surfaces on the lead's timeline.
		if _, err := s.repo.MarkCancelled(ctx, msg.ID, res.Reason, now); err != nil {
			return err
		}
		stats.Blocked++
		return nil

	case compliance.OutcomeAllowed:
		if sendErr == nil {
			if _, err := s.repo.MarkSent(ctx, msg.ID, res.ProviderSID, now); err != nil {
				return err
			}
			stats.Sent++
			return nil
		}
		return s.handleSendFailure(ctx, now, msg, sendErr, stats)

	default:
		return sendErr
	}
}

func (s *Scheduler) handleSendFailure(ctx context.Context, now time.Time, msg ScheduledMessage, sendErr error, stats *DispatchStats) error {
	if telephony.IsPermanent(sendErr) {
		if _, err := s.repo.MarkCancelled(ctx, msg.ID, ReasonDeliveryFailed, now); err != nil {
			return err
		}
		stats.Cancelled++
		return nil
	}

	attempts, err := s.repo.IncrementAttempts(ctx, msg.ID)
	if err != nil {
		return err
	}
	if attempts >= s.maxAttempts {
		if _, err := s.repo.MarkCancelled(ctx, msg.ID, ReasonDeliveryFailed, now); err != nil {
			return err
		}
		stats.Cancelled++
		return nil
	}

	// Transient failure below the attempt cap: leave the row pending for the
	// next tick.
	stats.Retried++
	logger.From(ctx).Warn("send failed, will retry",
		"message_id", msg.ID, "attempts", attempts, "err", sendErr)
	return nil
}

// categoryFor maps sequence types onto compliance categories. Reminder-style
// sequences ride the existing relationship; outreach sequences are marketing.
func categoryFor(t SequenceType) compliance.Category {
	switch t {
	case TypeAppointmentReminder, TypePaymentReminder, TypeMissedCallFollowup:
		return compliance.CategoryTransactional
	default:
		return compliance.CategoryMarketing
	}
}

func basisFor(t SequenceType) compliance.ConsentBasis {
	if categoryFor(t) == compliance.CategoryTransactional {
		return compliance.BasisExistingRelationship
	}
	return compliance.BasisExpressConsent
}
