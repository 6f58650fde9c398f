package ringgroup

import (
	"context"
	"fmt"
	"time"

	"engagement-platform/internal/clients"
	"engagement-platform/internal/leads"
	"engagement-platform/internal/sequence"
	"engagement-platform/internal/teams"
	"engagement-platform/internal/telephony"
	"engagement-platform/pkg/logger"

	"github.com/google/uuid"
)

// SequenceStarter schedules the no-answer fallback message. Routing through
// the scheduler (rather than a direct send) keeps the fallback on the lead's
// timeline and inside the compliance gateway at dispatch time.
type SequenceStarter interface {
	Start(ctx context.Context, req sequence.StartRequest) (sequence.StartResult, error)
}

// Router fans an inbound or escalation-triggered call out to all eligible
// team members simultaneously and records exactly one outcome per attempt.
type Router struct {
	repo      Repository
	teams     teams.Repository
	leads     leads.Repository
	clients   clients.Repository
	voice     telephony.VoiceTransport
	sms       telephony.MessageTransport
	sequences SequenceStarter

	// RingTimeout is written into the dial instruction.
	RingTimeout time.Duration

	// StatusCallbackURL receives per-leg and dial-complete callbacks.
	StatusCallbackURL string

	clock func() time.Time
}

func NewRouter(repo Repository, teamRepo teams.Repository, leadRepo leads.Repository, clientRepo clients.Repository, voice telephony.VoiceTransport, sms telephony.MessageTransport, sequences SequenceStarter) *Router {
	return &Router{
		repo:        repo,
		teams:       teamRepo,
		leads:       leadRepo,
		clients:     clientRepo,
		voice:       voice,
		sms:         sms,
		sequences:   sequences,
		RingTimeout: 25 * time.Second,
		clock:       time.Now,
	}
}

// Start opens a CallAttempt and dials every eligible member concurrently.
// When nobody is eligible or the dial cannot be placed, the attempt goes
// straight to no-answer and the fallback still fires: a missed live transfer
// never leaves the lead with zero response.
func (r *Router) Start(ctx context.Context, clientID, leadID string) (CallAttempt, error) {
	if clientID == "" || leadID == "" {
		return CallAttempt{}, ErrInvalidArgument
	}

	now := r.clock().UTC()
	attempt := CallAttempt{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		ClientID:  clientID,
		Status:    StatusRinging,
		CreatedAt: now,
	}
	if err := r.repo.Create(ctx, attempt); err != nil {
		return CallAttempt{}, err
	}

	members, err := r.teams.ListEligible(ctx, clientID)
	if err != nil {
		return attempt, err
	}
	if len(members) == 0 {
		logger.From(ctx).Warn("no eligible ring-group members", "client_id", clientID, "attempt_id", attempt.ID)
		return attempt, r.giveUp(ctx, attempt.ID, now)
	}

	client, err := r.clients.Get(ctx, clientID)
	if err != nil {
		return attempt, err
	}

	legs := make([]telephony.DialLeg, 0, len(members))
	for _, m := range members {
		legs = append(legs, telephony.DialLeg{MemberID: m.ID, Phone: m.Phone})
	}

	_, err = r.voice.DialMany(ctx, telephony.DialRequest{
		ClientID:          clientID,
		AttemptID:         attempt.ID,
		CallerID:          client.FromNumber,
		Legs:              legs,
		RingTimeout:       r.RingTimeout,
		StatusCallbackURL: r.StatusCallbackURL,
	})
	if err != nil {
		logger.From(ctx).Error("ring-group dial failed", "attempt_id", attempt.ID, "err", err)
		return attempt, r.giveUp(ctx, attempt.ID, now)
	}
	return attempt, nil
}

// StartInbound opens an attempt for a live inbound leg and returns the dial
// plan (member id to phone). The caller renders the plan as the webhook's
// TwiML response instead of placing REST dials; an empty plan means nobody is
// eligible and the attempt already went through the no-answer fallback.
func (r *Router) StartInbound(ctx context.Context, clientID, leadID string) (CallAttempt, map[string]string, error) {
	if clientID == "" || leadID == "" {
		return CallAttempt{}, nil, ErrInvalidArgument
	}

	now := r.clock().UTC()
	attempt := CallAttempt{
		ID:        uuid.NewString(),
		LeadID:    leadID,
		ClientID:  clientID,
		Status:    StatusRinging,
		CreatedAt: now,
	}
	if err := r.repo.Create(ctx, attempt); err != nil {
		return CallAttempt{}, nil, err
	}

	members, err := r.teams.ListEligible(ctx, clientID)
	if err != nil {
		return attempt, nil, err
	}
	if len(members) == 0 {
		logger.From(ctx).Warn("no eligible ring-group members", "client_id", clientID, "attempt_id", attempt.ID)
		return attempt, nil, r.giveUp(ctx, attempt.ID, now)
	}

	plan := make(map[string]string, len(members))
	for _, m := range members {
		plan[m.ID] = m.Phone
	}
	return attempt, plan, nil
}

// HandleLegAnswered processes one "answered" leg callback. First answer wins
// via the storage-level conditional update; a late or duplicate callback
// observes a lost race, which is an expected no-op, not an error. Only the
// winning transition notifies the other members and clears action-required,
// so duplicate callbacks cannot double-notify.
func (r *Router) HandleLegAnswered(ctx context.Context, attemptID, memberID string, at time.Time) (bool, error) {
	if attemptID == "" || memberID == "" {
		return false, ErrInvalidArgument
	}

	won, err := r.repo.ClaimAnswered(ctx, attemptID, memberID, at)
	if err != nil {
		return false, err
	}
	if !won {
		return false, nil
	}

	attempt, err := r.repo.Get(ctx, attemptID)
	if err != nil {
		return true, err
	}

	if err := r.leads.SetActionRequired(ctx, attempt.ClientID, attempt.LeadID, false); err != nil {
		logger.From(ctx).Error("clear action_required failed", "attempt_id", attemptID, "err", err)
	}

	r.notifyOthers(ctx, attempt, memberID)
	return true, nil
}

// HandleDialComplete processes the aggregate dial-complete callback. An
// attempt already answered keeps its state; an unanswered one transitions to
// no-answer and triggers the fallback exactly once.
func (r *Router) HandleDialComplete(ctx context.Context, attemptID string, noAnswer bool, at time.Time) error {
	if attemptID == "" {
		return ErrInvalidArgument
	}
	if !noAnswer {
		return nil
	}
	return r.giveUp(ctx, attemptID, at)
}

func (r *Router) giveUp(ctx context.Context, attemptID string, at time.Time) error {
	won, err := r.repo.MarkNoAnswer(ctx, attemptID, at)
	if err != nil {
		return err
	}
	if !won {
		// Answered in the meantime, or a duplicate completion callback.
		return nil
	}

	attempt, err := r.repo.Get(ctx, attemptID)
	if err != nil {
		return err
	}

	if err := r.leads.SetActionRequired(ctx, attempt.ClientID, attempt.LeadID, true); err != nil {
		logger.From(ctx).Error("set action_required failed", "attempt_id", attemptID, "err", err)
	}

	_, err = r.sequences.Start(ctx, sequence.StartRequest{
		ClientID: attempt.ClientID,
		LeadID:   attempt.LeadID,
		Type:     sequence.TypeMissedCallFollowup,
	})
	if err != nil {
		return fmt.Errorf("ringgroup: schedule fallback: %w", err)
	}
	return nil
}

// notifyOthers tells every other eligible member who took the call. These are
// internal staff notifications; failures are logged, never propagated.
func (r *Router) notifyOthers(ctx context.Context, attempt CallAttempt, winnerID string) {
	log := logger.From(ctx)

	members, err := r.teams.ListEligible(ctx, attempt.ClientID)
	if err != nil {
		log.Error("list members for notify failed", "attempt_id", attempt.ID, "err", err)
		return
	}

	winnerName := winnerID
	if w, err := r.teams.Get(ctx, attempt.ClientID, winnerID); err == nil {
		winnerName = w.Name
	}

	client, err := r.clients.Get(ctx, attempt.ClientID)
	if err != nil {
		log.Error("client lookup for notify failed", "attempt_id", attempt.ID, "err", err)
		return
	}

	body := fmt.Sprintf("%s answered the call.", winnerName)
	for _, m := range members {
		if m.ID == winnerID {
			continue
		}
		_, err := r.sms.Send(ctx, telephony.SendRequest{
			ClientID: attempt.ClientID,
			To:       m.Phone,
			From:     client.FromNumber,
			Body:     body,
		})
		if err != nil {
			log.Warn("member notify failed", "attempt_id", attempt.ID, "member_id", m.ID, "err", err)
		}
	}
}
