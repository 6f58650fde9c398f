package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"engagement-platform/internal/clients"
	"engagement-platform/internal/leads"
	"engagement-platform/internal/teams"
	"engagement-platform/internal/telephony"
	"engagement-platform/pkg/logger"
)

// CallStarter opens a ring-group dial for a lead. Satisfied by
// ringgroup.Router; wired as an interface so the queue can run without voice
// in tests.
type CallStarter interface {
	Start(ctx context.Context, clientID, leadID string) error
}

// Queue hands a conversation to exactly one human.
//
// Claiming is a storage-level compare-and-set: under concurrent claim
// attempts exactly one caller wins and the rest observe already_claimed
// without mutating anything.
type Queue struct {
	repo    Repository
	leadsR  leads.Repository
	teamsR  teams.Repository
	clients clients.Repository
	sms     telephony.MessageTransport
	calls   CallStarter

	// ClaimLinkBaseURL is the public origin claim links are minted under;
	// the token is appended as a path segment.
	ClaimLinkBaseURL string

	// ClaimSLA is how long a claim may sit unresolved before the sweep
	// flags it as breached.
	ClaimSLA time.Duration

	// ClaimExpiry is how long a pending claim stays claimable.
	ClaimExpiry time.Duration

	clock func() time.Time
}

func NewQueue(repo Repository, leadRepo leads.Repository, teamRepo teams.Repository, clientRepo clients.Repository, sms telephony.MessageTransport) *Queue {
	return &Queue{
		repo:        repo,
		leadsR:      leadRepo,
		teamsR:      teamRepo,
		clients:     clientRepo,
		sms:         sms,
		ClaimSLA:    15 * time.Minute,
		ClaimExpiry: 4 * time.Hour,
		clock:       time.Now,
	}
}

// WithCalls enables the optional ring-group dial on enqueue for reasons that
// warrant a live transfer.
func (q *Queue) WithCalls(calls CallStarter) *Queue {
	q.calls = calls
	return q
}

type EnqueueRequest struct {
	ClientID string `json:"client_id"`
	LeadID   string `json:"lead_id"`
	Reason   string `json:"reason"`

	LastLeadMessage string `json:"last_lead_message,omitempty"`

	// TriggerCall also opens a ring-group dial alongside the claim SMS.
	TriggerCall bool `json:"trigger_call,omitempty"`
}

// Enqueue creates a pending claim, flips the lead to human handling and
// notifies every eligible team member with a claim link.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (EscalationClaim, error) {
	if req.ClientID == "" || req.LeadID == "" || req.Reason == "" {
		return EscalationClaim{}, ErrInvalidArgument
	}

	lead, err := q.leadsR.Get(ctx, req.ClientID, req.LeadID)
	if err != nil {
		return EscalationClaim{}, fmt.Errorf("escalation: load lead: %w", err)
	}

	token, err := NewClaimToken()
	if err != nil {
		return EscalationClaim{}, fmt.Errorf("escalation: mint claim token: %w", err)
	}

	now := q.clock().UTC()
	claim := EscalationClaim{
		ID:              uuid.NewString(),
		LeadID:          req.LeadID,
		ClientID:        req.ClientID,
		ClaimToken:      token,
		Reason:          req.Reason,
		LastLeadMessage: req.LastLeadMessage,
		Status:          StatusPending,
		NotifiedAt:      now,
		CreatedAt:       now,
	}
	if err := q.repo.Create(ctx, claim); err != nil {
		return EscalationClaim{}, fmt.Errorf("escalation: create claim: %w", err)
	}

	// The conversation is a human's now, even before anyone claims it.
	if err := q.leadsR.SetConversationMode(ctx, req.ClientID, req.LeadID, leads.ModeHuman); err != nil {
		return EscalationClaim{}, fmt.Errorf("escalation: set conversation mode: %w", err)
	}
	if err := q.leadsR.SetActionRequired(ctx, req.ClientID, req.LeadID, true); err != nil {
		return EscalationClaim{}, fmt.Errorf("escalation: flag action required: %w", err)
	}

	q.notifyMembers(ctx, claim, lead)

	if req.TriggerCall && q.calls != nil {
		if err := q.calls.Start(ctx, req.ClientID, req.LeadID); err != nil {
			logger.From(ctx).Warn("escalation call trigger failed",
				slog.String("claim_id", claim.ID), slog.String("error", err.Error()))
		}
	}

	return claim, nil
}

// notifyMembers fans the claim link out to every eligible member. Notification
// failures are logged, never propagated: the claim exists regardless.
func (q *Queue) notifyMembers(ctx context.Context, claim EscalationClaim, lead leads.Lead) {
	members, err := q.teamsR.ListEligible(ctx, claim.ClientID)
	if err != nil {
		logger.From(ctx).Warn("escalation notify skipped",
			slog.String("claim_id", claim.ID), slog.String("error", err.Error()))
		return
	}
	if len(members) == 0 {
		logger.From(ctx).Warn("escalation has no eligible members",
			slog.String("claim_id", claim.ID), slog.String("client_id", claim.ClientID))
		return
	}

	client, err := q.clients.Get(ctx, claim.ClientID)
	if err != nil {
		logger.From(ctx).Warn("escalation notify skipped",
			slog.String("claim_id", claim.ID), slog.String("error", err.Error()))
		return
	}

	body := q.claimMessage(claim, lead)
	for _, m := range members {
		_, err := q.sms.Send(ctx, telephony.SendRequest{
			ClientID: claim.ClientID,
			To:       m.Phone,
			From:     client.FromNumber,
			Body:     body,
		})
		if err != nil {
			logger.From(ctx).Warn("escalation notify failed",
				slog.String("claim_id", claim.ID),
				slog.String("member_id", m.ID),
				slog.String("error", err.Error()))
		}
	}
}

func (q *Queue) claimMessage(claim EscalationClaim, lead leads.Lead) string {
	name := lead.Name
	if name == "" {
		name = lead.Phone
	}
	msg := fmt.Sprintf("%s needs a human (%s).", name, claim.Reason)
	if claim.LastLeadMessage != "" {
		msg += fmt.Sprintf(" Last message: %q.", claim.LastLeadMessage)
	}
	msg += fmt.Sprintf(" Claim: %s/claim/%s", q.ClaimLinkBaseURL, claim.ClaimToken)
	return msg
}

// ClaimResult reports the outcome of one claim attempt. On failure, Failure is
// set and ClaimedByName carries the winner's name when known, so the claim
// page renders "already being handled by <name>".
type ClaimResult struct {
	Claim         EscalationClaim `json:"claim"`
	Failure       ClaimFailure    `json:"failure,omitempty"`
	ClaimedByName string          `json:"claimed_by_name,omitempty"`
}

// Claim resolves a claim link. Expiry is evaluated lazily here as well as by
// the sweep, so a stale link fails as expired even between sweep ticks.
func (q *Queue) Claim(ctx context.Context, token, memberID string) (ClaimResult, error) {
	if token == "" || memberID == "" {
		return ClaimResult{Failure: FailureInvalid}, nil
	}

	claim, err := q.repo.GetByToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return ClaimResult{Failure: FailureInvalid}, nil
	}
	if err != nil {
		return ClaimResult{}, fmt.Errorf("escalation: lookup claim: %w", err)
	}

	now := q.clock().UTC()
	switch claim.Status {
	case StatusExpired:
		return ClaimResult{Claim: claim, Failure: FailureExpired}, nil
	case StatusClaimed:
		return q.alreadyClaimed(ctx, claim)
	}

	if now.Sub(claim.CreatedAt) > q.ClaimExpiry {
		// Losing this CAS means someone claimed in the meantime; re-read
		// and report the winner.
		if _, err := q.repo.Expire(ctx, claim.ID, now); err != nil {
			return ClaimResult{}, fmt.Errorf("escalation: expire claim: %w", err)
		}
		fresh, err := q.repo.Get(ctx, claim.ID)
		if err != nil {
			return ClaimResult{}, fmt.Errorf("escalation: reload claim: %w", err)
		}
		if fresh.Status == StatusClaimed {
			return q.alreadyClaimed(ctx, fresh)
		}
		return ClaimResult{Claim: fresh, Failure: FailureExpired}, nil
	}

	member, err := q.teamsR.Get(ctx, claim.ClientID, memberID)
	if err != nil {
		if errors.Is(err, teams.ErrNotFound) {
			return ClaimResult{Failure: FailureInvalid}, nil
		}
		return ClaimResult{}, fmt.Errorf("escalation: load member: %w", err)
	}

	won, err := q.repo.Claim(ctx, claim.ID, member.ID, now)
	if err != nil {
		return ClaimResult{}, fmt.Errorf("escalation: claim: %w", err)
	}
	if !won {
		fresh, err := q.repo.Get(ctx, claim.ID)
		if err != nil {
			return ClaimResult{}, fmt.Errorf("escalation: reload claim: %w", err)
		}
		if fresh.Status == StatusClaimed {
			return q.alreadyClaimed(ctx, fresh)
		}
		return ClaimResult{Claim: fresh, Failure: FailureExpired}, nil
	}

	claim.Status = StatusClaimed
	claim.ClaimedBy = member.ID
	claim.ClaimedAt = &now

	logger.From(ctx).Info("escalation claimed",
		slog.String("claim_id", claim.ID),
		slog.String("member_id", member.ID))
	return ClaimResult{Claim: claim}, nil
}

func (q *Queue) alreadyClaimed(ctx context.Context, claim EscalationClaim) (ClaimResult, error) {
	res := ClaimResult{Claim: claim, Failure: FailureAlreadyClaimed}
	if claim.ClaimedBy != "" {
		if m, err := q.teamsR.Get(ctx, claim.ClientID, claim.ClaimedBy); err == nil {
			res.ClaimedByName = m.Name
		}
	}
	return res, nil
}

type ResolveRequest struct {
	ClaimID  string `json:"claim_id"`
	MemberID string `json:"member_id"`

	// AgencyAdmin overrides the claiming-member restriction.
	AgencyAdmin bool `json:"-"`

	Resolution string `json:"resolution"`
	Notes      string `json:"notes,omitempty"`

	// ReturnToAI hands the conversation back to automated handling.
	ReturnToAI bool `json:"return_to_ai"`
}

var ErrNotClaimOwner = errors.New("escalation: only the claiming member may resolve")

// Resolve records the outcome of a claimed escalation.
func (q *Queue) Resolve(ctx context.Context, req ResolveRequest) error {
	if req.ClaimID == "" || req.Resolution == "" {
		return ErrInvalidArgument
	}

	claim, err := q.repo.Get(ctx, req.ClaimID)
	if err != nil {
		return err
	}
	if claim.Status != StatusClaimed {
		return ErrNotFound
	}
	if !req.AgencyAdmin && claim.ClaimedBy != req.MemberID {
		return ErrNotClaimOwner
	}

	now := q.clock().UTC()
	if err := q.repo.MarkResolved(ctx, claim.ID, req.Resolution, req.Notes, now); err != nil {
		return err
	}

	if err := q.leadsR.SetActionRequired(ctx, claim.ClientID, claim.LeadID, false); err != nil {
		return fmt.Errorf("escalation: clear action required: %w", err)
	}
	if req.ReturnToAI {
		if err := q.leadsR.SetConversationMode(ctx, claim.ClientID, claim.LeadID, leads.ModeAI); err != nil {
			return fmt.Errorf("escalation: return conversation to ai: %w", err)
		}
	}
	return nil
}

// SweepStats summarises one SLA sweep tick.
type SweepStats struct {
	Expired  int `json:"expired"`
	Breached int `json:"breached"`
}

// SweepSLA expires stale pending claims and flags overdue ones as breached.
// Breach is an observability flag only; it never moves the state machine.
func (q *Queue) SweepSLA(ctx context.Context) (SweepStats, error) {
	now := q.clock().UTC()
	var stats SweepStats

	stale, err := q.repo.ListPendingBefore(ctx, now.Add(-q.ClaimExpiry))
	if err != nil {
		return stats, fmt.Errorf("escalation: list stale claims: %w", err)
	}
	for _, c := range stale {
		ok, err := q.repo.Expire(ctx, c.ID, now)
		if err != nil {
			logger.From(ctx).Error("escalation expire failed",
				slog.String("claim_id", c.ID), slog.String("error", err.Error()))
			continue
		}
		if ok {
			stats.Expired++
		}
	}

	overdue, err := q.repo.ListUnbreachedBefore(ctx, now.Add(-q.ClaimSLA))
	if err != nil {
		return stats, fmt.Errorf("escalation: list overdue claims: %w", err)
	}
	for _, c := range overdue {
		ok, err := q.repo.MarkSLABreached(ctx, c.ID, now)
		if err != nil {
			logger.From(ctx).Error("escalation breach flag failed",
				slog.String("claim_id", c.ID), slog.String("error", err.Error()))
			continue
		}
		if ok {
			stats.Breached++
			logger.From(ctx).Warn("escalation sla breached",
				slog.String("claim_id", c.ID),
				slog.String("client_id", c.ClientID),
				slog.String("lead_id", c.LeadID))
		}
	}

	return stats, nil
}
