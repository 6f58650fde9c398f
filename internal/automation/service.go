package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"engagement-platform/internal/audit"
	"engagement-platform/internal/compliance"
	"engagement-platform/internal/escalation"
	"engagement-platform/internal/leads"
	"engagement-platform/internal/ringgroup"
	"engagement-platform/internal/sequence"
	"engagement-platform/pkg/logger"
)

var ErrInvalidArgument = errors.New("automation: invalid argument")

// SequenceStarter is the sequence scheduler surface the triggers need.
type SequenceStarter interface {
	Start(ctx context.Context, req sequence.StartRequest) (sequence.StartResult, error)
	Cancel(ctx context.Context, clientID, leadID string, only sequence.SequenceType, reason string) (int, error)
}

// CallRouter is the ring-group surface the triggers need.
type CallRouter interface {
	Start(ctx context.Context, clientID, leadID string) (ringgroup.CallAttempt, error)
	StartInbound(ctx context.Context, clientID, leadID string) (ringgroup.CallAttempt, map[string]string, error)
}

// Escalator is the escalation-queue surface the triggers need.
type Escalator interface {
	Enqueue(ctx context.Context, req escalation.EnqueueRequest) (escalation.EscalationClaim, error)
}

// Service ties external triggers (missed calls, form submissions, inbound
// messages) to the engagement core. It creates or updates leads and then
// hands off to the scheduler, the ring-group router or the escalation queue.
type Service struct {
	leads      leads.Repository
	sequences  SequenceStarter
	router     CallRouter
	escalation Escalator
	store      compliance.Store
	audit      *audit.Service

	clock func() time.Time
}

func NewService(leadRepo leads.Repository, sequences SequenceStarter, router CallRouter, esc Escalator, store compliance.Store, auditSvc *audit.Service) *Service {
	return &Service{
		leads:      leadRepo,
		sequences:  sequences,
		router:     router,
		escalation: esc,
		store:      store,
		audit:      auditSvc,
		clock:      time.Now,
	}
}

// HandleMissedCall opens a ring-group dial back to the caller. The lead is
// created on first contact. The router's own no-answer path schedules the
// fallback message, so a missed call can never end with zero response.
func (s *Service) HandleMissedCall(ctx context.Context, clientID, fromPhone string) (ringgroup.CallAttempt, error) {
	if clientID == "" || fromPhone == "" {
		return ringgroup.CallAttempt{}, ErrInvalidArgument
	}

	lead, err := s.upsertLead(ctx, clientID, fromPhone, "")
	if err != nil {
		return ringgroup.CallAttempt{}, err
	}

	attempt, err := s.router.Start(ctx, clientID, lead.ID)
	if err != nil {
		return ringgroup.CallAttempt{}, fmt.Errorf("automation: start ring group: %w", err)
	}
	logger.From(ctx).Info("missed call routed",
		slog.String("client_id", clientID),
		slog.String("lead_id", lead.ID),
		slog.String("attempt_id", attempt.ID))
	return attempt, nil
}

// HandleInboundCall handles a live caller on the client's number: it upserts
// the lead, opens a ring-group attempt and returns the member dial plan for
// the webhook's TwiML response. An empty plan means nobody was eligible and
// the fallback message is already scheduled.
func (s *Service) HandleInboundCall(ctx context.Context, clientID, fromPhone string) (ringgroup.CallAttempt, map[string]string, error) {
	if clientID == "" || fromPhone == "" {
		return ringgroup.CallAttempt{}, nil, ErrInvalidArgument
	}

	lead, err := s.upsertLead(ctx, clientID, fromPhone, "")
	if err != nil {
		return ringgroup.CallAttempt{}, nil, err
	}
	return s.router.StartInbound(ctx, clientID, lead.ID)
}

type FormSubmission struct {
	ClientID string `json:"client_id"`
	Phone    string `json:"phone"`
	Name     string `json:"name"`

	// SequenceType selects the drip campaign; defaults to estimate follow-up.
	SequenceType sequence.SequenceType `json:"sequence_type,omitempty"`

	// AnchorAt anchors relative offsets, e.g. the booked appointment time.
	AnchorAt time.Time `json:"anchor_at,omitempty"`

	Vars map[string]string `json:"vars,omitempty"`
}

// HandleFormSubmission upserts the lead and starts (or supersedes into) the
// requested drip sequence.
func (s *Service) HandleFormSubmission(ctx context.Context, sub FormSubmission) (sequence.StartResult, error) {
	if sub.ClientID == "" || sub.Phone == "" {
		return sequence.StartResult{}, ErrInvalidArgument
	}
	seqType := sub.SequenceType
	if seqType == "" {
		seqType = sequence.TypeEstimateFollowup
	}

	lead, err := s.upsertLead(ctx, sub.ClientID, sub.Phone, sub.Name)
	if err != nil {
		return sequence.StartResult{}, err
	}

	res, err := s.sequences.Start(ctx, sequence.StartRequest{
		ClientID: sub.ClientID,
		LeadID:   lead.ID,
		Type:     seqType,
		AnchorAt: sub.AnchorAt,
		Vars:     sub.Vars,
	})
	if err != nil {
		return sequence.StartResult{}, fmt.Errorf("automation: start sequence: %w", err)
	}
	return res, nil
}

type InboundMessage struct {
	ClientID string `json:"client_id"`
	From     string `json:"from"`
	Body     string `json:"body"`
}

// InboundOutcome reports how an inbound lead message was handled.
type InboundOutcome struct {
	LeadID    string `json:"lead_id"`
	OptedOut  bool   `json:"opted_out"`
	Cancelled int    `json:"cancelled"`
	Escalated bool   `json:"escalated"`
	ClaimID   string `json:"claim_id,omitempty"`
}

// Escalation keywords a lead can text to demand a human.
var humanKeywords = []string{"human", "agent", "person", "representative", "speak to someone"}

// HandleInboundSMS processes a lead's reply. STOP keywords record an opt-out,
// cancel every pending scheduled message and close the lead; explicit human
// requests open an escalation; anything else flags the lead for attention.
func (s *Service) HandleInboundSMS(ctx context.Context, msg InboundMessage) (InboundOutcome, error) {
	if msg.ClientID == "" || msg.From == "" {
		return InboundOutcome{}, ErrInvalidArgument
	}

	lead, err := s.upsertLead(ctx, msg.ClientID, msg.From, "")
	if err != nil {
		return InboundOutcome{}, err
	}
	out := InboundOutcome{LeadID: lead.ID}

	if isStopKeyword(msg.Body) {
		return s.handleOptOut(ctx, lead, out)
	}

	if wantsHuman(msg.Body) && s.escalation != nil {
		claim, err := s.escalation.Enqueue(ctx, escalation.EnqueueRequest{
			ClientID:        msg.ClientID,
			LeadID:          lead.ID,
			Reason:          escalation.ReasonExplicitRequest,
			LastLeadMessage: msg.Body,
		})
		if err != nil {
			return out, fmt.Errorf("automation: escalate: %w", err)
		}
		out.Escalated = true
		out.ClaimID = claim.ID
		return out, nil
	}

	if err := s.leads.SetActionRequired(ctx, lead.ClientID, lead.ID, true); err != nil {
		return out, fmt.Errorf("automation: flag action required: %w", err)
	}
	return out, nil
}

func (s *Service) handleOptOut(ctx context.Context, lead leads.Lead, out InboundOutcome) (InboundOutcome, error) {
	now := s.clock().UTC()
	if err := s.store.RecordOptOut(ctx, compliance.OptOutRecord{
		ClientID:   lead.ClientID,
		Phone:      lead.Phone,
		OccurredAt: now,
	}); err != nil {
		return out, fmt.Errorf("automation: record opt-out: %w", err)
	}
	out.OptedOut = true

	cancelled, err := s.sequences.Cancel(ctx, lead.ClientID, lead.ID, "", sequence.ReasonLeadOptedOut)
	if err != nil {
		return out, fmt.Errorf("automation: cancel sequences: %w", err)
	}
	out.Cancelled = cancelled

	if err := s.leads.SetStatus(ctx, lead.ClientID, lead.ID, leads.StatusOptedOut); err != nil {
		return out, fmt.Errorf("automation: close lead: %w", err)
	}

	if s.audit != nil {
		if err := s.audit.LogOptOut(ctx, lead.ClientID, lead.Phone, lead.ID); err != nil {
			logger.From(ctx).Error("opt-out audit write failed",
				slog.String("lead_id", lead.ID), slog.String("error", err.Error()))
		}
	}

	logger.From(ctx).Info("lead opted out",
		slog.String("client_id", lead.ClientID),
		slog.String("lead_id", lead.ID),
		slog.Int("cancelled", cancelled))
	return out, nil
}

func (s *Service) upsertLead(ctx context.Context, clientID, phone, name string) (leads.Lead, error) {
	lead, err := s.leads.GetByPhone(ctx, clientID, phone)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, leads.ErrNotFound) {
		return leads.Lead{}, fmt.Errorf("automation: lookup lead: %w", err)
	}

	now := s.clock().UTC()
	lead = leads.Lead{
		ID:               uuid.NewString(),
		ClientID:         clientID,
		Phone:            phone,
		Name:             name,
		Status:           leads.StatusNew,
		ConversationMode: leads.ModeAI,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return leads.Lead{}, fmt.Errorf("automation: create lead: %w", err)
	}
	return lead, nil
}

func isStopKeyword(body string) bool {
	switch strings.ToUpper(strings.TrimSpace(body)) {
	case "STOP", "STOPALL", "UNSUBSCRIBE", "CANCEL", "END", "QUIT":
		return true
	default:
		return false
	}
}

func wantsHuman(body string) bool {
	b := strings.ToLower(body)
	for _, kw := range humanKeywords {
		if strings.Contains(b, kw) {
			return true
		}
	}
	return false
}
