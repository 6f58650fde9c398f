package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"engagement-platform/internal/audit"
	"engagement-platform/internal/clients"
	"engagement-platform/internal/telephony"
	"engagement-platform/pkg/logger"
)

// Outcome classifies a gateway decision.
type Outcome string

const (
	OutcomeAllowed  Outcome = "allowed"
	OutcomeBlocked  Outcome = "blocked"
	OutcomeDeferred Outcome = "deferred"
)

// Machine-readable block/defer reasons. These surface on the lead's message
// timeline, so keep them stable.
const (
	ReasonDNCListed         = "dnc_listed"
	ReasonOptedOut          = "opted_out"
	ReasonNoConsent         = "no_consent"
	ReasonQuietHours        = "quiet_hours"
	ReasonPlanLimitExceeded = "plan_limit_exceeded"
	ReasonStoreError        = "compliance_store_error"
)

var ErrInvalidRequest = errors.New("compliance: invalid request")

// QuotaChecker is the plan-allotment hook. Over-limit is a billing concern
// surfaced to, not decided by, this gateway.
type QuotaChecker interface {
	AllowMessage(ctx context.Context, clientID string, limit int) (bool, error)
}

// CheckRequest is one "we want to send X" intent.
type CheckRequest struct {
	ClientID string
	LeadID   string

	// MessageID ties the audit record back to a ScheduledMessage, if any.
	MessageID string

	To   string
	From string
	Body string

	MediaURLs []string

	Category     Category
	ConsentBasis ConsentBasis

	// RecipientTimezone, when set, takes precedence over the client timezone
	// for quiet-hours math.
	RecipientTimezone string

	// QueueOnQuietHours turns a quiet-hours hit into a deferral the caller can
	// re-enqueue, instead of a terminal block.
	QueueOnQuietHours bool
}

// Result is the typed outcome of CheckAndSend. Blocks and deferrals are
// expected results, not errors.
type Result struct {
	Outcome Outcome
	Reason  string

	// ResumeAt is set on deferral: the next quiet-window open, recipient-local.
	ResumeAt time.Time

	// ProviderSID is set when the send reached the transport successfully.
	ProviderSID string
}

// Gateway is the single mandatory checkpoint between "we want to send X" and
// "X was actually sent". No code path may reach the message transport without
// passing through CheckAndSend.
type Gateway struct {
	store     Store
	quota     QuotaChecker
	transport telephony.MessageTransport
	auditor   *audit.Service
	clients   clients.Repository

	clock func() time.Time
}

func NewGateway(store Store, quota QuotaChecker, transport telephony.MessageTransport, auditor *audit.Service, clientRepo clients.Repository) *Gateway {
	return &Gateway{
		store:     store,
		quota:     quota,
		transport: transport,
		auditor:   auditor,
		clients:   clientRepo,
		clock:     time.Now,
	}
}

// CheckAndSend runs the compliance checks in order and, on pass, delegates to
// the transport. The audit record is written for every decision; audit
// failures are logged and swallowed so they never change the returned outcome.
//
// Checks 1-4 read local/DB state and fail closed: a read error blocks the
// send rather than allowing it.
func (g *Gateway) CheckAndSend(ctx context.Context, req CheckRequest) (Result, error) {
	if req.ClientID == "" || req.To == "" || req.Body == "" {
		return Result{}, ErrInvalidRequest
	}
	if !req.Category.Valid() {
		return Result{}, ErrInvalidRequest
	}

	res, sendErr := g.decideAndSend(ctx, req)
	g.writeAudit(ctx, req, res)
	return res, sendErr
}

func (g *Gateway) decideAndSend(ctx context.Context, req CheckRequest) (Result, error) {
	now := g.clock()

	client, err := g.clients.Get(ctx, req.ClientID)
	if err != nil {
		return Result{Outcome: OutcomeBlocked, Reason: ReasonStoreError}, nil
	}

	// 1. DNC: absolute; no consent basis overrides it.
	listed, err := g.store.IsDNCListed(ctx, req.ClientID, req.To)
	if err != nil {
		return Result{Outcome: OutcomeBlocked, Reason: ReasonStoreError}, nil
	}
	if listed {
		return Result{Outcome: OutcomeBlocked, Reason: ReasonDNCListed}, nil
	}

	// 2. Opt-out: the most recent event wins over any consent record.
	optOutAt, hasOptOut, err := g.store.LatestOptOut(ctx, req.ClientID, req.To)
	if err != nil {
		return Result{Outcome: OutcomeBlocked, Reason: ReasonStoreError}, nil
	}
	consentAt, hasConsent, err := g.store.LatestConsent(ctx, req.ClientID, req.To, string(req.Category))
	if err != nil {
		return Result{Outcome: OutcomeBlocked, Reason: ReasonStoreError}, nil
	}
	if hasOptOut && (!hasConsent || optOutAt.After(consentAt)) {
		return Result{Outcome: OutcomeBlocked, Reason: ReasonOptedOut}, nil
	}

	// 3. Consent: marketing requires an active scoped record; transactional is
	// allowed under the existing-relationship basis.
	if req.Category == CategoryMarketing && !hasConsent {
		return Result{Outcome: OutcomeBlocked, Reason: ReasonNoConsent}, nil
	}
	if req.Category == CategoryTransactional && !hasConsent && req.ConsentBasis != BasisExistingRelationship {
		return Result{Outcome: OutcomeBlocked, Reason: ReasonNoConsent}, nil
	}

	// 4. Quiet hours, recipient-local.
	window := QuietWindow{Start: client.QuietHoursStart, End: client.QuietHoursEnd}
	if window.Configured() {
		loc := ResolveLocation(req.RecipientTimezone, client.Timezone)
		local := now.In(loc)
		inside, err := window.Contains(local)
		if err != nil {
			return Result{Outcome: OutcomeBlocked, Reason: ReasonStoreError}, nil
		}
		if inside {
			if !req.QueueOnQuietHours {
				return Result{Outcome: OutcomeBlocked, Reason: ReasonQuietHours}, nil
			}
			resume, err := window.NextOpen(local)
			if err != nil {
				return Result{Outcome: OutcomeBlocked, Reason: ReasonStoreError}, nil
			}
			return Result{Outcome: OutcomeDeferred, Reason: ReasonQuietHours, ResumeAt: resume}, nil
		}
	}

	// 5. Plan quota.
	if g.quota != nil && client.MonthlyMessageLimit > 0 {
		ok, err := g.quota.AllowMessage(ctx, req.ClientID, client.MonthlyMessageLimit)
		if err != nil {
			return Result{Outcome: OutcomeBlocked, Reason: ReasonStoreError}, nil
		}
		if !ok {
			return Result{Outcome: OutcomeBlocked, Reason: ReasonPlanLimitExceeded}, nil
		}
	}

	// 6. Passed all checks: hand to the transport. The audit record is written
	// by the caller even when the send itself fails here.
	from := req.From
	if from == "" {
		from = client.FromNumber
	}
	sent, err := g.transport.Send(ctx, telephony.SendRequest{
		ClientID:  req.ClientID,
		To:        req.To,
		From:      from,
		Body:      req.Body,
		MediaURLs: req.MediaURLs,
	})
	if err != nil {
		return Result{Outcome: OutcomeAllowed}, fmt.Errorf("compliance: transport send: %w", err)
	}
	return Result{Outcome: OutcomeAllowed, ProviderSID: sent.SID}, nil
}

func (g *Gateway) writeAudit(ctx context.Context, req CheckRequest, res Result) {
	if g.auditor == nil {
		return
	}
	err := g.auditor.LogSendDecision(ctx,
		req.ClientID, req.To, string(req.Category),
		string(res.Outcome), res.Reason, req.LeadID, req.MessageID,
	)
	if err != nil {
		logger.From(ctx).Error("audit write failed", "client_id", req.ClientID, "err", err)
	}
}
