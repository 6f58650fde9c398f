package automation

import (
	"context"
	"testing"
	"time"

	"engagement-platform/internal/audit"
	"engagement-platform/internal/compliance"
	"engagement-platform/internal/escalation"
	"engagement-platform/internal/leads"
	"engagement-platform/internal/ringgroup"
	"engagement-platform/internal/sequence"
)

type stubSequences struct {
	starts  []sequence.StartRequest
	cancels []string // reasons
}

func (s *stubSequences) Start(_ context.Context, req sequence.StartRequest) (sequence.StartResult, error) {
	s.starts = append(s.starts, req)
	return sequence.StartResult{Created: 4}, nil
}

func (s *stubSequences) Cancel(_ context.Context, _, _ string, _ sequence.SequenceType, reason string) (int, error) {
	s.cancels = append(s.cancels, reason)
	return 3, nil
}

type stubRouter struct {
	started []string // lead ids
}

func (r *stubRouter) Start(_ context.Context, _, leadID string) (ringgroup.CallAttempt, error) {
	r.started = append(r.started, leadID)
	return ringgroup.CallAttempt{ID: "attempt-1", LeadID: leadID, Status: ringgroup.StatusRinging}, nil
}

func (r *stubRouter) StartInbound(_ context.Context, _, leadID string) (ringgroup.CallAttempt, map[string]string, error) {
	r.started = append(r.started, leadID)
	return ringgroup.CallAttempt{ID: "attempt-2", LeadID: leadID, Status: ringgroup.StatusRinging},
		map[string]string{"mA": "+14165550001"}, nil
}

type stubEscalator struct {
	requests []escalation.EnqueueRequest
}

func (e *stubEscalator) Enqueue(_ context.Context, req escalation.EnqueueRequest) (escalation.EscalationClaim, error) {
	e.requests = append(e.requests, req)
	return escalation.EscalationClaim{ID: "claim-1", Status: escalation.StatusPending}, nil
}

const (
	testClient = "client-1"
	testPhone  = "+14165551234"
)

type autoFixture struct {
	svc       *Service
	leads     *leads.MemoryRepo
	sequences *stubSequences
	router    *stubRouter
	escalator *stubEscalator
	store     *compliance.MemoryStore
	auditRepo *audit.MemoryRepo
}

func newAutoFixture(t *testing.T) *autoFixture {
	t.Helper()
	f := &autoFixture{
		leads:     leads.NewMemoryRepo(),
		sequences: &stubSequences{},
		router:    &stubRouter{},
		escalator: &stubEscalator{},
		store:     compliance.NewMemoryStore(),
		auditRepo: audit.NewMemoryRepo(),
	}
	f.svc = NewService(f.leads, f.sequences, f.router, f.escalator, f.store, audit.NewService(f.auditRepo))
	f.svc.clock = func() time.Time {
		return time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	}
	return f
}

func (f *autoFixture) seedLead(t *testing.T, name string) leads.Lead {
	t.Helper()
	l := leads.Lead{
		ID:               "lead-1",
		ClientID:         testClient,
		Phone:            testPhone,
		Name:             name,
		Status:           leads.StatusNew,
		ConversationMode: leads.ModeAI,
	}
	if err := f.leads.Create(context.Background(), l); err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return l
}

func TestHandleMissedCall_CreatesLeadAndDials(t *testing.T) {
	f := newAutoFixture(t)

	attempt, err := f.svc.HandleMissedCall(context.Background(), testClient, testPhone)
	if err != nil {
		t.Fatalf("missed call: %v", err)
	}
	if attempt.Status != ringgroup.StatusRinging {
		t.Fatalf("expected ringing attempt, got %s", attempt.Status)
	}

	lead, err := f.leads.GetByPhone(context.Background(), testClient, testPhone)
	if err != nil {
		t.Fatalf("lead not created: %v", err)
	}
	if lead.Status != leads.StatusNew || lead.ConversationMode != leads.ModeAI {
		t.Fatalf("unexpected new lead: %+v", lead)
	}
	if len(f.router.started) != 1 || f.router.started[0] != lead.ID {
		t.Fatalf("router not started for lead: %v", f.router.started)
	}
}

func TestHandleMissedCall_ReusesExistingLead(t *testing.T) {
	f := newAutoFixture(t)
	existing := f.seedLead(t, "Jamie")

	if _, err := f.svc.HandleMissedCall(context.Background(), testClient, testPhone); err != nil {
		t.Fatalf("missed call: %v", err)
	}
	if len(f.router.started) != 1 || f.router.started[0] != existing.ID {
		t.Fatalf("expected existing lead %s routed, got %v", existing.ID, f.router.started)
	}
}

func TestHandleInboundCall_ReturnsDialPlan(t *testing.T) {
	f := newAutoFixture(t)

	_, plan, err := f.svc.HandleInboundCall(context.Background(), testClient, testPhone)
	if err != nil {
		t.Fatalf("inbound call: %v", err)
	}
	if plan["mA"] != "+14165550001" {
		t.Fatalf("unexpected plan: %v", plan)
	}
}

func TestHandleFormSubmission_DefaultsToEstimateFollowup(t *testing.T) {
	f := newAutoFixture(t)

	res, err := f.svc.HandleFormSubmission(context.Background(), FormSubmission{
		ClientID: testClient,
		Phone:    testPhone,
		Name:     "Jamie",
		Vars:     map[string]string{"company": "Maple Roofing"},
	})
	if err != nil {
		t.Fatalf("form submission: %v", err)
	}
	if res.Created != 4 {
		t.Fatalf("expected scheduler result passed through, got %+v", res)
	}

	if len(f.sequences.starts) != 1 {
		t.Fatalf("expected one sequence start, got %d", len(f.sequences.starts))
	}
	start := f.sequences.starts[0]
	if start.Type != sequence.TypeEstimateFollowup {
		t.Fatalf("expected default estimate follow-up, got %s", start.Type)
	}
	if start.Vars["company"] != "Maple Roofing" {
		t.Fatalf("vars not forwarded: %v", start.Vars)
	}

	lead, err := f.leads.GetByPhone(context.Background(), testClient, testPhone)
	if err != nil {
		t.Fatalf("lead not created: %v", err)
	}
	if lead.Name != "Jamie" {
		t.Fatalf("form name not recorded on the lead: %+v", lead)
	}
}

func TestHandleInboundSMS_StopRecordsOptOutAndCancelsEverything(t *testing.T) {
	f := newAutoFixture(t)
	lead := f.seedLead(t, "Jamie")

	for _, body := range []string{"STOP", "stop", "  Unsubscribe ", "QUIT"} {
		t.Run(body, func(t *testing.T) {
			out, err := f.svc.HandleInboundSMS(context.Background(), InboundMessage{
				ClientID: testClient, From: testPhone, Body: body,
			})
			if err != nil {
				t.Fatalf("inbound: %v", err)
			}
			if !out.OptedOut || out.Cancelled != 3 {
				t.Fatalf("unexpected outcome: %+v", out)
			}
		})
	}

	got, _ := f.leads.Get(context.Background(), testClient, lead.ID)
	if got.Status != leads.StatusOptedOut {
		t.Fatalf("lead must close as opted_out, got %s", got.Status)
	}

	if _, ok, _ := f.store.LatestOptOut(context.Background(), testClient, testPhone); !ok {
		t.Fatalf("opt-out not recorded in compliance store")
	}

	for _, reason := range f.sequences.cancels {
		if reason != sequence.ReasonLeadOptedOut {
			t.Fatalf("unexpected cancel reason %q", reason)
		}
	}

	var optOutEvents int
	for _, ev := range f.auditRepo.Events() {
		if ev.Type == audit.EventTypeOptOut {
			optOutEvents++
		}
	}
	if optOutEvents != 4 {
		t.Fatalf("expected an audit event per STOP, got %d", optOutEvents)
	}
}

func TestHandleInboundSMS_HumanRequestEscalates(t *testing.T) {
	f := newAutoFixture(t)
	lead := f.seedLead(t, "Jamie")

	out, err := f.svc.HandleInboundSMS(context.Background(), InboundMessage{
		ClientID: testClient, From: testPhone, Body: "Can I speak to a real PERSON please",
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if !out.Escalated || out.ClaimID != "claim-1" {
		t.Fatalf("expected escalation, got %+v", out)
	}

	if len(f.escalator.requests) != 1 {
		t.Fatalf("expected one enqueue, got %d", len(f.escalator.requests))
	}
	req := f.escalator.requests[0]
	if req.LeadID != lead.ID || req.Reason != escalation.ReasonExplicitRequest {
		t.Fatalf("unexpected enqueue: %+v", req)
	}
	if req.LastLeadMessage == "" {
		t.Fatalf("escalation must carry the triggering message")
	}
}

func TestHandleInboundSMS_OtherMessagesFlagAttention(t *testing.T) {
	f := newAutoFixture(t)
	lead := f.seedLead(t, "Jamie")

	out, err := f.svc.HandleInboundSMS(context.Background(), InboundMessage{
		ClientID: testClient, From: testPhone, Body: "how much for a 40 sq roof?",
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if out.OptedOut || out.Escalated {
		t.Fatalf("plain reply misrouted: %+v", out)
	}

	got, _ := f.leads.Get(context.Background(), testClient, lead.ID)
	if !got.ActionRequired {
		t.Fatalf("plain reply must flag action_required")
	}
}

func TestHandleInboundSMS_UnknownSenderGetsLead(t *testing.T) {
	f := newAutoFixture(t)

	out, err := f.svc.HandleInboundSMS(context.Background(), InboundMessage{
		ClientID: testClient, From: "+14165559999", Body: "hi",
	})
	if err != nil {
		t.Fatalf("inbound: %v", err)
	}
	if out.LeadID == "" {
		t.Fatalf("inbound from unknown number must create a lead")
	}
	if _, err := f.leads.GetByPhone(context.Background(), testClient, "+14165559999"); err != nil {
		t.Fatalf("lead not created: %v", err)
	}
}

func TestRejectsMissingArguments(t *testing.T) {
	f := newAutoFixture(t)

	if _, err := f.svc.HandleMissedCall(context.Background(), "", testPhone); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := f.svc.HandleFormSubmission(context.Background(), FormSubmission{ClientID: testClient}); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := f.svc.HandleInboundSMS(context.Background(), InboundMessage{From: testPhone}); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
