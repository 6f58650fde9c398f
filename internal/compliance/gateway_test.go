package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"engagement-platform/internal/audit"
	"engagement-platform/internal/clients"
	"engagement-platform/internal/telephony"
)

type stubTransport struct {
	sends []telephony.SendRequest
	err   error
}

func (s *stubTransport) Send(_ context.Context, req telephony.SendRequest) (telephony.SendResult, error) {
	s.sends = append(s.sends, req)
	if s.err != nil {
		return telephony.SendResult{}, s.err
	}
	return telephony.SendResult{SID: "SM123", Status: "queued"}, nil
}

type stubQuota struct {
	allow bool
	err   error
}

func (s stubQuota) AllowMessage(context.Context, string, int) (bool, error) {
	return s.allow, s.err
}

const (
	testClient = "client-1"
	testPhone  = "+14165551234"
)

func newTestGateway(t *testing.T, store Store, quota QuotaChecker, transport telephony.MessageTransport) (*Gateway, *audit.MemoryRepo, *clients.MemoryRepo) {
	t.Helper()
	auditRepo := audit.NewMemoryRepo()
	clientRepo := clients.NewMemoryRepo()
	clientRepo.Put(clients.Client{
		ID:                  testClient,
		Name:                "Dana",
		CompanyName:         "Maple Roofing",
		FromNumber:          "+14165550000",
		Timezone:            "America/Toronto",
		QuietHoursStart:     "22:00",
		QuietHoursEnd:       "08:00",
		MonthlyMessageLimit: 100,
	})
	return NewGateway(store, quota, transport, audit.NewService(auditRepo), clientRepo), auditRepo, clientRepo
}

func marketingReq() CheckRequest {
	return CheckRequest{
		ClientID:     testClient,
		To:           testPhone,
		Body:         "hello",
		Category:     CategoryMarketing,
		ConsentBasis: BasisExpressConsent,
	}
}

// dayClock returns a clock fixed at the given local wall time in the client's zone.
func dayClock(t *testing.T, hour, min int) func() time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	at := time.Date(2026, 3, 10, hour, min, 0, 0, loc)
	return func() time.Time { return at }
}

func grantConsent(store *MemoryStore, at time.Time, scope string) {
	store.AddConsent(ConsentRecord{
		ClientID:  testClient,
		Phone:     testPhone,
		Scope:     scope,
		GrantedAt: at,
	})
}

func TestGateway_DNCBlocksAbsolutely(t *testing.T) {
	store := NewMemoryStore()
	store.AddDNC(testClient, testPhone)
	grantConsent(store, time.Now(), string(CategoryMarketing))

	transport := &stubTransport{}
	g, auditRepo, _ := newTestGateway(t, store, stubQuota{allow: true}, transport)
	g.clock = dayClock(t, 12, 0)

	res, err := g.CheckAndSend(context.Background(), marketingReq())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeBlocked || res.Reason != ReasonDNCListed {
		t.Fatalf("expected dnc block, got %+v", res)
	}
	if len(transport.sends) != 0 {
		t.Fatalf("transport must not be reached on a block")
	}
	evs := auditRepo.Events()
	if len(evs) != 1 || evs[0].Outcome != "blocked" || evs[0].Reason != ReasonDNCListed {
		t.Fatalf("expected blocked audit record, got %+v", evs)
	}
}

func TestGateway_OptOutNewerThanConsentBlocks(t *testing.T) {
	store := NewMemoryStore()
	grantConsent(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), string(CategoryMarketing))
	_ = store.RecordOptOut(context.Background(), OptOutRecord{
		ClientID:   testClient,
		Phone:      testPhone,
		OccurredAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})

	g, _, _ := newTestGateway(t, store, stubQuota{allow: true}, &stubTransport{})
	g.clock = dayClock(t, 12, 0)

	res, err := g.CheckAndSend(context.Background(), marketingReq())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeBlocked || res.Reason != ReasonOptedOut {
		t.Fatalf("expected opted_out block, got %+v", res)
	}
}

func TestGateway_ConsentNewerThanOptOutAllows(t *testing.T) {
	store := NewMemoryStore()
	_ = store.RecordOptOut(context.Background(), OptOutRecord{
		ClientID:   testClient,
		Phone:      testPhone,
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	grantConsent(store, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), string(CategoryMarketing))

	transport := &stubTransport{}
	g, _, _ := newTestGateway(t, store, stubQuota{allow: true}, transport)
	g.clock = dayClock(t, 12, 0)

	res, err := g.CheckAndSend(context.Background(), marketingReq())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeAllowed {
		t.Fatalf("expected allowed, got %+v", res)
	}
	if res.ProviderSID != "SM123" {
		t.Fatalf("expected provider sid, got %+v", res)
	}
	if len(transport.sends) != 1 {
		t.Fatalf("expected one send")
	}
	// From falls back to the client's number when the request leaves it empty.
	if transport.sends[0].From != "+14165550000" {
		t.Fatalf("expected client from_number, got %s", transport.sends[0].From)
	}
}

func TestGateway_MarketingWithoutConsentBlocks(t *testing.T) {
	g, _, _ := newTestGateway(t, NewMemoryStore(), stubQuota{allow: true}, &stubTransport{})
	g.clock = dayClock(t, 12, 0)

	res, err := g.CheckAndSend(context.Background(), marketingReq())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeBlocked || res.Reason != ReasonNoConsent {
		t.Fatalf("expected no_consent block, got %+v", res)
	}
}

func TestGateway_TransactionalAllowedUnderExistingRelationship(t *testing.T) {
	transport := &stubTransport{}
	g, _, _ := newTestGateway(t, NewMemoryStore(), stubQuota{allow: true}, transport)
	g.clock = dayClock(t, 12, 0)

	req := marketingReq()
	req.Category = CategoryTransactional
	req.ConsentBasis = BasisExistingRelationship

	res, err := g.CheckAndSend(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeAllowed {
		t.Fatalf("expected allowed, got %+v", res)
	}
	if len(transport.sends) != 1 {
		t.Fatalf("expected one send")
	}
}

func TestGateway_QuietHoursDefersWhenQueueing(t *testing.T) {
	store := NewMemoryStore()
	grantConsent(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), string(CategoryMarketing))

	transport := &stubTransport{}
	g, auditRepo, _ := newTestGateway(t, store, stubQuota{allow: true}, transport)
	// 23:00 local, inside the 22:00-08:00 window.
	g.clock = dayClock(t, 23, 0)

	req := marketingReq()
	req.QueueOnQuietHours = true

	res, err := g.CheckAndSend(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeDeferred || res.Reason != ReasonQuietHours {
		t.Fatalf("expected quiet-hours deferral, got %+v", res)
	}
	if len(transport.sends) != 0 {
		t.Fatalf("no message may be sent during quiet hours")
	}

	loc, _ := time.LoadLocation("America/Toronto")
	wantResume := time.Date(2026, 3, 11, 8, 0, 0, 0, loc)
	if !res.ResumeAt.Equal(wantResume) {
		t.Fatalf("expected resume at 08:00 next day, got %v", res.ResumeAt)
	}

	evs := auditRepo.Events()
	if len(evs) != 1 || evs[0].Outcome != "deferred" {
		t.Fatalf("expected deferred audit record, got %+v", evs)
	}
}

func TestGateway_QuietHoursBlocksWithoutQueueing(t *testing.T) {
	store := NewMemoryStore()
	grantConsent(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), string(CategoryMarketing))

	g, _, _ := newTestGateway(t, store, stubQuota{allow: true}, &stubTransport{})
	g.clock = dayClock(t, 23, 0)

	res, err := g.CheckAndSend(context.Background(), marketingReq())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeBlocked || res.Reason != ReasonQuietHours {
		t.Fatalf("expected quiet_hours block, got %+v", res)
	}
}

func TestGateway_PlanLimitExceededBlocks(t *testing.T) {
	store := NewMemoryStore()
	grantConsent(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), string(CategoryMarketing))

	transport := &stubTransport{}
	g, _, _ := newTestGateway(t, store, stubQuota{allow: false}, transport)
	g.clock = dayClock(t, 12, 0)

	res, err := g.CheckAndSend(context.Background(), marketingReq())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeBlocked || res.Reason != ReasonPlanLimitExceeded {
		t.Fatalf("expected plan_limit_exceeded block, got %+v", res)
	}
	if len(transport.sends) != 0 {
		t.Fatalf("transport must not be reached over limit")
	}
}

func TestGateway_StoreErrorFailsClosed(t *testing.T) {
	store := NewMemoryStore()
	grantConsent(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), string(CategoryMarketing))

	g, _, _ := newTestGateway(t, store, stubQuota{err: errors.New("redis down")}, &stubTransport{})
	g.clock = dayClock(t, 12, 0)

	res, err := g.CheckAndSend(context.Background(), marketingReq())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Outcome != OutcomeBlocked || res.Reason != ReasonStoreError {
		t.Fatalf("expected fail-closed block, got %+v", res)
	}
}

func TestGateway_AuditWrittenEvenWhenTransportFails(t *testing.T) {
	store := NewMemoryStore()
	grantConsent(store, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), string(CategoryMarketing))

	transport := &stubTransport{err: errors.New("provider 500")}
	g, auditRepo, _ := newTestGateway(t, store, stubQuota{allow: true}, transport)
	g.clock = dayClock(t, 12, 0)

	res, err := g.CheckAndSend(context.Background(), marketingReq())
	if err == nil {
		t.Fatalf("expected transport error to propagate")
	}
	if res.Outcome != OutcomeAllowed {
		t.Fatalf("decision was allowed even though the send failed, got %+v", res)
	}
	evs := auditRepo.Events()
	if len(evs) != 1 || evs[0].Outcome != "allowed" {
		t.Fatalf("audit record must be written despite the transport failure, got %+v", evs)
	}
}

func TestGateway_RejectsInvalidRequest(t *testing.T) {
	g, _, _ := newTestGateway(t, NewMemoryStore(), stubQuota{allow: true}, &stubTransport{})

	_, err := g.CheckAndSend(context.Background(), CheckRequest{ClientID: testClient})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	req := marketingReq()
	req.Category = "newsletter"
	if _, err := g.CheckAndSend(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad category, got %v", err)
	}
}
