package plans

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestService() (*Service, *MemoryRepo, *MemoryCounter) {
	repo := NewMemoryRepo()
	counter := NewMemoryCounter()
	svc := NewService(repo, counter)
	svc.clock = func() time.Time {
		return time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	}
	return svc, repo, counter
}

func TestAllowMessage_EnforcesMonthlyLimit(t *testing.T) {
	svc, repo, _ := newTestService()

	for i := 0; i < 3; i++ {
		ok, err := svc.AllowMessage(context.Background(), "client-1", 3)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("send %d should be within the limit", i)
		}
	}

	ok, err := svc.AllowMessage(context.Background(), "client-1", 3)
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if ok {
		t.Fatalf("fourth send must be rejected at limit 3")
	}

	// A rejected message never consumes durable usage.
	used, err := repo.Usage(context.Background(), "client-1", "2026-03")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if used != 3 {
		t.Fatalf("expected 3 recorded, got %d", used)
	}
}

func TestAllowMessage_IsolatesClientsAndMonths(t *testing.T) {
	svc, _, counter := newTestService()

	if ok, _ := svc.AllowMessage(context.Background(), "client-1", 1); !ok {
		t.Fatalf("client-1 first send rejected")
	}
	if ok, _ := svc.AllowMessage(context.Background(), "client-2", 1); !ok {
		t.Fatalf("client-2 must have its own allotment")
	}

	// A new month gets a fresh key; no reset fan-out is needed.
	svc.clock = func() time.Time {
		return time.Date(2026, 4, 1, 0, 30, 0, 0, time.UTC)
	}
	if ok, _ := svc.AllowMessage(context.Background(), "client-1", 1); !ok {
		t.Fatalf("rollover month must start from zero")
	}
	if counter.Count(usageKey("client-1", "2026-03")) != 1 {
		t.Fatalf("old month counter disturbed")
	}
	if counter.Count(usageKey("client-1", "2026-04")) != 1 {
		t.Fatalf("new month counter not started")
	}
}

func TestAllowMessage_ConcurrentSendsNeverExceedLimit(t *testing.T) {
	svc, _, counter := newTestService()

	const limit, attempts = 5, 20
	var wg sync.WaitGroup
	allowed := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.AllowMessage(context.Background(), "client-1", limit)
			if err != nil {
				t.Errorf("allow: %v", err)
				return
			}
			if ok {
				allowed <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(allowed)

	if n := len(allowed); n != limit {
		t.Fatalf("expected exactly %d allowed, got %d", limit, n)
	}
	if counter.Count(usageKey("client-1", "2026-03")) != limit {
		t.Fatalf("counter overshot the limit")
	}
}

func TestAllowMessage_RejectsInvalidArguments(t *testing.T) {
	svc, _, _ := newTestService()

	if _, err := svc.AllowMessage(context.Background(), "", 10); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.AllowMessage(context.Background(), "client-1", 0); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument for zero limit, got %v", err)
	}
}

func TestCurrentUsagePrefersLiveCounter(t *testing.T) {
	svc, repo, _ := newTestService()

	for i := 0; i < 2; i++ {
		if ok, err := svc.AllowMessage(context.Background(), "client-1", 10); err != nil || !ok {
			t.Fatalf("allow %d: ok=%v err=%v", i, ok, err)
		}
	}

	// Drift the durable row; the live counter stays authoritative.
	if err := repo.RecordUsage(context.Background(), "client-1", "2026-03", 5); err != nil {
		t.Fatalf("drift: %v", err)
	}

	used, err := svc.CurrentUsage(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if used != 2 {
		t.Fatalf("expected live count 2, got %d", used)
	}

	if _, err := svc.CurrentUsage(context.Background(), ""); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestResetMonthly_FirstWinsPerMonth(t *testing.T) {
	svc, _, _ := newTestService()
	now := time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC)

	first, err := svc.ResetMonthly(context.Background(), now)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !first {
		t.Fatalf("first reset of the month must report true")
	}

	again, err := svc.ResetMonthly(context.Background(), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if again {
		t.Fatalf("double-firing the reset must be a no-op")
	}

	next, err := svc.ResetMonthly(context.Background(), now.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !next {
		t.Fatalf("a new month resets again")
	}
}

func TestTTLThroughMonthCoversRemainder(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	ttl := ttlThroughMonth(now)

	remainder := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Sub(now)
	if ttl <= remainder {
		t.Fatalf("ttl %v must outlive the month remainder %v", ttl, remainder)
	}
	if ttl > remainder+96*time.Hour {
		t.Fatalf("ttl %v keeps stale keys too long", ttl)
	}
}
