package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAppendFillsDefaults(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	fixed := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return fixed }

	err := svc.Append(context.Background(), Event{
		ClientID:  "client-1",
		Type:      EventTypeSendDecision,
		Recipient: "+14165551234",
		Outcome:   "allowed",
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	events := repo.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID == "" {
		t.Fatalf("append must assign an id")
	}
	if !events[0].CreatedAt.Equal(fixed) {
		t.Fatalf("append must stamp the clock, got %v", events[0].CreatedAt)
	}
}

func TestAppendRejectsIncompleteEvents(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventTypeOptOut}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("missing client id: %v", err)
	}
	if err := svc.Append(context.Background(), Event{ClientID: "client-1"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("missing type: %v", err)
	}
}

func TestListRangeFiltersClientAndWindow(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seed := []Event{
		{ID: "1", ClientID: "client-1", Type: EventTypeSendDecision, CreatedAt: base},
		{ID: "2", ClientID: "client-1", Type: EventTypeOptOut, CreatedAt: base.AddDate(0, 0, 10)},
		{ID: "3", ClientID: "client-2", Type: EventTypeSendDecision, CreatedAt: base.AddDate(0, 0, 10)},
		{ID: "4", ClientID: "client-1", Type: EventTypeSendDecision, CreatedAt: base.AddDate(0, 1, 0)},
	}
	for _, e := range seed {
		if err := repo.Append(context.Background(), e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := svc.ListRange(context.Background(), "client-1", base, base.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected events 1 and 2, got %d", len(got))
	}
	for _, e := range got {
		if e.ClientID != "client-1" {
			t.Fatalf("foreign client leaked: %+v", e)
		}
		if e.ID == "4" {
			t.Fatalf("window end must be exclusive")
		}
	}
}

func TestLogHelpersShapeEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogSendDecision(context.Background(), "client-1", "+14165551234", "marketing", "blocked", "no_consent", "lead-1", "msg-1"); err != nil {
		t.Fatalf("log decision: %v", err)
	}
	if err := svc.LogOptOut(context.Background(), "client-1", "+14165551234", "lead-1"); err != nil {
		t.Fatalf("log opt-out: %v", err)
	}

	events := repo.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventTypeSendDecision || events[0].Outcome != "blocked" || events[0].Reason != "no_consent" {
		t.Fatalf("decision event misshaped: %+v", events[0])
	}
	if events[1].Type != EventTypeOptOut || events[1].Recipient != "+14165551234" {
		t.Fatalf("opt-out event misshaped: %+v", events[1])
	}
}
