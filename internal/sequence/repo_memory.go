package sequence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory scheduled-message store useful for tests. The
// conditional transitions mirror the SQL repo's pending-only guards.
type MemoryRepo struct {
	mu   sync.Mutex
	msgs map[string]*ScheduledMessage
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{msgs: make(map[string]*ScheduledMessage)}
}

func (r *MemoryRepo) Supersede(ctx context.Context, clientID, leadID, reason string, msgs []ScheduledMessage) (int, error) {
	if clientID == "" || leadID == "" {
		return 0, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := 0
	for _, m := range r.msgs {
		if m.ClientID == clientID && m.LeadID == leadID && m.Pending() {
			m.Cancelled = true
			m.CancelledReason = reason
			cancelled++
		}
	}
	for _, m := range msgs {
		cp := m
		r.msgs[m.ID] = &cp
	}
	return cancelled, nil
}

func (r *MemoryRepo) CancelPending(ctx context.Context, clientID, leadID string, only SequenceType, reason string) (int, error) {
	if clientID == "" || leadID == "" {
		return 0, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, m := range r.msgs {
		if m.ClientID != clientID || m.LeadID != leadID || !m.Pending() {
			continue
		}
		if only != "" && m.SequenceType != only {
			continue
		}
		m.Cancelled = true
		m.CancelledReason = reason
		n++
	}
	return n, nil
}

func (r *MemoryRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ScheduledMessage
	for _, m := range r.msgs {
		if m.Pending() && !m.SendAt.After(now) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SendAt.Before(out[j].SendAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) MarkSent(ctx context.Context, id, providerSID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || !m.Pending() {
		return false, nil
	}
	m.Sent = true
	t := at
	m.SentAt = &t
	m.ProviderSID = providerSID
	return true, nil
}

func (r *MemoryRepo) MarkCancelled(ctx context.Context, id, reason string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || !m.Pending() {
		return false, nil
	}
	m.Cancelled = true
	m.CancelledReason = reason
	return true, nil
}

func (r *MemoryRepo) Reschedule(ctx context.Context, id string, sendAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok || !m.Pending() {
		return false, nil
	}
	m.SendAt = sendAt
	return true, nil
}

func (r *MemoryRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return 0, ErrNotFound
	}
	m.Attempts++
	return m.Attempts, nil
}

func (r *MemoryRepo) ListByLead(ctx context.Context, clientID, leadID string) ([]ScheduledMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ScheduledMessage
	for _, m := range r.msgs {
		if m.ClientID == clientID && m.LeadID == leadID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SendAt.Before(out[j].SendAt) })
	return out, nil
}

// Get returns a snapshot of one message; test helper.
func (r *MemoryRepo) Get(id string) (ScheduledMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.msgs[id]
	if !ok {
		return ScheduledMessage{}, false
	}
	return *m, true
}
