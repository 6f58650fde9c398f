package ringgroup

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory attempt store useful for tests. The conditional
// transitions hold the mutex across check-and-set, matching the atomicity of
// the SQL repo's single conditional UPDATE.
type MemoryRepo struct {
	mu       sync.Mutex
	attempts map[string]*CallAttempt
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{attempts: make(map[string]*CallAttempt)}
}

func (r *MemoryRepo) Create(ctx context.Context, a CallAttempt) error {
	if a.ID == "" || a.ClientID == "" || a.LeadID == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := a
	r.attempts[a.ID] = &cp
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (CallAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return CallAttempt{}, ErrNotFound
	}
	return *a, nil
}

func (r *MemoryRepo) ClaimAnswered(ctx context.Context, id, memberID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Status != StatusRinging {
		return false, nil
	}
	a.Status = StatusAnswered
	a.AnsweredBy = memberID
	t := at
	a.AnsweredAt = &t
	return true, nil
}

func (r *MemoryRepo) MarkNoAnswer(ctx context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Status != StatusRinging {
		return false, nil
	}
	a.Status = StatusNoAnswer
	t := at
	a.EndedAt = &t
	return true, nil
}
