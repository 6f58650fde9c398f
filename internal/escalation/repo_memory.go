package escalation

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests. The mutex is held across
// each check-and-set so transitions are atomic, matching the conditional
// UPDATEs in PostgresRepo.
type MemoryRepo struct {
	mu     sync.Mutex
	claims map[string]EscalationClaim
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{claims: map[string]EscalationClaim{}}
}

func (r *MemoryRepo) Create(_ context.Context, c EscalationClaim) error {
	if c.ID == "" || c.ClientID == "" || c.LeadID == "" || c.ClaimToken == "" {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (EscalationClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok {
		return EscalationClaim{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByToken(_ context.Context, token string) (EscalationClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.claims {
		if c.ClaimToken == token {
			return c, nil
		}
	}
	return EscalationClaim{}, ErrNotFound
}

func (r *MemoryRepo) Claim(_ context.Context, id, memberID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok || c.Status != StatusPending {
		return false, nil
	}
	at = at.UTC()
	c.Status = StatusClaimed
	c.ClaimedBy = memberID
	c.ClaimedAt = &at
	r.claims[id] = c
	return true, nil
}

func (r *MemoryRepo) Expire(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok || c.Status != StatusPending {
		return false, nil
	}
	at = at.UTC()
	c.Status = StatusExpired
	c.ResolvedAt = &at
	r.claims[id] = c
	return true, nil
}

func (r *MemoryRepo) MarkResolved(_ context.Context, id, resolution, notes string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok || c.Status != StatusClaimed || c.ResolvedAt != nil {
		return ErrNotFound
	}
	at = at.UTC()
	c.Resolution = resolution
	c.ResolutionNotes = notes
	c.ResolvedAt = &at
	r.claims[id] = c
	return nil
}

func (r *MemoryRepo) MarkSLABreached(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[id]
	if !ok || c.SLABreachedAt != nil {
		return false, nil
	}
	at = at.UTC()
	c.SLABreachedAt = &at
	r.claims[id] = c
	return true, nil
}

func (r *MemoryRepo) ListPendingBefore(_ context.Context, cutoff time.Time) ([]EscalationClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EscalationClaim
	for _, c := range r.claims {
		if c.Status == StatusPending && c.CreatedAt.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListUnbreachedBefore(_ context.Context, cutoff time.Time) ([]EscalationClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EscalationClaim
	for _, c := range r.claims {
		if !c.CreatedAt.Before(cutoff) || c.SLABreachedAt != nil {
			continue
		}
		if c.Status == StatusPending || (c.Status == StatusClaimed && c.ResolvedAt == nil) {
			out = append(out, c)
		}
	}
	return out, nil
}
