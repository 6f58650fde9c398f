package teams

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory team member store useful for tests.
type MemoryRepo struct {
	mu      sync.RWMutex
	members []TeamMember
}

func NewMemoryRepo(members ...TeamMember) *MemoryRepo {
	return &MemoryRepo{members: members}
}

func (r *MemoryRepo) Put(m TeamMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, m)
}

func (r *MemoryRepo) Get(ctx context.Context, clientID, memberID string) (TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.ClientID == clientID && m.ID == memberID {
			return m, nil
		}
	}
	return TeamMember{}, ErrNotFound
}

func (r *MemoryRepo) ListEligible(ctx context.Context, clientID string) ([]TeamMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []TeamMember
	for _, m := range r.members {
		if m.ClientID == clientID && m.Eligible() {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}
