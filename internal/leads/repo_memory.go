package leads

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory lead store useful for tests.
// Partial updates mutate only the targeted field, mirroring the SQL repo.
type MemoryRepo struct {
	mu    sync.Mutex
	byKey map[string]*Lead
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byKey: make(map[string]*Lead)}
}

func key(clientID, leadID string) string { return clientID + "/" + leadID }

func (r *MemoryRepo) Get(ctx context.Context, clientID, leadID string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byKey[key(clientID, leadID)]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return *l, nil
}

func (r *MemoryRepo) GetByPhone(ctx context.Context, clientID, phone string) (Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.byKey {
		if l.ClientID == clientID && l.Phone == phone {
			return *l, nil
		}
	}
	return Lead{}, ErrNotFound
}

func (r *MemoryRepo) Create(ctx context.Context, l Lead) error {
	if l.ID == "" || l.ClientID == "" || l.Phone == "" {
		return ErrInvalidArgument
	}
	if !l.Status.Valid() {
		return ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := l
	r.byKey[key(l.ClientID, l.ID)] = &cp
	return nil
}

func (r *MemoryRepo) SetStatus(ctx context.Context, clientID, leadID string, status Status) error {
	if !status.Valid() {
		return ErrInvalidArgument
	}
	return r.mutate(clientID, leadID, func(l *Lead) { l.Status = status })
}

func (r *MemoryRepo) SetActionRequired(ctx context.Context, clientID, leadID string, required bool) error {
	return r.mutate(clientID, leadID, func(l *Lead) { l.ActionRequired = required })
}

func (r *MemoryRepo) SetConversationMode(ctx context.Context, clientID, leadID string, mode ConversationMode) error {
	if mode != ModeAI && mode != ModeHuman {
		return ErrInvalidArgument
	}
	return r.mutate(clientID, leadID, func(l *Lead) { l.ConversationMode = mode })
}

func (r *MemoryRepo) mutate(clientID, leadID string, fn func(*Lead)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byKey[key(clientID, leadID)]
	if !ok {
		return ErrNotFound
	}
	fn(l)
	return nil
}
