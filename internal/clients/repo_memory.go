package clients

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory client store useful for tests.
type MemoryRepo struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{clients: make(map[string]Client)}
}

func (r *MemoryRepo) Put(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

func (r *MemoryRepo) Get(ctx context.Context, clientID string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[clientID]
	if !ok {
		return Client{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetByNumber(ctx context.Context, phone string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		if c.FromNumber == phone {
			return c, nil
		}
	}
	return Client{}, ErrNotFound
}
