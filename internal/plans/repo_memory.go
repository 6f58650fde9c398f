package plans

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory plan usage store useful for tests.
type MemoryRepo struct {
	mu     sync.Mutex
	usage  map[string]int
	resets map[string]time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		usage:  make(map[string]int),
		resets: make(map[string]time.Time),
	}
}

func (r *MemoryRepo) RecordUsage(ctx context.Context, clientID, month string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage[clientID+"/"+month] += n
	return nil
}

func (r *MemoryRepo) MarkReset(ctx context.Context, month string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resets[month]; ok {
		return false, nil
	}
	r.resets[month] = at
	return true, nil
}

func (r *MemoryRepo) Usage(ctx context.Context, clientID, month string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage[clientID+"/"+month], nil
}

// MemoryCounter is an in-memory Counter with the same increment-and-check
// semantics as the redis script.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

func (c *MemoryCounter) IncrWithinLimit(ctx context.Context, key string, limit int, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts[key]+1 > limit {
		return false, nil
	}
	c.counts[key]++
	return true, nil
}

func (c *MemoryCounter) Usage(ctx context.Context, key string) (int64, error) {
	return int64(c.Count(key)), nil
}

func (c *MemoryCounter) Count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}
