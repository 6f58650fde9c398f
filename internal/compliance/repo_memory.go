package compliance

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory consent/opt-out/DNC store useful for tests.
type MemoryStore struct {
	mu       sync.Mutex
	dnc      map[string]bool
	optOuts  map[string][]time.Time
	consents map[string][]ConsentRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dnc:      make(map[string]bool),
		optOuts:  make(map[string][]time.Time),
		consents: make(map[string][]ConsentRecord),
	}
}

func storeKey(clientID, phone string) string { return clientID + "/" + phone }

func (s *MemoryStore) AddDNC(clientID, phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dnc[storeKey(clientID, phone)] = true
}

func (s *MemoryStore) AddConsent(rec ConsentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := storeKey(rec.ClientID, rec.Phone)
	s.consents[k] = append(s.consents[k], rec)
}

func (s *MemoryStore) IsDNCListed(ctx context.Context, clientID, phone string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dnc[storeKey(clientID, phone)], nil
}

func (s *MemoryStore) LatestOptOut(ctx context.Context, clientID, phone string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outs := s.optOuts[storeKey(clientID, phone)]
	if len(outs) == 0 {
		return time.Time{}, false, nil
	}
	latest := outs[0]
	for _, t := range outs[1:] {
		if t.After(latest) {
			latest = t
		}
	}
	return latest, true, nil
}

func (s *MemoryStore) LatestConsent(ctx context.Context, clientID, phone, scope string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	found := false
	for _, rec := range s.consents[storeKey(clientID, phone)] {
		if rec.Scope != scope || rec.RevokedAt != nil {
			continue
		}
		if !found || rec.GrantedAt.After(latest) {
			latest = rec.GrantedAt
			found = true
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) RecordOptOut(ctx context.Context, rec OptOutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := storeKey(rec.ClientID, rec.Phone)
	s.optOuts[k] = append(s.optOuts[k], rec.OccurredAt)
	return nil
}
