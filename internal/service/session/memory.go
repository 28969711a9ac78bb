package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	text      string
	expiresAt time.Time
}

// MemoryStore keeps context in process with the same sliding expiry as
// RedisStore. It is meant for local runs where no Redis is available but
// memory is still wanted.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Get(_ context.Context, userID string) (string, bool) {
	s.mu.RLock()
	e, ok := s.entries[Key(userID)]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !s.now().Before(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, Key(userID))
		s.mu.Unlock()
		return "", false
	}
	return e.text, true
}

func (s *MemoryStore) Put(_ context.Context, userID, text string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	s.entries[Key(userID)] = entry{text: text, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}
