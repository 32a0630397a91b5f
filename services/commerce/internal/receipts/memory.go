package receipts

import (
	"context"
	"sync"
	"time"
)

// memoryStore is a development-only in-memory receipt store.
// WARNING: not suitable for production; state is lost on restart and
// does not work across multiple instances.
type memoryStore struct {
	mu   sync.Mutex
	seen map[string]*receipt
}

type receipt struct {
	eventType   string
	receivedAt  time.Time
	processedAt *time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{seen: make(map[string]*receipt)}
}

func (s *memoryStore) Check(_ context.Context, eventID, eventType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[eventID]; ok {
		return true, nil
	}
	s.seen[eventID] = &receipt{eventType: eventType, receivedAt: time.Now().UTC()}
	return false, nil
}

func (s *memoryStore) MarkProcessed(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.seen[eventID]; ok {
		now := time.Now().UTC()
		r.processedAt = &now
	}
	return nil
}
