package linkstate

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local runs. Consume is a
// compare-and-delete under the mutex, so only one caller can win an id.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]LinkState
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStore returns an empty store. A nil clock means time.Now.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{states: make(map[string]LinkState), ttl: ttl, now: now}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Create(ctx context.Context, ls LinkState) (LinkState, error) {
	if err := ctx.Err(); err != nil {
		return LinkState{}, err
	}
	if ls.ID == "" {
		return LinkState{}, errors.New("linkstate: id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	if _, exists := s.states[ls.ID]; exists {
		return LinkState{}, errors.New("linkstate: id already exists")
	}
	if ls.CreatedAt.IsZero() {
		ls.CreatedAt = s.now()
		ls.UpdatedAt = ls.CreatedAt
	}
	s.states[ls.ID] = ls
	return ls, nil
}

func (s *MemoryStore) Consume(ctx context.Context, id string) (LinkState, error) {
	if err := ctx.Err(); err != nil {
		return LinkState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.states[id]
	if !ok {
		return LinkState{}, ErrExpiredOrNotFound
	}
	delete(s.states, id)
	if s.expired(ls, s.now()) {
		return LinkState{}, ErrExpiredOrNotFound
	}
	return ls, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
	return nil
}

// sweep drops expired states. The caller holds the mutex.
func (s *MemoryStore) sweep() {
	now := s.now()
	for id, ls := range s.states {
		if s.expired(ls, now) {
			delete(s.states, id)
		}
	}
}

func (s *MemoryStore) expired(ls LinkState, now time.Time) bool {
	return !now.Before(ls.CreatedAt.Add(s.ttl))
}

// Len reports how many states are held. Expired states not yet swept by a
// Create are included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}
