package service

import (
	"sync"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/infra/cache"
)

type snapshot[T any] struct {
	value     T
	refreshed bool
}

// snapshots remembers, per session, what a module last showed. A reload
// after an import replaces the entry and marks it refreshed; the next
// screen load takes the refreshed value instead of calling the backend.
type snapshots[T any] struct {
	mu      sync.Mutex
	entries *cache.InMemory[snapshot[T]]
}

func newSnapshots[T any](ttl time.Duration) *snapshots[T] {
	return &snapshots[T]{entries: cache.New[snapshot[T]](ttl)}
}

func (s *snapshots[T]) remember(sessionID string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Set(sessionID, snapshot[T]{value: v})
}

func (s *snapshots[T]) last(sessionID string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries.Get(sessionID)
	return e.value, ok
}

func (s *snapshots[T]) refresh(sessionID string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Set(sessionID, snapshot[T]{value: v, refreshed: true})
}

// take returns the refreshed value of a session once, if match accepts it.
// The entry stays remembered but is no longer refreshed.
func (s *snapshots[T]) take(sessionID string, match func(T) bool) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries.Get(sessionID)
	if !ok || !e.refreshed || (match != nil && !match(e.value)) {
		var zero T
		return zero, false
	}
	s.entries.Set(sessionID, snapshot[T]{value: e.value})
	return e.value, true
}

// invalidate drops a pending refresh after a mutation, so the next load
// fetches again. The session stays remembered.
func (s *snapshots[T]) invalidate(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries.Get(sessionID); ok && e.refreshed {
		s.entries.Set(sessionID, snapshot[T]{value: e.value})
	}
}

func (s *snapshots[T]) forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Delete(sessionID)
}

func (s *snapshots[T]) close() {
	s.entries.Close()
}
