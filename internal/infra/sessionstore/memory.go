// Package sessionstore keeps browser sessions: an in-memory tier for every
// session and an optional SQLite tier for variants whose token policy is
// persistent.
package sessionstore

import (
	"context"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/cache"
)

// Memory stores live *domain.Session values so concurrent requests of the
// same browser share one session object.
type Memory struct {
	items *cache.InMemory[*domain.Session]
	ttl   time.Duration
}

// NewMemory creates an in-memory store whose entries idle out after ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{items: cache.New[*domain.Session](ttl), ttl: ttl}
}

// Get returns the session with id.
func (m *Memory) Get(_ context.Context, id string) (*domain.Session, bool, error) {
	s, ok := m.items.Get(id)
	return s, ok, nil
}

// Save stores s and refreshes its idle timer.
func (m *Memory) Save(_ context.Context, s *domain.Session) error {
	m.items.SetWithTTL(s.ID, s, m.ttl)
	return nil
}

// Delete removes the session.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.items.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (m *Memory) Len() int {
	return m.items.Len()
}

// Close stops the background cleanup.
func (m *Memory) Close() error {
	m.items.Close()
	return nil
}
