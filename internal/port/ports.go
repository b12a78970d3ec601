// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the HTTP backend client, the session stores and the event bus.
package port

import (
	"context"
	"io"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
)

// TokenSource yields the Authorization header of the caller, if any.
// *domain.Session implements it.
type TokenSource interface {
	AuthHeader() (string, bool)
}

// APIClient talks to the REST backend. Every method returns an envelope;
// none of them returns a Go error.
type APIClient interface {
	Get(ctx context.Context, src TokenSource, path string) *domain.Envelope
	Post(ctx context.Context, src TokenSource, path string, body any) *domain.Envelope
	Put(ctx context.Context, src TokenSource, path string, body any) *domain.Envelope
	Delete(ctx context.Context, src TokenSource, path string) *domain.Envelope
	Upload(ctx context.Context, src TokenSource, path, field, filename string, r io.Reader) *domain.Envelope
}

// SessionStore keeps browser sessions between requests.
type SessionStore interface {
	Get(ctx context.Context, id string) (*domain.Session, bool, error)
	Save(ctx context.Context, s *domain.Session) error
	Delete(ctx context.Context, id string) error
}

// ExpiringStore is a SessionStore that can drop stale rows.
type ExpiringStore interface {
	SessionStore
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// EventPublisher announces bulk changes to registered modules.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.EntityChanged) []domain.RefreshResult
}
