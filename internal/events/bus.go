// Package events is a typed, synchronous observer for entity changes.
// Feature modules subscribe to the kinds they display; the import flow
// publishes after a successful upload. A kind with no subscriber is a
// silent no-op.
package events

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Listener reloads whatever a module shows for ev.Kind.
type Listener func(ctx context.Context, ev domain.EntityChanged) error

type subscription struct {
	id       string
	name     string
	listener Listener
}

// Bus delivers EntityChanged events to subscribers in registration order.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[domain.EntityKind][]subscription
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(metrics *observability.Metrics, logger *zap.Logger) *Bus {
	return &Bus{
		subscribers: make(map[domain.EntityKind][]subscription),
		metrics:     metrics,
		logger:      logger.With(zap.String("component", "events")),
	}
}

// Subscribe registers listener for kind under a readable name and returns
// the subscription ID.
func (b *Bus) Subscribe(kind domain.EntityKind, name string, listener Listener) string {
	id := uuid.NewString()

	b.mu.Lock()
	b.subscribers[kind] = append(b.subscribers[kind], subscription{id: id, name: name, listener: listener})
	b.mu.Unlock()

	b.logger.Debug("subscriber added",
		zap.String("kind", string(kind)),
		zap.String("subscriber", name),
		zap.String("sub_id", id),
	)
	return id
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (b *Bus) Unsubscribe(kind domain.EntityKind, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[kind]
	for i, s := range subs {
		if s.id == id {
			b.subscribers[kind] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[kind]) == 0 {
		delete(b.subscribers, kind)
	}
}

// Subscribers returns the subscriber names registered for kind, sorted.
func (b *Bus) Subscribers(kind domain.EntityKind) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.subscribers[kind]))
	for _, s := range b.subscribers[kind] {
		names = append(names, s.name)
	}
	sort.Strings(names)
	return names
}

// Publish calls every listener of ev.Kind and reports each outcome.
// A failing or panicking listener does not stop the others and never
// reaches the publisher.
func (b *Bus) Publish(ctx context.Context, ev domain.EntityChanged) []domain.RefreshResult {
	b.mu.RLock()
	targets := append([]subscription(nil), b.subscribers[ev.Kind]...)
	b.mu.RUnlock()

	if len(targets) == 0 {
		b.logger.Debug("no subscriber for event", zap.String("kind", string(ev.Kind)))
		return nil
	}

	results := make([]domain.RefreshResult, 0, len(targets))
	for _, s := range targets {
		err := deliver(ctx, s.listener, ev)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			b.logger.Warn("subscriber failed",
				zap.String("kind", string(ev.Kind)),
				zap.String("subscriber", s.name),
				zap.Error(err),
			)
		}
		b.metrics.IncrRefresh(s.name, outcome)
		results = append(results, domain.RefreshResult{Subscriber: s.name, Kind: ev.Kind, Err: err})
	}
	return results
}

func deliver(ctx context.Context, l Listener, ev domain.EntityChanged) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l(ctx, ev)
}
