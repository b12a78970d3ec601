package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/events"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBus() *events.Bus {
	return events.NewBus(observability.NewMetrics(), zap.NewNop())
}

func TestPublish_NoSubscriberIsSilent(t *testing.T) {
	bus := newBus()

	var results []domain.RefreshResult
	require.NotPanics(t, func() {
		results = bus.Publish(context.Background(), domain.EntityChanged{Kind: domain.KindProperties})
	})
	assert.Empty(t, results)
}

func TestPublish_OnlyMatchingKind(t *testing.T) {
	bus := newBus()

	var got []domain.EntityKind
	bus.Subscribe(domain.KindProperties, "imoveis", func(_ context.Context, ev domain.EntityChanged) error {
		got = append(got, ev.Kind)
		return nil
	})
	bus.Subscribe(domain.KindRentals, "alugueis", func(_ context.Context, ev domain.EntityChanged) error {
		got = append(got, ev.Kind)
		return nil
	})

	results := bus.Publish(context.Background(), domain.EntityChanged{Kind: domain.KindProperties})

	assert.Equal(t, []domain.EntityKind{domain.KindProperties}, got)
	require.Len(t, results, 1)
	assert.Equal(t, "imoveis", results[0].Subscriber)
	assert.NoError(t, results[0].Err)
}

func TestPublish_IsolatesFailures(t *testing.T) {
	bus := newBus()

	called := false
	bus.Subscribe(domain.KindOwners, "boom", func(context.Context, domain.EntityChanged) error {
		panic("nil map")
	})
	bus.Subscribe(domain.KindOwners, "fails", func(context.Context, domain.EntityChanged) error {
		return errors.New("backend down")
	})
	bus.Subscribe(domain.KindOwners, "works", func(context.Context, domain.EntityChanged) error {
		called = true
		return nil
	})

	results := bus.Publish(context.Background(), domain.EntityChanged{Kind: domain.KindOwners})

	require.Len(t, results, 3)
	assert.Error(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.True(t, called)
}

func TestUnsubscribe(t *testing.T) {
	bus := newBus()

	calls := 0
	id := bus.Subscribe(domain.KindParticipations, "participacoes", func(context.Context, domain.EntityChanged) error {
		calls++
		return nil
	})
	assert.Equal(t, []string{"participacoes"}, bus.Subscribers(domain.KindParticipations))

	bus.Unsubscribe(domain.KindParticipations, id)
	bus.Unsubscribe(domain.KindParticipations, "unknown")
	bus.Publish(context.Background(), domain.EntityChanged{Kind: domain.KindParticipations})

	assert.Equal(t, 0, calls)
	assert.Empty(t, bus.Subscribers(domain.KindParticipations))
}
