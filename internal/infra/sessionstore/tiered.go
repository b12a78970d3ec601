package sessionstore

import (
	"context"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/infra/observability"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"go.uber.org/zap"
)

// Tiered serves every session from memory and mirrors sessions marked
// Persist into a durable store. A memory miss falls back to the durable
// tier and rehydrates the session as unvalidated.
type Tiered struct {
	memory  *Memory
	durable port.ExpiringStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTiered combines the tiers. durable may be nil.
func NewTiered(memory *Memory, durable port.ExpiringStore, metrics *observability.Metrics, logger *zap.Logger) *Tiered {
	return &Tiered{memory: memory, durable: durable, metrics: metrics, logger: logger}
}

// Get looks up a session by id.
func (t *Tiered) Get(ctx context.Context, id string) (*domain.Session, bool, error) {
	if s, ok, _ := t.memory.Get(ctx, id); ok {
		t.metrics.IncrSessionLookup("memory", "hit")
		return s, true, nil
	}
	t.metrics.IncrSessionLookup("memory", "miss")

	if t.durable == nil {
		return nil, false, nil
	}
	s, ok, err := t.durable.Get(ctx, id)
	if err != nil {
		t.metrics.IncrSessionLookup("durable", "error")
		return nil, false, err
	}
	if !ok {
		t.metrics.IncrSessionLookup("durable", "miss")
		return nil, false, nil
	}
	t.metrics.IncrSessionLookup("durable", "hit")

	if s.Expired(time.Now()) {
		_ = t.durable.Delete(ctx, id)
		return nil, false, nil
	}
	_ = t.memory.Save(ctx, s)
	t.logger.Debug("session rehydrated from durable store",
		zap.String("session_id", id),
		zap.String("variant", string(s.Variant)),
	)
	return s, true, nil
}

// Save writes s to memory and, when it persists, to the durable tier.
func (t *Tiered) Save(ctx context.Context, s *domain.Session) error {
	if err := t.memory.Save(ctx, s); err != nil {
		return err
	}
	if t.durable != nil && s.View().Persist {
		return t.durable.Save(ctx, s)
	}
	return nil
}

// Delete removes s from both tiers.
func (t *Tiered) Delete(ctx context.Context, id string) error {
	_ = t.memory.Delete(ctx, id)
	if t.durable != nil {
		return t.durable.Delete(ctx, id)
	}
	return nil
}

// Sweep removes expired durable sessions until ctx is done.
func (t *Tiered) Sweep(ctx context.Context, every time.Duration) {
	if t.durable == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := t.durable.DeleteExpired(ctx, now)
			if err != nil {
				t.logger.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				t.logger.Info("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}
