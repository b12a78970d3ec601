package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/alugueis-admin-go/internal/domain"
	"github.com/boddenberg/alugueis-admin-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var collectionTracer = otel.Tracer("service/collection")

// Collection is the list/create/update/delete module of one backend
// collection. Every successful List is remembered per session; Reload
// refreshes the remembered list after a bulk import and the next List
// shows it.
type Collection[T any] struct {
	kind     domain.EntityKind
	api      port.APIClient
	path     string
	validate func(*T) error
	loaded   *snapshots[[]T]
	logger   *zap.Logger
}

func newCollection[T any](kind domain.EntityKind, api port.APIClient, path string, ttl time.Duration, validate func(*T) error, logger *zap.Logger) *Collection[T] {
	return &Collection[T]{
		kind:     kind,
		api:      api,
		path:     withSlash(path),
		validate: validate,
		loaded:   newSnapshots[[]T](ttl),
		logger:   logger.With(zap.String("module", string(kind))),
	}
}

// Kind returns the collection this module manages.
func (c *Collection[T]) Kind() domain.EntityKind { return c.kind }

// List fetches the whole collection. A list reloaded by an import since
// the last call is returned as is.
func (c *Collection[T]) List(ctx context.Context, sess *domain.Session) ([]T, error) {
	ctx, span := collectionTracer.Start(ctx, "Collection.List")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(c.kind)))

	if items, ok := c.loaded.take(sess.ID, nil); ok {
		span.SetAttributes(attribute.Bool("refreshed", true))
		return items, nil
	}
	items, err := c.fetch(ctx, sess)
	if err != nil {
		return nil, err
	}
	c.loaded.remember(sess.ID, items)
	return items, nil
}

// Get fetches one item by id.
func (c *Collection[T]) Get(ctx context.Context, sess *domain.Session, id int) (*T, error) {
	ctx, span := collectionTracer.Start(ctx, "Collection.Get")
	defer span.End()

	env := c.api.Get(ctx, sess, c.itemPath(id))
	if err := env.Err(string(c.kind)); err != nil {
		return nil, err
	}
	var item T
	if err := env.DecodeData(&item); err != nil {
		return nil, fmt.Errorf("decode %s %d: %w", c.kind, id, err)
	}
	return &item, nil
}

// Create validates item and posts it.
func (c *Collection[T]) Create(ctx context.Context, sess *domain.Session, item *T) (*T, error) {
	ctx, span := collectionTracer.Start(ctx, "Collection.Create")
	defer span.End()

	if err := c.validate(item); err != nil {
		return nil, err
	}
	env := c.api.Post(ctx, sess, c.path, item)
	if err := env.Err(string(c.kind)); err != nil {
		return nil, err
	}
	var created T
	if err := env.DecodeData(&created); err != nil {
		created = *item
	}
	c.loaded.invalidate(sess.ID)
	c.logger.Info("item created")
	return &created, nil
}

// Update validates item and replaces the stored one.
func (c *Collection[T]) Update(ctx context.Context, sess *domain.Session, id int, item *T) error {
	ctx, span := collectionTracer.Start(ctx, "Collection.Update")
	defer span.End()
	span.SetAttributes(attribute.Int("id", id))

	if id <= 0 {
		return &domain.ErrValidation{Field: "id", Message: "ID inválido"}
	}
	if err := c.validate(item); err != nil {
		return err
	}
	env := c.api.Put(ctx, sess, c.itemPath(id), item)
	if err := env.Err(string(c.kind)); err != nil {
		return err
	}
	c.loaded.invalidate(sess.ID)
	c.logger.Info("item updated", zap.Int("id", id))
	return nil
}

// Delete removes an item.
func (c *Collection[T]) Delete(ctx context.Context, sess *domain.Session, id int) error {
	ctx, span := collectionTracer.Start(ctx, "Collection.Delete")
	defer span.End()
	span.SetAttributes(attribute.Int("id", id))

	if id <= 0 {
		return &domain.ErrValidation{Field: "id", Message: "ID inválido"}
	}
	env := c.api.Delete(ctx, sess, c.itemPath(id))
	if err := env.Err(string(c.kind)); err != nil {
		return err
	}
	c.loaded.invalidate(sess.ID)
	c.logger.Info("item deleted", zap.Int("id", id))
	return nil
}

// Forget drops the remembered list of a session.
func (c *Collection[T]) Forget(sessionID string) {
	c.loaded.forget(sessionID)
}

// Reload is the event-bus listener. Sessions that never opened this
// module are skipped.
func (c *Collection[T]) Reload(ctx context.Context, ev domain.EntityChanged) error {
	if ev.Session == nil {
		return nil
	}
	if _, ok := c.loaded.last(ev.Session.ID); !ok {
		c.logger.Debug("module not loaded for session, skipping reload", zap.String("batch_id", ev.BatchID))
		return nil
	}
	items, err := c.fetch(ctx, ev.Session)
	if err != nil {
		return fmt.Errorf("reload %s: %w", c.kind, err)
	}
	c.loaded.refresh(ev.Session.ID, items)
	c.logger.Info("list reloaded", zap.String("batch_id", ev.BatchID), zap.Int("items", len(items)))
	return nil
}

// Close stops the loaded-list cache.
func (c *Collection[T]) Close() {
	c.loaded.close()
}

func (c *Collection[T]) fetch(ctx context.Context, sess *domain.Session) ([]T, error) {
	env := c.api.Get(ctx, sess, c.path)
	if err := env.Err(string(c.kind)); err != nil {
		return nil, err
	}
	var items []T
	if err := env.DecodeData(&items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.kind, err)
	}
	return items, nil
}

func (c *Collection[T]) itemPath(id int) string {
	return c.path + strconv.Itoa(id)
}

// requireFields reports the first blank field, in order.
func requireFields(fields ...[2]string) error {
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return &domain.ErrValidation{Field: f[0], Message: "Preencha o campo: " + f[0]}
		}
	}
	return nil
}
