package graph

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/portfolioqa/core"
)

// Store is the entity and relationship store the retriever reads from.
// badger.GraphStore satisfies it.
type Store interface {
	GetEntity(ctx context.Context, id core.EntityID) (*core.Entity, error)
	FindByName(ctx context.Context, name string) (*core.Entity, error)
	FindByAlias(ctx context.Context, alias string) (*core.Entity, error)
	ListEntities(ctx context.Context, types ...core.EntityType) ([]*core.Entity, error)
	Outgoing(ctx context.Context, id core.EntityID, kinds ...core.RelationKind) ([]*core.Relationship, error)
	Incoming(ctx context.Context, id core.EntityID, kinds ...core.RelationKind) ([]*core.Relationship, error)
	Degree(ctx context.Context, id core.EntityID) (int, error)
	Rebuild(ctx context.Context) error
}

// Guard serializes structural rebuilds against reads. Reads share the lock
// and run concurrently; a rebuild holds it exclusively, so it waits for
// in-flight reads and blocks new ones until it finishes.
type Guard struct {
	mu     sync.RWMutex
	store  Store
	logger *slog.Logger
}

// NewGuard wraps store. A nil logger falls back to slog.Default().
func NewGuard(store Store, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, logger: logger.With("component", "graph-guard")}
}

// Read runs fn with shared access to the store.
func (g *Guard) Read(ctx context.Context, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, g.store)
}

// Rebuild runs the store's rebuild with exclusive access.
func (g *Guard) Rebuild(ctx context.Context) error {
	waitStart := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	g.logger.Debug("rebuild lock acquired", "waited", time.Since(waitStart))
	return g.store.Rebuild(ctx)
}
