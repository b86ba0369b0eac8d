package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

// GraphStore composes the entity and relationship repositories into the
// read/rebuild surface the graph retriever consumes.
type GraphStore struct {
	storage.EntityRepository
	storage.RelationshipRepository

	backend *Backend
	logger  *slog.Logger
}

// NewGraphStore creates a GraphStore over backend.
func NewGraphStore(backend *Backend) (*GraphStore, error) {
	entities, err := NewEntityRepository(backend)
	if err != nil {
		return nil, err
	}
	rels, err := NewRelationshipRepository(backend)
	if err != nil {
		return nil, err
	}
	return &GraphStore{
		EntityRepository:       entities,
		RelationshipRepository: rels,
		backend:                backend,
		logger:                 backend.logger.With("component", "graph-store"),
	}, nil
}

// Close releases resources. The backend is owned by the caller.
func (g *GraphStore) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (g *GraphStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return g.backend.WithTransaction(ctx, fn)
}

// DeleteEntity removes an entity together with every edge touching it.
// Deleting an unknown entity is not an error.
func (g *GraphStore) DeleteEntity(ctx context.Context, id core.EntityID) error {
	if err := g.DeleteRelationshipsFor(ctx, id); err != nil {
		return err
	}
	err := g.DeleteEntities(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// Rebuild recomputes derived graph structure. Callers must serialize
// rebuilds; the graph retriever's guard does so.
func (g *GraphStore) Rebuild(ctx context.Context) error {
	seq, err := g.backend.GetSequence(rebuildSeq)
	if err != nil {
		return fmt.Errorf("rebuild sequence: %w", err)
	}
	defer seq.Release()
	generation, err := seq.Next()
	if err != nil {
		return fmt.Errorf("rebuild sequence: %w", err)
	}

	start := time.Now()
	n, err := g.RebuildDegrees(ctx)
	if err != nil {
		return fmt.Errorf("rebuild degree index: %w", err)
	}
	g.logger.Info("graph rebuilt", "generation", generation, "entities", n, "elapsed", time.Since(start))
	return nil
}
