// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

// processor applies one part of a coalesced entity update.
type processor interface {
	process(ctx context.Context, update *core.EntityUpdate) error
}

// GraphWriter is the graph surface updates are written to.
type GraphWriter interface {
	PutEntities(ctx context.Context, entities ...*core.Entity) error
	AddRelationships(ctx context.Context, rels ...*core.Relationship) error
	DeleteEntity(ctx context.Context, id core.EntityID) error
}

// ChunkWriter is the vector index surface updates are written to.
type ChunkWriter interface {
	PutChunks(ctx context.Context, chunks ...*core.Chunk) error
	DeleteChunksForEntity(ctx context.Context, id core.EntityID) error
}

// graphProcessor writes entity bodies and relationships, or removes the
// entity when the update is a deletion.
type graphProcessor struct {
	graph  GraphWriter
	logger *slog.Logger
}

var _ processor = (*graphProcessor)(nil)

func newGraphProcessor(graph GraphWriter, logger *slog.Logger) *graphProcessor {
	return &graphProcessor{graph: graph, logger: logger.With("processor", "graph")}
}

func (gp *graphProcessor) process(ctx context.Context, update *core.EntityUpdate) error {
	if update.Deleted {
		gp.logger.Debug("deleting entity", "entity", update.EntityID)
		return storeError("graph store", gp.graph.DeleteEntity(ctx, update.EntityID))
	}

	if update.Entity != nil {
		if err := gp.graph.PutEntities(ctx, update.Entity); err != nil {
			return storeError("graph store", err)
		}
	}
	if len(update.Relationships) == 0 {
		return nil
	}

	rels := make([]*core.Relationship, len(update.Relationships))
	for i := range update.Relationships {
		rels[i] = &update.Relationships[i]
	}
	gp.logger.Debug("adding relationships", "entity", update.EntityID, "relationships", len(rels))
	return storeError("graph store", gp.graph.AddRelationships(ctx, rels...))
}

// storeError marks unreachable stores as retryable.
func storeError(service string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrStorageClosed) {
		return core.UpstreamUnavailable(service, err)
	}
	return fmt.Errorf("%s: %w", service, err)
}
