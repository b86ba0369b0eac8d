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

package reembed

import (
	"context"

	"github.com/poiesic/portfolioqa/core"
)

const (
	// DefaultBatchSize is the default number of chunks to fetch in each batch
	DefaultBatchSize = 100
)

// ChunkStore is the slice of the chunk repository the reembedder needs.
type ChunkStore interface {
	ListChunkIDs(ctx context.Context) ([]core.ChunkID, error)
	GetChunks(ctx context.Context, ids ...core.ChunkID) ([]*core.Chunk, error)
	PutChunks(ctx context.Context, chunks ...*core.Chunk) error
}

// ChunkIterator walks every chunk in batches.
type ChunkIterator struct {
	repo      ChunkStore
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks to fetch in each batch (defaults when <= 0)
func NewChunkIterator(repo ChunkStore, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// Count returns the number of chunks the iterator will visit.
func (it *ChunkIterator) Count(ctx context.Context) (int, error) {
	ids, err := it.repo.ListChunkIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ForEach calls fn for each batch of chunks in id order.
// Only ids are held in memory; chunk bodies are loaded one batch at a time.
// Iteration stops on the first error from fn. Context cancellation is checked
// between batches.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ids, err := it.repo.ListChunkIDs(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < len(ids); i += it.batchSize {
		end := min(i+it.batchSize, len(ids))

		// Chunks deleted since listing are skipped
		batch, err := it.repo.GetChunks(ctx, ids[i:end]...)
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			if err := fn(batch); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}

	return nil
}
