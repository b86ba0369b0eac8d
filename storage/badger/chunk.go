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

package badger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
// Search is a brute-force cosine scan over every embedded chunk.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &ChunkRepository{
		backend: backend,
	}, nil
}

// Close releases resources. ChunkRepository has no resources to release.
func (r *ChunkRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// PutChunks inserts or replaces chunks.
func (r *ChunkRepository) PutChunks(ctx context.Context, chunks ...*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, chunk := range chunks {
			if err := core.ValidateChunk(chunk); err != nil {
				return err
			}
			if chunk.ID == "" {
				chunk.ID = core.IDFromContent(string(chunk.EntityID) + "\x00" + chunk.Text)
			}
			if chunk.UpdatedAt.IsZero() {
				chunk.UpdatedAt = now
			}

			key := makeChunkKey(chunk.ID)
			old, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if old != nil && old.EntityID != chunk.EntityID {
				if err := tx.Delete(makeChunkEntityKey(old.EntityID, old.ID)); err != nil {
					return err
				}
			}

			value := storage.MarshalChunk(chunk)
			if err := tx.Set(key, value); err != nil {
				return err
			}
			if err := tx.Set(makeChunkEntityKey(chunk.EntityID, chunk.ID), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ChunkID) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readChunk(tx, makeChunkKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetChunks retrieves multiple chunks by their IDs.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ChunkID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListChunkIDs returns every chunk ID in ascending order.
func (r *ChunkRepository) ListChunkIDs(ctx context.Context) ([]core.ChunkID, error) {
	var ids []core.ChunkID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(chunkPrefix), false, func(suffix, _ []byte) error {
			ids = append(ids, core.ChunkID(suffix))
			return nil
		})
	}, false)
	return ids, err
}

// ChunksForEntity returns the chunks attached to an entity.
func (r *ChunkRepository) ChunksForEntity(ctx context.Context, id core.EntityID) ([]*core.Chunk, error) {
	ids, err := r.chunkIDsForEntity(id)
	if err != nil {
		return nil, err
	}
	return r.GetChunks(ctx, ids...)
}

// DeleteChunksForEntity removes every chunk attached to an entity.
func (r *ChunkRepository) DeleteChunksForEntity(ctx context.Context, id core.EntityID) error {
	ids, err := r.chunkIDsForEntity(id)
	if err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunkID := range ids {
			if err := tx.Delete(makeChunkKey(chunkID)); err != nil {
				return err
			}
			if err := tx.Delete(makeChunkEntityKey(id, chunkID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

func (r *ChunkRepository) chunkIDsForEntity(id core.EntityID) ([]core.ChunkID, error) {
	var ids []core.ChunkID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialChunkEntityKey(id), false, func(suffix, _ []byte) error {
			ids = append(ids, core.ChunkID(suffix))
			return nil
		})
	}, false)
	return ids, err
}

// Search ranks embedded chunks by cosine similarity to vector.
func (r *ChunkRepository) Search(ctx context.Context, vector []float32, topK int, filter []core.EntityID) ([]storage.ScoredChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", storage.ErrInvalidArgument, topK)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidArgument)
	}

	var results []storage.ScoredChunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(chunkPrefix), true, func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			chunk, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			// Skip chunks without embeddings
			if len(chunk.Vector) == 0 {
				return nil
			}
			if len(filter) > 0 && !slices.Contains(filter, chunk.EntityID) {
				return nil
			}
			results = append(results, storage.ScoredChunk{
				Chunk: chunk,
				Score: cosineSimilarity(vector, chunk.Vector),
			})
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending, then chunk ID ascending
	slices.SortFunc(results, func(a, b storage.ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(string(a.Chunk.ID), string(b.Chunk.ID))
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// readChunk reads a chunk from the transaction, returning nil when absent.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	val, err := getValue(tx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return storage.UnmarshalChunk(val)
}
