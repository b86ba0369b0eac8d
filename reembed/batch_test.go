package reembed

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/portfolioqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchProcessor_Process(t *testing.T) {
	store := setupTestStore(t)
	ids := seedChunks(t, store, 2)
	ctx := context.Background()

	chunks, err := store.GetChunks(ctx, ids...)
	require.NoError(t, err)

	processor := NewBatchProcessor(store, &mockEmbedder{}, fastPolicy(), nil)
	require.NoError(t, processor.Process(ctx, chunks))

	updated, err := store.GetChunks(ctx, ids...)
	require.NoError(t, err)
	require.Len(t, updated, 2)

	for _, chunk := range updated {
		require.Len(t, chunk.Vector, 3)
		var magnitude float64
		for _, v := range chunk.Vector {
			magnitude += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-6, "vector should be normalized")
		assert.Equal(t, 2025, chunk.UpdatedAt.Year(), "freshness is preserved")
	}
}

func TestBatchProcessor_EmptyBatch(t *testing.T) {
	embedder := &mockEmbedder{embedTextsFunc: func(context.Context, []string) ([][]float32, error) {
		t.Fatal("embedder should not be called")
		return nil, nil
	}}
	processor := NewBatchProcessor(setupTestStore(t), embedder, fastPolicy(), nil)
	assert.NoError(t, processor.Process(context.Background(), nil))
}

func TestBatchProcessor_RetriesTransientFailure(t *testing.T) {
	store := setupTestStore(t)
	ids := seedChunks(t, store, 1)
	ctx := context.Background()

	attempts := 0
	embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("rate limited")
		}
		return [][]float32{{0, 3, 4}}, nil
	}}

	chunks, err := store.GetChunks(ctx, ids...)
	require.NoError(t, err)
	processor := NewBatchProcessor(store, embedder, fastPolicy(), nil)
	require.NoError(t, processor.Process(ctx, chunks))

	assert.Equal(t, 3, attempts)
	got, err := store.GetChunk(ctx, ids[0])
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 0.6, 0.8}, got.Vector, 1e-6)
}

func TestBatchProcessor_GivesUp(t *testing.T) {
	store := setupTestStore(t)
	ids := seedChunks(t, store, 1)
	ctx := context.Background()

	attempts := 0
	embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		return nil, errors.New("rate limited")
	}}

	chunks, err := store.GetChunks(ctx, ids...)
	require.NoError(t, err)
	err = NewBatchProcessor(store, embedder, fastPolicy(), nil).Process(ctx, chunks)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Equal(t, 3, attempts)

	got, err := store.GetChunk(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, got.Vector, "stored vector untouched")
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	store := setupTestStore(t)
	ids := seedChunks(t, store, 2)
	ctx := context.Background()

	embedder := &mockEmbedder{embedTextsFunc: func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{1, 0}}, nil
	}}

	chunks, err := store.GetChunks(ctx, ids...)
	require.NoError(t, err)
	err = NewBatchProcessor(store, embedder, fastPolicy(), nil).Process(ctx, chunks)
	assert.ErrorIs(t, err, ErrEmbeddingMismatch)
}
