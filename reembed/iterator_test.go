package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/portfolioqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIterator_ForEach(t *testing.T) {
	store := setupTestStore(t)
	ids := seedChunks(t, store, 10)

	it := NewChunkIterator(store, 3)

	count, err := it.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	var sizes []int
	var visited []core.ChunkID
	err = it.ForEach(context.Background(), func(batch []*core.Chunk) error {
		sizes = append(sizes, len(batch))
		for _, c := range batch {
			visited = append(visited, c.ID)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 3, 1}, sizes)
	assert.Equal(t, ids, visited, "chunks visited once, in id order")
}

func TestChunkIterator_Empty(t *testing.T) {
	it := NewChunkIterator(setupTestStore(t), 5)

	called := false
	err := it.ForEach(context.Background(), func([]*core.Chunk) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestChunkIterator_DefaultBatchSize(t *testing.T) {
	it := NewChunkIterator(setupTestStore(t), 0)
	assert.Equal(t, DefaultBatchSize, it.batchSize)
}

func TestChunkIterator_StopsOnError(t *testing.T) {
	store := setupTestStore(t)
	seedChunks(t, store, 10)
	it := NewChunkIterator(store, 2)

	boom := errors.New("boom")
	batches := 0
	err := it.ForEach(context.Background(), func([]*core.Chunk) error {
		batches++
		if batches == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, batches)
}

func TestChunkIterator_ContextCancellation(t *testing.T) {
	store := setupTestStore(t)
	seedChunks(t, store, 10)
	it := NewChunkIterator(store, 2)

	ctx, cancel := context.WithCancel(context.Background())
	batches := 0
	err := it.ForEach(ctx, func([]*core.Chunk) error {
		batches++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, batches)

	err = it.ForEach(ctx, func([]*core.Chunk) error {
		t.Fatal("should not be called with a cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
