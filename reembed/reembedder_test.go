package reembed

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/poiesic/portfolioqa/backoff"
	"github.com/poiesic/portfolioqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(batchSize int) *Config {
	return &Config{BatchSize: batchSize, ReportInterval: batchSize, Retry: fastPolicy()}
}

func TestNewReembedder_Validation(t *testing.T) {
	store := setupTestStore(t)

	_, err := NewReembedder(nil, &mockEmbedder{}, nil, nil)
	assert.ErrorIs(t, err, ErrChunkStoreRequired)

	_, err = NewReembedder(store, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewReembedder(store, &mockEmbedder{}, &Config{Retry: backoff.Policy{}}, nil)
	assert.ErrorIs(t, err, backoff.ErrInvalidPolicy)

	r, err := NewReembedder(store, &mockEmbedder{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, r.iterator.batchSize)
}

func TestReembedder_Run(t *testing.T) {
	store := setupTestStore(t)
	ids := seedChunks(t, store, 10)
	ctx := context.Background()

	var buf bytes.Buffer
	r, err := NewReembedder(store, &mockEmbedder{}, testConfig(3), &buf)
	require.NoError(t, err)

	var last [2]int
	calls := 0
	require.NoError(t, r.Run(ctx, func(processed, total int) {
		calls++
		last = [2]int{processed, total}
	}))

	chunks, err := store.GetChunks(ctx, ids...)
	require.NoError(t, err)
	require.Len(t, chunks, 10)
	for _, chunk := range chunks {
		require.Len(t, chunk.Vector, 3, "chunk %s should be re-embedded", chunk.ID)
		var magnitude float64
		for _, v := range chunk.Vector {
			magnitude += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(magnitude), 1e-6)
	}

	assert.Equal(t, [2]int{10, 10}, last)
	assert.GreaterOrEqual(t, calls, 5, "start, four batches and finish")

	output := buf.String()
	assert.Contains(t, output, "Starting reembedding of 10 chunks (batch size: 3)")
	assert.Contains(t, output, "Reembedding complete. Processed 10 chunks")
}

func TestReembedder_EmptyIndex(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewReembedder(setupTestStore(t), &mockEmbedder{}, testConfig(3), &buf)
	require.NoError(t, err)

	var got []int
	require.NoError(t, r.Run(context.Background(), func(processed, total int) {
		got = append(got, processed, total)
	}))

	assert.Equal(t, []int{0, 0}, got)
	assert.Contains(t, buf.String(), "No chunks found")
}

func TestReembedder_NilCallback(t *testing.T) {
	store := setupTestStore(t)
	seedChunks(t, store, 4)

	r, err := NewReembedder(store, &mockEmbedder{}, testConfig(2), nil)
	require.NoError(t, err)
	assert.NoError(t, r.Run(context.Background(), nil))
}

func TestReembedder_Concurrent(t *testing.T) {
	store := setupTestStore(t)
	ids := seedChunks(t, store, 25)
	ctx := context.Background()

	config := testConfig(4)
	config.Concurrency = 3
	r, err := NewReembedder(store, &mockEmbedder{}, config, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	maxProcessed := 0
	require.NoError(t, r.Run(ctx, func(processed, total int) {
		mu.Lock()
		defer mu.Unlock()
		maxProcessed = max(maxProcessed, processed)
	}))
	assert.Equal(t, 25, maxProcessed)

	chunks, err := store.GetChunks(ctx, ids...)
	require.NoError(t, err)
	for _, chunk := range chunks {
		assert.Len(t, chunk.Vector, 3)
	}
}

func TestReembedder_StopsOnBatchFailure(t *testing.T) {
	store := setupTestStore(t)
	seedChunks(t, store, 6)
	ctx := context.Background()

	batches := 0
	embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		batches++
		if batches > 1 {
			return nil, errors.New("model unloaded")
		}
		out := make([][]float32, len(texts))
		for i := range out {
			out[i] = []float32{1, 0, 0}
		}
		return out, nil
	}}

	r, err := NewReembedder(store, embedder, testConfig(2), nil)
	require.NoError(t, err)

	var processed int
	err = r.Run(ctx, func(p, total int) { processed = p })
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstreamUnavailable)
	assert.Equal(t, 2, processed, "only the first batch completed")
}

func TestReembedder_Cancelled(t *testing.T) {
	store := setupTestStore(t)
	seedChunks(t, store, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := NewReembedder(store, &mockEmbedder{}, testConfig(2), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Run(ctx, nil), context.Canceled)
}
