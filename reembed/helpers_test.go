package reembed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/portfolioqa/backoff"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage/badger"
	"github.com/stretchr/testify/require"
)

// mockEmbedder for testing
type mockEmbedder struct {
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	// Default: return unnormalized vectors for each text
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0} // magnitude = 3.0
	}
	return result, nil
}

func setupTestStore(t *testing.T) *badger.ChunkRepository {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos.Chunks
}

// seedChunks stores n chunks with stale two-dimensional vectors.
func seedChunks(t *testing.T, store *badger.ChunkRepository, n int) []core.ChunkID {
	t.Helper()
	chunks := make([]*core.Chunk, n)
	for i := range chunks {
		chunks[i] = &core.Chunk{
			ID:        core.ChunkID(fmt.Sprintf("c%03d", i)),
			EntityID:  "p1",
			Text:      fmt.Sprintf("status note %d", i),
			Vector:    []float32{0.5, 0.5},
			UpdatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	require.NoError(t, store.PutChunks(context.Background(), chunks...))

	ids := make([]core.ChunkID, n)
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}

func fastPolicy() backoff.Policy {
	p := backoff.DefaultPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	return p
}
