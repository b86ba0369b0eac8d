package mock

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder()
	ctx := context.Background()

	v1, err := m.EmbedText(ctx, "atlas")
	require.NoError(t, err)
	v2, err := m.EmbedText(ctx, "atlas")
	require.NoError(t, err)
	v3, err := m.EmbedText(ctx, "borealis")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.NotEqual(t, v1, v3)
	assert.Len(t, v1, DefaultDimensions)

	var sum float64
	for _, x := range v1 {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	assert.Equal(t, 3, m.CallCount())
}

func TestMockEmbedder_ConcurrentCallCount(t *testing.T) {
	m := NewMockEmbedder()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.EmbedTexts(context.Background(), []string{"a", "b"})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, m.CallCount())
	m.Reset()
	assert.Equal(t, 0, m.CallCount())
}

func TestMockGenerator(t *testing.T) {
	t.Run("default echoes last line", func(t *testing.T) {
		g := NewMockGenerator()
		out, err := g.Generate(context.Background(), "system\nquestion text", 10)
		require.NoError(t, err)
		assert.Equal(t, "question text", out)
		assert.Equal(t, []string{"system\nquestion text"}, g.Prompts())
	})

	t.Run("fixed reply", func(t *testing.T) {
		g := NewMockGeneratorWithReply("ok")
		out, err := g.Generate(context.Background(), "anything", 0)
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, 1, g.CallCount())
	})

	t.Run("injected error", func(t *testing.T) {
		g := NewMockGenerator()
		g.GenerateFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return "", errors.New("boom")
		}
		_, err := g.Generate(context.Background(), "p", 0)
		assert.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewMockGenerator().Generate(ctx, "p", 0)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMockProvider(t *testing.T) {
	embedder := NewMockEmbedder()
	generator := NewMockGenerator()
	p := NewMockProviderWithServices(embedder, generator)

	assert.Same(t, embedder, p.Embedder())
	assert.Same(t, generator, p.Generator())
	assert.NoError(t, p.Close())

	def := NewMockProvider().(*MockProvider)
	assert.NotNil(t, def.GetMockEmbedder())
	assert.NotNil(t, def.GetMockGenerator())
}
