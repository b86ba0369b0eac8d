package openai

import (
	"testing"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name       string
		opts       []ai.ConfigOption
		wantShared bool
	}{
		{
			name:       "one host shares a client",
			opts:       []ai.ConfigOption{ai.WithHost("http://localhost:11434")},
			wantShared: true,
		},
		{
			name: "separate hosts",
			opts: []ai.ConfigOption{
				ai.WithEmbeddingHost("http://embed:8080"),
				ai.WithGeneratorHost("http://chat:9090"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(ai.NewConfig(tt.opts...))
			require.NoError(t, err)
			defer provider.Close()

			p := provider.(*Provider)
			assert.Equal(t, tt.wantShared, p.shared)
			assert.NotNil(t, provider.Embedder())
			assert.NotNil(t, provider.Generator())
			assert.Equal(t, 256, p.generator.maxTokens)
		})
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(ai.NewConfig(ai.WithEmbeddingModel("")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EmbeddingModel")
}

func TestProvider_CloseIsIdempotent(t *testing.T) {
	provider, err := NewProvider(ai.NewConfig())
	require.NoError(t, err)

	assert.NoError(t, provider.Close())
	assert.NoError(t, provider.Close())
}
