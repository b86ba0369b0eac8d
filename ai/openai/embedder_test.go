package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClient answers every text with a vector whose first component is
// the text's length, and remembers each request it received.
type recordingClient struct {
	dims    int
	err     error
	batches [][]string
}

func (c *recordingClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	c.batches = append(c.batches, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, c.dims)
		if c.dims > 0 {
			v[0] = float32(len(text))
		}
		out[i] = v
	}
	return out, nil
}

func newTestEmbedder(t *testing.T, client *recordingClient, opts ...ai.ConfigOption) *Embedder {
	t.Helper()
	e, err := wrapEmbedder(client, ai.NewConfig(opts...))
	require.NoError(t, err)
	return e
}

func TestEmbedder_EmbedTextsBatches(t *testing.T) {
	client := &recordingClient{dims: 3}
	e := newTestEmbedder(t, client, ai.WithEmbeddingBatchSize(2))

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := e.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0], "vector %d out of order", i)
	}
	var sizes []int
	for _, b := range client.batches {
		sizes = append(sizes, len(b))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestEmbedder_EmbedTextStripsNewlines(t *testing.T) {
	client := &recordingClient{dims: 3}
	e := newTestEmbedder(t, client)

	vector, err := e.EmbedText(context.Background(), "why did\nAtlas slip")
	require.NoError(t, err)
	assert.Len(t, vector, 3)
	require.Len(t, client.batches, 1)
	assert.Equal(t, []string{"why did Atlas slip"}, client.batches[0])
}

func TestEmbedder_EmptyInputMakesNoRequest(t *testing.T) {
	client := &recordingClient{dims: 3}
	e := newTestEmbedder(t, client)

	vectors, err := e.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, client.batches)
}

func TestEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		client  *recordingClient
		opts    []ai.ConfigOption
		wantErr error
	}{
		{
			name:    "dimension mismatch",
			client:  &recordingClient{dims: 3},
			opts:    []ai.ConfigOption{ai.WithEmbeddingDimensions(4)},
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "empty vectors",
			client:  &recordingClient{dims: 0},
			wantErr: ErrEmptyEmbedding,
		},
		{
			name:    "service failure",
			client:  &recordingClient{dims: 3, err: errors.New("connection refused")},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEmbedder(t, tt.client, tt.opts...)

			_, err := e.EmbedText(context.Background(), "Atlas risk")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.ErrorContains(t, err, "connection refused")
			}

			_, err = e.EmbedTexts(context.Background(), []string{"Atlas", "Borealis"})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestEmbedder_MatchingDimensionsPass(t *testing.T) {
	e := newTestEmbedder(t, &recordingClient{dims: 4}, ai.WithEmbeddingDimensions(4))

	vectors, err := e.EmbedTexts(context.Background(), []string{"Atlas", "Borealis"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
}
