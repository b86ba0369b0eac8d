package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrEmptyEmbedding is returned when the service answers without vectors.
	ErrEmptyEmbedding = errors.New("embedding service returned no vectors")

	// ErrDimensionMismatch is returned when a vector's length differs from
	// ai.Config.EmbeddingDimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// Questions go through EmbedQuery and chunk text through batched EmbedDocuments.
type Embedder struct {
	embedder   embeddings.Embedder
	dimensions int
	logger     *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newClient(config.EmbeddingHost, config, openai.WithEmbeddingModel(config.EmbeddingModel))
	if err != nil {
		return nil, err
	}
	return wrapEmbedder(client, config)
}

// wrapEmbedder builds the Embedder over any langchaingo embedding client.
func wrapEmbedder(client embeddings.EmbedderClient, config *ai.Config) (*Embedder, error) {
	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.EmbeddingBatchSize),
	)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:   embedder,
		dimensions: config.EmbeddingDimensions,
		logger:     slog.Default().With("component", "embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds a question for vector retrieval.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to embed query", "length", len(text), "err", err)
		return nil, err
	}
	if len(vector) == 0 {
		e.logger.Warn("embedder returned empty result")
		return nil, ErrEmptyEmbedding
	}
	if err := e.checkDimensions(0, vector); err != nil {
		return nil, err
	}

	e.logger.Debug("embedded query", "length", len(text), "dimensions", len(vector), "elapsed", time.Since(start))
	return vector, nil
}

// EmbedTexts embeds chunk texts. Large inputs are split into
// EmbeddingBatchSize requests; the result keeps the input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	start := time.Now()

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to embed chunks", "count", len(texts), "err", err)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmptyEmbedding, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: text %d", ErrEmptyEmbedding, i)
		}
		if err := e.checkDimensions(i, v); err != nil {
			return nil, err
		}
	}

	e.logger.Debug("embedded chunks", "count", len(texts), "elapsed", time.Since(start))
	return vectors, nil
}

func (e *Embedder) checkDimensions(i int, v []float32) error {
	if e.dimensions == 0 || len(v) == e.dimensions {
		return nil
	}
	e.logger.Error("embedding has unexpected length", "index", i, "got", len(v), "want", e.dimensions)
	return fmt.Errorf("%w: text %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(v), e.dimensions)
}
