package reembed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/poiesic/portfolioqa/backoff"
	"github.com/poiesic/portfolioqa/core"
)

// BatchProcessor handles embedding generation for batches of chunks.
type BatchProcessor struct {
	repo     ChunkStore
	embedder ai.Embedder
	policy   backoff.Policy
	logger   *slog.Logger
}

// NewBatchProcessor creates a new batch processor. Embedding calls are
// retried under policy.
func NewBatchProcessor(repo ChunkStore, embedder ai.Embedder, policy backoff.Policy, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		repo:     repo,
		embedder: embedder,
		policy:   policy,
		logger:   logger,
	}
}

// Process generates embeddings for a batch of chunks and writes them back.
// Vectors are normalized after embedding to ensure compatibility with cosine similarity.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var embeddings [][]float32
	err := bp.policy.DoWithLogger(ctx, bp.logger, func(ctx context.Context) error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return core.UpstreamUnavailable("embedding service", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingMismatch, len(chunks), len(embeddings))
	}

	for i := range chunks {
		chunks[i].Vector = NormalizeVector(embeddings[i])
	}

	if err := bp.repo.PutChunks(ctx, chunks...); err != nil {
		return fmt.Errorf("failed to update chunks: %w", err)
	}

	return nil
}
