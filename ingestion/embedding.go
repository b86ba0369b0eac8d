package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/poiesic/portfolioqa/core"
)

// embeddingProcessor embeds an update's chunks and writes them to the index.
type embeddingProcessor struct {
	chunks   ChunkWriter
	embedder ai.Embedder
	logger   *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

func newEmbeddingProcessor(chunks ChunkWriter, embedder ai.Embedder, logger *slog.Logger) *embeddingProcessor {
	return &embeddingProcessor{
		chunks:   chunks,
		embedder: embedder,
		logger:   logger.With("processor", "embeddings"),
	}
}

// process embeds chunks that arrive without a vector. Chunks inherit entity
// name and type metadata so vector sources can be attributed.
func (ep *embeddingProcessor) process(ctx context.Context, update *core.EntityUpdate) error {
	if update.Deleted {
		return storeError("vector index", ep.chunks.DeleteChunksForEntity(ctx, update.EntityID))
	}
	if len(update.Chunks) == 0 {
		return nil
	}

	chunks := make([]*core.Chunk, len(update.Chunks))
	var texts []string
	var missing []int
	for i := range update.Chunks {
		c := update.Chunks[i]
		if c.EntityID == "" {
			c.EntityID = update.EntityID
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = update.ReceivedAt
		}
		c.Metadata = withEntityMetadata(c.Metadata, update.Entity)
		if len(c.Vector) == 0 {
			texts = append(texts, c.Text)
			missing = append(missing, i)
		}
		chunks[i] = &c
	}

	if len(texts) > 0 {
		ep.logger.Debug("generating embeddings for chunks", "entity", update.EntityID, "chunks", len(texts))
		embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			ep.logger.Error("error generating embeddings", "err", err)
			return core.UpstreamUnavailable("embedding service", err)
		}
		if len(embeddings) != len(texts) {
			return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(embeddings))
		}
		for j, i := range missing {
			chunks[i].Vector = embeddings[j]
		}
	}

	return storeError("vector index", ep.chunks.PutChunks(ctx, chunks...))
}

func withEntityMetadata(meta map[string]string, entity *core.Entity) map[string]string {
	if entity == nil {
		return meta
	}
	out := make(map[string]string, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	if out["name"] == "" {
		out["name"] = entity.Name
	}
	if out["entity_type"] == "" {
		out["entity_type"] = string(entity.Type)
	}
	return out
}
