package reembed

import "errors"

var (
	// ErrChunkStoreRequired is returned when no chunk store is provided.
	ErrChunkStoreRequired = errors.New("chunk store required")

	// ErrEmbedderRequired is returned when no embedder is provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingMismatch is returned when the embedder returns the wrong number of vectors.
	ErrEmbeddingMismatch = errors.New("embedding count mismatch")
)
