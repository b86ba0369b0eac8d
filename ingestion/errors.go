package ingestion

import "errors"

var (
	// ErrGraphStoreRequired is returned when a graph store is not provided.
	ErrGraphStoreRequired = errors.New("graph store required")

	// ErrChunkStoreRequired is returned when a chunk store is not provided.
	ErrChunkStoreRequired = errors.New("chunk store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrJobStoreRequired is returned by job operations when no job store is configured.
	ErrJobStoreRequired = errors.New("job store required")

	// ErrJobUnavailable is returned when a job kind has no runner configured.
	ErrJobUnavailable = errors.New("job kind not available")

	// ErrInvalidOption is returned by options given unusable values.
	ErrInvalidOption = errors.New("invalid pipeline option")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("pipeline closed")
)
