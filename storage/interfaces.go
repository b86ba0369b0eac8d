package storage

import (
	"context"

	"github.com/poiesic/portfolioqa/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the repository and releases resources.
	Close() error
}

// EntityRepository stores knowledge graph nodes.
type EntityRepository interface {
	Repository

	// PutEntities inserts or replaces entities.
	// CreatedAt is preserved across replacements; UpdatedAt is set when zero.
	// Name and alias indexes are maintained.
	PutEntities(ctx context.Context, entities ...*core.Entity) error

	// GetEntity retrieves a single entity by ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id core.EntityID) (*core.Entity, error)

	// GetEntities retrieves multiple entities by their IDs.
	// Returns only the entities that exist (no error for missing entities).
	GetEntities(ctx context.Context, ids ...core.EntityID) ([]*core.Entity, error)

	// FindByName looks up an entity by exact name, ignoring case.
	// Returns ErrNotFound if no entity carries the name.
	FindByName(ctx context.Context, name string) (*core.Entity, error)

	// FindByAlias looks up an entity by exact alias, ignoring case.
	// Returns ErrNotFound if no entity carries the alias.
	FindByAlias(ctx context.Context, alias string) (*core.Entity, error)

	// ListEntities returns every entity, optionally restricted to the given types,
	// ordered by ID.
	ListEntities(ctx context.Context, types ...core.EntityType) ([]*core.Entity, error)

	// DeleteEntities removes entities and their indexes.
	// Returns ErrNotFound if any entity doesn't exist.
	DeleteEntities(ctx context.Context, ids ...core.EntityID) error
}

// RelationshipRepository stores directed, typed edges between entities.
type RelationshipRepository interface {
	Repository

	// AddRelationships inserts or replaces edges. An edge is identified by
	// (From, Kind, To).
	AddRelationships(ctx context.Context, rels ...*core.Relationship) error

	// Outgoing returns edges leaving id, optionally restricted to kinds.
	// Results are ordered by kind then target ID.
	Outgoing(ctx context.Context, id core.EntityID, kinds ...core.RelationKind) ([]*core.Relationship, error)

	// Incoming returns edges arriving at id, optionally restricted to kinds.
	// Results are ordered by kind then source ID.
	Incoming(ctx context.Context, id core.EntityID, kinds ...core.RelationKind) ([]*core.Relationship, error)

	// DeleteRelationshipsFor removes every edge touching id.
	DeleteRelationshipsFor(ctx context.Context, id core.EntityID) error

	// Degree returns the connection count recorded by the last RebuildDegrees.
	// Entities never indexed have degree 0.
	Degree(ctx context.Context, id core.EntityID) (int, error)

	// RebuildDegrees recomputes the degree index from the edge set and
	// returns the number of entities indexed.
	RebuildDegrees(ctx context.Context) (int, error)
}

// ScoredChunk is a chunk paired with its raw similarity to a query vector.
type ScoredChunk struct {
	Chunk *core.Chunk
	Score float32
}

// ChunkRepository stores text chunks and their embeddings.
type ChunkRepository interface {
	Repository

	// PutChunks inserts or replaces chunks. Chunks without an ID receive a
	// content-derived one.
	PutChunks(ctx context.Context, chunks ...*core.Chunk) error

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ChunkID) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ChunkID) ([]*core.Chunk, error)

	// ListChunkIDs returns every chunk ID in ascending order.
	ListChunkIDs(ctx context.Context) ([]core.ChunkID, error)

	// ChunksForEntity returns the chunks attached to an entity, ordered by ID.
	ChunksForEntity(ctx context.Context, id core.EntityID) ([]*core.Chunk, error)

	// DeleteChunksForEntity removes every chunk attached to an entity.
	DeleteChunksForEntity(ctx context.Context, id core.EntityID) error

	// Search returns up to topK embedded chunks ranked by cosine similarity,
	// highest first, ties broken by chunk ID ascending. A non-empty filter
	// restricts candidates to chunks of those entities.
	// Returns ErrInvalidArgument when topK is not positive.
	Search(ctx context.Context, vector []float32, topK int, filter []core.EntityID) ([]ScoredChunk, error)
}

// JobRepository persists ingestion job state.
type JobRepository interface {
	Repository

	// CreateJob stores a new job.
	// Returns ErrDuplicateKey if a job with the same ID exists.
	CreateJob(ctx context.Context, job *core.IngestJob) error

	// UpdateJob replaces a job's state. The status change must be a valid
	// lifecycle transition (or no change); terminal jobs are immutable.
	// Returns ErrNotFound if the job doesn't exist.
	UpdateJob(ctx context.Context, job *core.IngestJob) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.IngestJob, error)

	// ListJobs returns jobs, newest first, up to limit (0 means all).
	ListJobs(ctx context.Context, limit int) ([]*core.IngestJob, error)
}
