package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/poiesic/portfolioqa/cache"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

const (
	DefaultTopK            = 10
	DefaultTopN            = 5
	DefaultContextBudget   = 8000
	DefaultChunkTokenLimit = 500
	DefaultOverlap         = 50
	DefaultEmbeddingTTL    = time.Hour

	recencyHalfLifeDays = 30.0
	summaryRunes        = 240
)

// ChunkSearcher is the vector index the retriever reads from.
// storage.ChunkRepository satisfies it.
type ChunkSearcher interface {
	Search(ctx context.Context, vector []float32, topK int, filter []core.EntityID) ([]storage.ScoredChunk, error)
}

// Weights balance the rerank signals. They should sum to 1.
type Weights struct {
	Similarity float64
	Recency    float64
	Filter     float64
}

// DefaultWeights returns similarity 0.7, recency 0.2, filter match 0.1.
func DefaultWeights() Weights {
	return Weights{Similarity: 0.7, Recency: 0.2, Filter: 0.1}
}

// Request is a single vector retrieval.
type Request struct {
	Text string
	// TopK is the number of index candidates. Zero uses the retriever default.
	TopK         int
	EntityFilter []core.EntityID
}

// Candidate is an index hit with its rerank signals.
type Candidate struct {
	Chunk       *core.Chunk
	Similarity  float64
	Recency     float64
	FilterMatch float64
	Score       float64
}

// Passage is a chunk as it appears in the assembled context.
type Passage struct {
	ChunkID  core.ChunkID
	EntityID core.EntityID
	Text     string
	Tokens   int
	Score    float64
}

// Retriever answers questions from the chunk index.
// A Retriever is safe for concurrent use.
type Retriever struct {
	index    ChunkSearcher
	embedder ai.Embedder

	topK            int
	topN            int
	contextBudget   int
	chunkTokenLimit int
	overlap         int
	weights         Weights

	embeddingCache cache.Store
	embeddingTTL   time.Duration

	tokenizer Tokenizer
	monitor   Monitor
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

func positive(name string, n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidOption, name, n)
	}
	return nil
}

// WithTopK sets the default number of index candidates.
// Default is 10.
func WithTopK(k int) Option {
	return func(r *Retriever) error {
		if err := positive("top_k", k); err != nil {
			return err
		}
		r.topK = k
		return nil
	}
}

// WithTopN sets how many reranked chunks are kept.
// Default is 5.
func WithTopN(n int) Option {
	return func(r *Retriever) error {
		if err := positive("top_n", n); err != nil {
			return err
		}
		r.topN = n
		return nil
	}
}

// WithContextBudget caps the assembled context in tokens.
// Default is 8000.
func WithContextBudget(tokens int) Option {
	return func(r *Retriever) error {
		if err := positive("context budget", tokens); err != nil {
			return err
		}
		r.contextBudget = tokens
		return nil
	}
}

// WithChunkTokenLimit caps each chunk in the assembled context.
// Default is 500.
func WithChunkTokenLimit(tokens int) Option {
	return func(r *Retriever) error {
		if err := positive("chunk token limit", tokens); err != nil {
			return err
		}
		r.chunkTokenLimit = tokens
		return nil
	}
}

// WithOverlap sets the overlap window, in tokens, between adjacent chunks of
// the same entity. Default is 50.
func WithOverlap(tokens int) Option {
	return func(r *Retriever) error {
		if tokens < 0 {
			return fmt.Errorf("%w: overlap must not be negative", ErrInvalidOption)
		}
		r.overlap = tokens
		return nil
	}
}

// WithWeights sets the rerank weights.
func WithWeights(w Weights) Option {
	return func(r *Retriever) error {
		if w.Similarity < 0 || w.Recency < 0 || w.Filter < 0 {
			return fmt.Errorf("%w: weights must not be negative", ErrInvalidOption)
		}
		r.weights = w
		return nil
	}
}

// WithEmbeddingCache caches query embeddings in store for ttl.
func WithEmbeddingCache(store cache.Store, ttl time.Duration) Option {
	return func(r *Retriever) error {
		r.embeddingCache = store
		r.embeddingTTL = ttl
		return nil
	}
}

// WithTokenizer sets the token counter used for context assembly.
// Default is WordTokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(r *Retriever) error {
		if t != nil {
			r.tokenizer = t
		}
		return nil
	}
}

// WithMonitor observes every retrieval.
func WithMonitor(m Monitor) Option {
	return func(r *Retriever) error {
		if m != nil {
			r.monitor = m
		}
		return nil
	}
}

// WithClock sets the time source used for recency.
func WithClock(now func() time.Time) Option {
	return func(r *Retriever) error {
		if now != nil {
			r.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a vector retriever.
func NewRetriever(index ChunkSearcher, embedder ai.Embedder, opts ...Option) (*Retriever, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		index:           index,
		embedder:        embedder,
		topK:            DefaultTopK,
		topN:            DefaultTopN,
		contextBudget:   DefaultContextBudget,
		chunkTokenLimit: DefaultChunkTokenLimit,
		overlap:         DefaultOverlap,
		weights:         DefaultWeights(),
		embeddingTTL:    DefaultEmbeddingTTL,
		tokenizer:       WordTokenizer{},
		monitor:         &noopMonitor{},
		now:             time.Now,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "vector-retriever")

	return r, nil
}

// Retrieve runs the vector path for a question.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (core.PartialResult, error) {
	topK := req.TopK
	switch {
	case topK < 0:
		return core.PartialResult{}, ErrInvalidTopK
	case topK == 0:
		topK = r.topK
	}

	r.monitor.Start(req.Text)

	vector, cached, err := r.embed(ctx, req.Text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.PartialResult{}, ctxErr
		}
		r.logger.Error("error generating embedding for query", "query", req.Text, "err", err)
		return core.PartialResult{}, core.UpstreamUnavailable("embedding service", err)
	}
	r.monitor.AfterEmbedding(cached)

	hits, err := r.index.Search(ctx, vector, topK, req.EntityFilter)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.PartialResult{}, ctxErr
		}
		r.logger.Error("error searching chunk index", "err", err)
		if errors.Is(err, storage.ErrStorageClosed) {
			return core.PartialResult{}, core.UpstreamUnavailable("vector index", err)
		}
		return core.PartialResult{}, core.RetrievalFailure(core.SourceVector, err)
	}
	r.monitor.AfterSearch(hits)

	if len(hits) == 0 {
		result := core.EmptyPartial(core.SourceVector)
		r.monitor.Finish(&result)
		return result, nil
	}

	ranked := r.Rerank(req, hits)
	r.monitor.AfterRerank(ranked)

	passages, truncated := r.Assemble(ranked)
	r.monitor.AfterAssembly(passages, truncated)

	result := r.buildResult(ranked, passages, truncated, len(hits))
	r.monitor.Finish(&result)

	r.logger.Debug("vector retrieval complete",
		"candidates", len(hits),
		"kept", len(passages),
		"confidence", result.Confidence,
		"embedding_cached", cached)
	return result, nil
}

// Rerank scores index hits and returns the best topN, highest first.
// Ties are broken by chunk ID ascending.
func (r *Retriever) Rerank(req Request, hits []storage.ScoredChunk) []Candidate {
	now := r.now()
	filter := make(map[core.EntityID]bool, len(req.EntityFilter))
	for _, id := range req.EntityFilter {
		filter[id] = true
	}

	ranked := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		if hit.Chunk == nil {
			continue
		}
		c := Candidate{
			Chunk:      hit.Chunk,
			Similarity: clamp01(float64(hit.Score)),
			Recency:    recency(hit.Chunk.UpdatedAt, now),
		}
		if filter[hit.Chunk.EntityID] || containsAllQueryWords(hit.Chunk.Text, req.Text) {
			c.FilterMatch = 1
		}
		c.Score = clamp01(r.weights.Similarity*c.Similarity + r.weights.Recency*c.Recency + r.weights.Filter*c.FilterMatch)
		ranked = append(ranked, c)
	}

	slices.SortFunc(ranked, func(a, b Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.ID, b.Chunk.ID)
	})

	if len(ranked) > r.topN {
		ranked = ranked[:r.topN]
	}
	return ranked
}

// recency decays with a 30-day half-weight: 1 for fresh chunks, 0.5 at 30 days.
func recency(updated, now time.Time) float64 {
	if updated.IsZero() {
		return 0
	}
	ageDays := max(now.Sub(updated).Hours()/24, 0)
	return 1 / (1 + ageDays/recencyHalfLifeDays)
}

// Assemble builds the bounded context from ranked candidates. truncated is
// true when the budget cut or dropped a chunk.
func (r *Retriever) Assemble(ranked []Candidate) ([]Passage, bool) {
	passages := make([]Passage, 0, len(ranked))
	lastText := make(map[core.EntityID]string)
	remaining := r.contextBudget
	truncated := false

	for _, c := range ranked {
		if remaining <= 0 {
			truncated = true
			break
		}

		text := r.tokenizer.Truncate(c.Chunk.Text, r.chunkTokenLimit)
		if prev, ok := lastText[c.Chunk.EntityID]; ok && r.overlap > 0 {
			text = dropOverlap(prev, text, r.overlap)
		}
		lastText[c.Chunk.EntityID] = text

		tokens := r.tokenizer.Count(text)
		if tokens > remaining {
			text = r.tokenizer.Truncate(text, remaining)
			tokens = r.tokenizer.Count(text)
			truncated = true
		}
		remaining -= tokens

		passages = append(passages, Passage{
			ChunkID:  c.Chunk.ID,
			EntityID: c.Chunk.EntityID,
			Text:     text,
			Tokens:   tokens,
			Score:    c.Score,
		})
	}
	return passages, truncated
}

func (r *Retriever) buildResult(ranked []Candidate, passages []Passage, truncated bool, candidates int) core.PartialResult {
	result := core.EmptyPartial(core.SourceVector)
	result.Truncated = truncated
	result.Evidence.Connections = candidates

	var total float64
	for i, p := range passages {
		chunk := ranked[i].Chunk
		entityType := core.EntityType(chunk.Metadata["entity_type"])
		if entityType == "" {
			entityType = core.EntityDocument
		}
		result.Sources = append(result.Sources, core.Source{
			EntityID:   p.EntityID,
			EntityType: entityType,
			Name:       chunk.Metadata["name"],
			Content:    p.Text,
			Confidence: clamp01(p.Score),
			SourceType: core.SourceVector,
		})
		total += p.Score
		addChunkEvidence(&result.Evidence, chunk)
	}

	if len(passages) > 0 {
		result.Confidence = clamp01(total / float64(len(passages)))
		result.Answer = summarize(passages[0].Text, summaryRunes)
	}
	return result
}

// addChunkEvidence folds a chunk's metadata into the evidence the scorer reads.
func addChunkEvidence(ev *core.Evidence, chunk *core.Chunk) {
	if chunk.UpdatedAt.After(ev.NewestUpdate) {
		ev.NewestUpdate = chunk.UpdatedAt
	}

	required := []bool{chunk.EntityID != "", chunk.Text != "", !chunk.UpdatedAt.IsZero()}
	for _, ok := range required {
		ev.RequiredFields++
		if ok {
			ev.RequiredPresent++
		}
	}
	for _, k := range []string{"name", "entity_type", "source"} {
		ev.OptionalFields++
		if chunk.Metadata[k] != "" {
			ev.OptionalPresent++
		}
	}
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
