// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package portfolioqa

import (
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/poiesic/portfolioqa/ai/openai"
	"github.com/poiesic/portfolioqa/cache"
	"github.com/poiesic/portfolioqa/graph"
	"github.com/poiesic/portfolioqa/httpapi"
	"github.com/poiesic/portfolioqa/ingestion"
	"github.com/poiesic/portfolioqa/intent"
	"github.com/poiesic/portfolioqa/orchestrator"
	"github.com/poiesic/portfolioqa/reembed"
	"github.com/poiesic/portfolioqa/search"
	"github.com/poiesic/portfolioqa/storage/badger"
)

// MetricsNamespace prefixes every metric the engine registers.
const MetricsNamespace = "portfolioqa"

// Engine owns the stores and every component wired over them.
type Engine struct {
	repos        *badger.Repositories
	provider     ai.AIProvider
	l2           cache.Store
	results      *cache.ResultCache
	metrics      *orchestrator.Metrics
	graph        *graph.Retriever
	orchestrator *orchestrator.Orchestrator
	pipeline     *ingestion.Pipeline
	baseLogger   *slog.Logger
	logger       *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig  *ai.Config
	provider  ai.AIProvider
	inMemory  bool
	l2        cache.Store
	encoding  string
	cacheSize int
	cacheTTL  time.Duration
	deadline  time.Duration
	debounce  time.Duration
	backfill  ingestion.BackfillSource
	monitor   search.Monitor
	progress  io.Writer
	logger    *slog.Logger
}

// WithAIConfig sets the configuration for the OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider uses provider instead of building one from the AI config.
// OpenEngine takes ownership and closes it, also when opening fails.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps all data in memory. The path passed to OpenEngine is ignored.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithL2Cache caches query embeddings and entity resolutions in store.
// A store that implements io.Closer is closed with the engine.
func WithL2Cache(store cache.Store) EngineOption {
	return func(o *engineOptions) {
		o.l2 = store
	}
}

// WithTokenEncoding counts context tokens with the named tiktoken encoding
// instead of whitespace-separated words.
func WithTokenEncoding(encoding string) EngineOption {
	return func(o *engineOptions) {
		o.encoding = encoding
	}
}

// WithResultCache sizes the answer cache.
func WithResultCache(size int, ttl time.Duration) EngineOption {
	return func(o *engineOptions) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

// WithQueryDeadline bounds queries that carry no deadline of their own.
func WithQueryDeadline(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		o.deadline = d
	}
}

// WithDebounceWindow sets how long change notifications settle before being applied.
func WithDebounceWindow(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		o.debounce = d
	}
}

// WithBackfillSource enables the backfill job.
func WithBackfillSource(source ingestion.BackfillSource) EngineOption {
	return func(o *engineOptions) {
		o.backfill = source
	}
}

// WithSearchMonitor observes every vector retrieval.
func WithSearchMonitor(m search.Monitor) EngineOption {
	return func(o *engineOptions) {
		o.monitor = m
	}
}

// WithProgressWriter receives human-readable reembed progress.
func WithProgressWriter(w io.Writer) EngineOption {
	return func(o *engineOptions) {
		o.progress = w
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// OpenEngine opens the store at filePath and wires the query and ingestion
// components over it.
func OpenEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig:  ai.DefaultConfig(),
		cacheSize: cache.DefaultSize,
		cacheTTL:  cache.DefaultTTL,
		deadline:  orchestrator.DefaultDeadline,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	repos, err := badger.OpenRepositories(filePath, options.inMemory)
	if err != nil {
		if options.provider != nil {
			options.provider.Close()
		}
		closeStore(options.l2)
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			closeStore(options.l2)
			repos.Close()
			return nil, err
		}
	}

	e := &Engine{
		repos:      repos,
		provider:   provider,
		l2:         options.l2,
		baseLogger: logger,
		logger:     logger.With("component", "engine"),
	}
	if err := e.wire(options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) wire(options *engineOptions) error {
	logger := options.logger
	embedder := e.provider.Embedder()
	generator := e.provider.Generator()

	var err error
	e.results, err = cache.NewResultCache(options.cacheSize, options.cacheTTL, cache.WithLogger(logger))
	if err != nil {
		return err
	}

	searchOpts := []search.Option{search.WithLogger(logger)}
	graphOpts := []graph.Option{graph.WithLogger(logger)}
	if e.l2 != nil {
		searchOpts = append(searchOpts, search.WithEmbeddingCache(e.l2, search.DefaultEmbeddingTTL))
		graphOpts = append(graphOpts, graph.WithResolveCache(e.l2, graph.DefaultResolveTTL))
	}
	if options.encoding != "" {
		searchOpts = append(searchOpts, search.WithTokenizer(search.NewTiktokenTokenizer(options.encoding, logger)))
	}
	if options.monitor != nil {
		searchOpts = append(searchOpts, search.WithMonitor(options.monitor))
	}

	vector, err := search.NewRetriever(e.repos.Chunks, embedder, searchOpts...)
	if err != nil {
		return err
	}
	e.graph, err = graph.NewRetriever(e.repos.Graph, graphOpts...)
	if err != nil {
		return err
	}
	classifier, err := intent.NewClassifier(intent.WithGenerator(generator), intent.WithLogger(logger))
	if err != nil {
		return err
	}

	e.metrics = orchestrator.NewMetrics(MetricsNamespace)
	e.orchestrator, err = orchestrator.New(classifier, vector, e.graph,
		orchestrator.WithCache(e.results),
		orchestrator.WithDeadline(options.deadline),
		orchestrator.WithPhraser(generator),
		orchestrator.WithMetrics(e.metrics),
		orchestrator.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	reembedder, err := reembed.NewReembedder(e.repos.Chunks, embedder, reembed.DefaultConfig(), options.progress)
	if err != nil {
		return err
	}

	pipelineOpts := []ingestion.Option{
		ingestion.WithInvalidator(e.orchestrator),
		ingestion.WithRebuilder(e.graph),
		ingestion.WithJobStore(e.repos.Jobs),
		ingestion.WithReembedder(reembedder),
		ingestion.WithLogger(logger),
	}
	if options.debounce > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithDebounceWindow(options.debounce))
	}
	if options.backfill != nil {
		pipelineOpts = append(pipelineOpts, ingestion.WithBackfillSource(options.backfill))
	}
	e.pipeline, err = ingestion.NewPipeline(e.repos.Graph, e.repos.Chunks, embedder, pipelineOpts...)
	return err
}

// Close drains pending ingestion work and releases every resource.
func (e *Engine) Close() error {
	if e.pipeline != nil {
		if err := e.pipeline.Close(); err != nil {
			e.logger.Error("error closing ingestion pipeline", "err", err)
		}
	}

	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	if err := closeStore(e.l2); err != nil {
		e.logger.Error("error closing L2 cache", "err", err)
	}

	if err := e.repos.Close(); err != nil {
		e.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}

func closeStore(store cache.Store) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Orchestrator returns the query orchestrator.
func (e *Engine) Orchestrator() *orchestrator.Orchestrator {
	return e.orchestrator
}

// Pipeline returns the ingestion pipeline.
func (e *Engine) Pipeline() *ingestion.Pipeline {
	return e.pipeline
}

// Repositories returns the underlying stores.
func (e *Engine) Repositories() *badger.Repositories {
	return e.repos
}

// Metrics returns the query metrics.
func (e *Engine) Metrics() *orchestrator.Metrics {
	return e.metrics
}

// NewServer builds an HTTP server over the engine. Ingestion routes and
// /metrics are wired to the engine's pipeline and registry, so it may be
// called only once per engine.
func (e *Engine) NewServer(opts ...httpapi.Option) (*httpapi.Server, error) {
	base := []httpapi.Option{
		httpapi.WithIngester(e.pipeline),
		httpapi.WithRegistry(e.metrics.Registry()),
		httpapi.WithLogger(e.baseLogger),
	}
	return httpapi.NewServer(e.orchestrator, append(base, opts...)...)
}
