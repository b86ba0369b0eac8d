package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/portfolioqa/ai"
	"github.com/poiesic/portfolioqa/backoff"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
	"github.com/romdo/go-debounce"
)

const (
	defaultDebounceWindow = 5 * time.Second
	defaultMaxWait        = 30 * time.Second
)

// Invalidator evicts cached answers that cite an entity.
type Invalidator interface {
	InvalidateEntity(id core.EntityID) int
}

// Rebuilder recomputes derived graph structure after a batch of writes.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Pipeline keeps the graph and vector index in sync with upstream changes.
// Notifications are coalesced per entity and applied in debounced batches.
type Pipeline struct {
	processors  []processor
	updatePool  *ants.Pool
	jobPool     *ants.Pool
	policy      backoff.Policy
	invalidator Invalidator
	rebuilder   Rebuilder
	jobs        storage.JobRepository
	reembedder  Reembedder
	backfill    BackfillSource
	window      time.Duration
	maxWait     time.Duration
	now         func() time.Time
	logger      *slog.Logger

	mu       sync.Mutex
	pending  map[core.EntityID]core.EntityUpdate
	closed   bool
	debounce func()
	cancel   func()

	flushMu  sync.Mutex
	released bool

	jobsWG sync.WaitGroup
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithDebounceWindow sets how long the pipeline waits for notifications to
// settle before flushing. Default is 5s.
func WithDebounceWindow(window time.Duration) Option {
	return func(p *Pipeline) error {
		if window <= 0 {
			return fmt.Errorf("%w: debounce window must be positive", ErrInvalidOption)
		}
		p.window = window
		return nil
	}
}

// WithMaxWait bounds how long a steady stream of notifications can delay a
// flush. Default is 30s.
func WithMaxWait(maxWait time.Duration) Option {
	return func(p *Pipeline) error {
		if maxWait <= 0 {
			return fmt.Errorf("%w: max wait must be positive", ErrInvalidOption)
		}
		p.maxWait = maxWait
		return nil
	}
}

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pools
		p.releasePools()

		updatePool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		jobPool, err := ants.NewPool(size)
		if err != nil {
			updatePool.Release()
			return err
		}

		p.updatePool = updatePool
		p.jobPool = jobPool
		return nil
	}
}

// WithRetryPolicy sets the retry policy applied to each update and rebuild.
func WithRetryPolicy(policy backoff.Policy) Option {
	return func(p *Pipeline) error {
		if err := policy.Validate(); err != nil {
			return err
		}
		p.policy = policy
		return nil
	}
}

// WithInvalidator sets the cache evicted after each applied update.
func WithInvalidator(invalidator Invalidator) Option {
	return func(p *Pipeline) error {
		p.invalidator = invalidator
		return nil
	}
}

// WithRebuilder sets what is rebuilt after each flushed batch and by rebuild jobs.
func WithRebuilder(rebuilder Rebuilder) Option {
	return func(p *Pipeline) error {
		p.rebuilder = rebuilder
		return nil
	}
}

// WithJobStore sets where job state is persisted. Jobs are unavailable without one.
func WithJobStore(jobs storage.JobRepository) Option {
	return func(p *Pipeline) error {
		p.jobs = jobs
		return nil
	}
}

// WithReembedder enables reembed jobs.
func WithReembedder(reembedder Reembedder) Option {
	return func(p *Pipeline) error {
		p.reembedder = reembedder
		return nil
	}
}

// WithBackfillSource enables backfill jobs.
func WithBackfillSource(source BackfillSource) Option {
	return func(p *Pipeline) error {
		p.backfill = source
		return nil
	}
}

// WithClock overrides the time source used to stamp updates and jobs.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now == nil {
			now = time.Now
		}
		p.now = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	graph GraphWriter,
	chunks ChunkWriter,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if graph == nil {
		return nil, ErrGraphStoreRequired
	}
	if chunks == nil {
		return nil, ErrChunkStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	updatePool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	jobPool, err := ants.NewPool(poolSize)
	if err != nil {
		updatePool.Release()
		return nil, err
	}

	p := &Pipeline{
		updatePool: updatePool,
		jobPool:    jobPool,
		policy:     backoff.DefaultPolicy(),
		window:     defaultDebounceWindow,
		maxWait:    defaultMaxWait,
		now:        time.Now,
		logger:     slog.Default(),
		pending:    make(map[core.EntityID]core.EntityUpdate),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.releasePools()
			return nil, optErr
		}
	}
	if p.maxWait < p.window {
		p.maxWait = p.window
	}

	p.logger = p.logger.With("component", "ingestion")
	p.processors = []processor{
		newGraphProcessor(graph, p.logger),
		newEmbeddingProcessor(chunks, embedder, p.logger),
	}
	p.debounce, p.cancel = debounce.NewWithMaxWait(p.window, p.maxWait, func() {
		if err := p.Flush(context.Background()); err != nil {
			p.logger.Error("error flushing updates", "err", err)
		}
	})

	return p, nil
}

// Notify queues a change notification. Updates for the same entity are
// coalesced until the next flush. Cached answers citing the entity are
// evicted immediately so stale answers are not served while the flush waits.
func (p *Pipeline) Notify(update core.EntityUpdate) error {
	if err := core.ValidateUpdate(&update); err != nil {
		return err
	}
	if update.ReceivedAt.IsZero() {
		update.ReceivedAt = p.now().UTC()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if prev, ok := p.pending[update.EntityID]; ok {
		update = prev.Coalesce(update)
	}
	p.pending[update.EntityID] = update
	pending := len(p.pending)
	p.mu.Unlock()

	p.invalidate(update.EntityID)
	p.logger.Debug("queued update", "entity", update.EntityID, "pending", pending)
	p.debounce()
	return nil
}

// Pending returns the number of entities waiting for the next flush.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Flush applies every queued update now and waits for them to finish.
// Failed updates are logged and reported in the joined error; they are not requeued.
func (p *Pipeline) Flush(ctx context.Context) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[core.EntityID]core.EntityUpdate)
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if p.released {
		return ErrClosed
	}

	// Deterministic submission order keeps logs readable
	ids := make([]core.EntityID, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	start := p.now()
	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		errs   []error
		failed int
	)
	record := func(id core.EntityID, err error) {
		errMu.Lock()
		defer errMu.Unlock()
		failed++
		errs = append(errs, fmt.Errorf("entity %s: %w", id, err))
	}

	for _, id := range ids {
		update := batch[id]
		wg.Add(1)
		err := p.updatePool.Submit(func() {
			defer wg.Done()
			if err := p.apply(ctx, &update); err != nil {
				p.logger.Error("error applying update", "entity", update.EntityID, "err", err)
				record(update.EntityID, err)
			}
		})
		if err != nil {
			wg.Done()
			record(id, err)
		}
	}
	wg.Wait()

	if err := p.rebuild(ctx); err != nil {
		p.logger.Error("error rebuilding graph", "err", err)
		errs = append(errs, err)
	}

	p.logger.Info("flushed updates",
		"entities", len(ids),
		"failed", failed,
		"elapsed", p.now().Sub(start))
	return errors.Join(errs...)
}

// Close flushes pending notifications, waits for running jobs and releases
// the worker pools. The pipeline should not be used after calling Close.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	err := p.Flush(context.Background())
	p.jobsWG.Wait()

	p.flushMu.Lock()
	p.released = true
	p.releasePools()
	p.flushMu.Unlock()
	return err
}

// apply writes one coalesced update under the retry policy and evicts
// answers citing the entity once it lands.
func (p *Pipeline) apply(ctx context.Context, update *core.EntityUpdate) error {
	err := p.policy.DoWithLogger(ctx, p.logger, func(ctx context.Context) error {
		for _, proc := range p.processors {
			if err := proc.process(ctx, update); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.invalidate(update.EntityID)
	return nil
}

func (p *Pipeline) invalidate(id core.EntityID) {
	if p.invalidator == nil {
		return
	}
	if n := p.invalidator.InvalidateEntity(id); n > 0 {
		p.logger.Debug("invalidated cached answers", "entity", id, "count", n)
	}
}

func (p *Pipeline) rebuild(ctx context.Context) error {
	if p.rebuilder == nil {
		return nil
	}
	return p.policy.DoWithLogger(ctx, p.logger, p.rebuilder.Rebuild)
}

func (p *Pipeline) releasePools() {
	if p.updatePool != nil {
		p.updatePool.Release()
	}
	if p.jobPool != nil {
		p.jobPool.Release()
	}
}
