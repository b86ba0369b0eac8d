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

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/poiesic/portfolioqa/cache"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/graph"
	"github.com/poiesic/portfolioqa/intent"
	"github.com/poiesic/portfolioqa/merge"
	"github.com/poiesic/portfolioqa/scoring"
	"github.com/poiesic/portfolioqa/search"
)

const (
	// DefaultDeadline bounds a query that sets no deadline of its own.
	DefaultDeadline = 5 * time.Second

	phraseMaxTokens = 256

	// intent, two paths, merged and complete fit without blocking.
	eventBuffer = 8
)

// Classifier selects an intent and route for a question.
type Classifier interface {
	Classify(ctx context.Context, text string, attrs map[string]any) core.Intent
}

// VectorRetriever runs the RAG path.
type VectorRetriever interface {
	Retrieve(ctx context.Context, req search.Request) (core.PartialResult, error)
}

// GraphRetriever runs the knowledge graph path.
type GraphRetriever interface {
	Retrieve(ctx context.Context, req graph.Request) (core.PartialResult, error)
}

var (
	_ Classifier      = (*intent.Classifier)(nil)
	_ VectorRetriever = (*search.Retriever)(nil)
	_ GraphRetriever  = (*graph.Retriever)(nil)
)

// Orchestrator answers queries by combining both retrieval paths.
// It is safe for concurrent use; queries run independently.
type Orchestrator struct {
	classifier Classifier
	vector     VectorRetriever
	graph      GraphRetriever

	cache    *cache.ResultCache
	deadline time.Duration
	weights  scoring.Weights
	history  *scoring.HistoryTracker
	phraser  ai.Generator
	metrics  *Metrics
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithCache enables the L1 result cache.
func WithCache(c *cache.ResultCache) Option {
	return func(o *Orchestrator) error {
		o.cache = c
		return nil
	}
}

// WithDeadline sets the default per-query deadline.
func WithDeadline(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d <= 0 {
			return fmt.Errorf("%w: deadline must be positive, got %s", ErrInvalidOption, d)
		}
		o.deadline = d
		return nil
	}
}

// WithScorerWeights replaces the confidence weights.
func WithScorerWeights(w scoring.Weights) Option {
	return func(o *Orchestrator) error {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOption, err)
		}
		o.weights = w
		return nil
	}
}

// WithHistory shares a historical accuracy tracker.
func WithHistory(h *scoring.HistoryTracker) Option {
	return func(o *Orchestrator) error {
		if h != nil {
			o.history = h
		}
		return nil
	}
}

// WithPhraser enables language model phrasing of final answers.
func WithPhraser(g ai.Generator) Option {
	return func(o *Orchestrator) error {
		o.phraser = g
		return nil
	}
}

// WithMetrics records query metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) error {
		o.metrics = m
		return nil
	}
}

// WithClock sets the time source used for freshness scoring.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) error {
		if now != nil {
			o.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// New creates an orchestrator.
func New(classifier Classifier, vector VectorRetriever, kg GraphRetriever, opts ...Option) (*Orchestrator, error) {
	if classifier == nil {
		return nil, ErrClassifierRequired
	}
	if vector == nil || kg == nil {
		return nil, ErrRetrieverRequired
	}

	o := &Orchestrator{
		classifier: classifier,
		vector:     vector,
		graph:      kg,
		deadline:   DefaultDeadline,
		weights:    scoring.DefaultWeights(),
		history:    scoring.NewHistoryTracker(),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o, nil
}

// Start validates q and begins answering it in the background. Events are
// delivered on the returned run until it completes or fails. Cancelling ctx
// aborts the query without further events.
func (o *Orchestrator) Start(ctx context.Context, q core.Query) (*Run, error) {
	if err := core.ValidateQuery(&q); err != nil {
		return nil, core.NewQueryError(core.KindValidation, err.Error(), err)
	}
	q = q.Clone()
	run := newRun(cache.QueryKey(q), eventBuffer)

	x := &execution{o: o, ctx: ctx, q: q, run: run, started: time.Now()}
	x.deadline = o.deadline
	if q.Options.Deadline > 0 {
		x.deadline = q.Options.Deadline
	}
	x.logger = o.logger.With("key", run.key)

	go x.execute()
	return run, nil
}

// Stream answers q as a finite sequence of events ending with complete or
// error. The channel is closed after the last event.
func (o *Orchestrator) Stream(ctx context.Context, q core.Query) (<-chan Event, error) {
	run, err := o.Start(ctx, q)
	if err != nil {
		return nil, err
	}
	return run.Events(), nil
}

// Query answers q synchronously. Failures are *core.QueryError values; a
// cancelled ctx yields kind cancellation_requested.
func (o *Orchestrator) Query(ctx context.Context, q core.Query) (core.MergedResult, error) {
	run, err := o.Start(ctx, q)
	if err != nil {
		return core.MergedResult{}, err
	}

	var result *core.MergedResult
	for ev := range run.Events() {
		switch ev.Type {
		case EventMerged:
			result = ev.Result
		case EventError:
			return core.MergedResult{}, ev.Err
		}
	}
	if result == nil || run.State() != StateComplete {
		if err := run.Err(); err != nil {
			return core.MergedResult{}, err
		}
		return core.MergedResult{}, core.NewQueryError(core.KindInternal, "stream ended without a result", nil)
	}
	return *result, nil
}

// InvalidateEntity evicts every cached answer that cites the entity.
func (o *Orchestrator) InvalidateEntity(id core.EntityID) int {
	if o.cache == nil {
		return 0
	}
	n := o.cache.InvalidateEntity(id)
	if n > 0 {
		o.logger.Debug("invalidated cached answers", "entity", id, "count", n)
	}
	return n
}

// Feedback records whether the cached answer under key turned out accurate.
// It feeds the historical accuracy component of later scores.
func (o *Orchestrator) Feedback(key string, accurate bool) error {
	if o.cache == nil {
		return fmt.Errorf("%w: %s", ErrUnknownResult, key)
	}
	result, ok := o.cache.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResult, key)
	}
	o.history.Record(result.Intent.Label, accurate)
	return nil
}

// History returns the accuracy tracker used for scoring.
func (o *Orchestrator) History() *scoring.HistoryTracker {
	return o.history
}

// execution is the state of one query while it runs.
type execution struct {
	o        *Orchestrator
	ctx      context.Context
	qctx     context.Context
	q        core.Query
	run      *Run
	route    core.Route
	deadline time.Duration
	started  time.Time
	logger   *slog.Logger
}

func (x *execution) execute() {
	defer close(x.run.events)

	var cancel context.CancelFunc
	x.qctx, cancel = context.WithTimeout(x.ctx, x.deadline)
	defer cancel()

	if x.o.cache != nil {
		if cached, ok := x.o.cache.Get(x.run.key); ok {
			x.o.metrics.recordCacheHit()
			x.route = cached.Intent.Route
			x.logger.Debug("answered from cache")
			x.finish(cached, true)
			return
		}
	}

	if !x.enter(StateClassifying) {
		return
	}
	in := x.o.classifier.Classify(x.qctx, x.q.Text, x.q.Context)
	if x.interrupted() {
		return
	}
	x.route = in.Route
	if !x.enter(StateQuerying) {
		return
	}
	x.emit(Event{Type: EventIntent, Intent: &in})

	input, ok := x.fanOut(in)
	if !ok {
		return
	}

	result := merge.Merge(input)
	result = x.phrase(result)
	x.finish(result, false)
}

// fanOut runs every routed path concurrently and scores each result as it
// arrives. It reports false when the query ended.
func (x *execution) fanOut(in core.Intent) (merge.Input, bool) {
	paths := routedPaths(in.Route)
	results := make(chan pathResult, len(paths))
	for _, path := range paths {
		go func(path core.SourceType) {
			started := time.Now()
			partial, err := x.retrieve(path, in)
			x.o.metrics.recordRetrieval(path, time.Since(started))
			results <- pathResult{path: path, partial: partial, err: err}
		}(path)
	}

	input := merge.Input{Question: x.q.Text, Intent: in}
	accuracy := x.o.history.Accuracy(in.Label)
	var failures []*core.QueryError

	for range paths {
		var res pathResult
		select {
		case <-x.qctx.Done():
			x.interrupted()
			return input, false
		case res = <-results:
		}
		if res.err != nil && x.interrupted() {
			return input, false
		}

		scored := &merge.Scored{Partial: res.partial}
		if res.err != nil {
			x.logger.Warn("retrieval path failed", "path", res.path, "err", res.err)
			failures = append(failures, asQueryError(res.path, res.err))
			input.Failed = append(input.Failed, res.path)
			scored.Partial = core.EmptyPartial(res.path)
		} else {
			if scored.Partial.Path == "" {
				scored.Partial.Path = res.path
			}
			if !scored.Partial.IsEmpty() {
				scored.Breakdown = scoring.Score(scored.Partial.Evidence, accuracy, x.o.now(), x.o.weights)
			}
		}
		if res.path == core.SourceGraph {
			input.Graph = scored
		} else {
			input.Vector = scored
		}

		if x.q.Options.IncludePartial {
			event := &ScoredPartial{PartialResult: scored.Partial, Breakdown: scored.Breakdown, Failed: res.err != nil}
			event.Sources = slices.Clone(scored.Partial.Sources)
			x.emit(Event{Type: pathEvent(res.path), Partial: event})
		}
	}

	if len(failures) == len(paths) {
		x.fail(surfaced(failures))
		return input, false
	}
	return input, x.enter(StateMerging)
}

func (x *execution) retrieve(path core.SourceType, in core.Intent) (core.PartialResult, error) {
	if path == core.SourceGraph {
		req := graph.Request{
			Text:    x.q.Text,
			Context: x.q.Context,
			Intent:  in.Label,
			Window:  x.q.Options.TimeWindow,
		}
		if len(x.q.Options.EntityFilter) == 1 {
			req.EntityID = x.q.Options.EntityFilter[0]
		}
		return x.o.graph.Retrieve(x.qctx, req)
	}
	return x.o.vector.Retrieve(x.qctx, search.Request{
		Text:         x.q.Text,
		TopK:         x.q.Options.TopK,
		EntityFilter: x.q.Options.EntityFilter,
	})
}

// phrase asks the language model to rewrite the templated answer. Any
// failure keeps the template.
func (x *execution) phrase(result core.MergedResult) core.MergedResult {
	if x.o.phraser == nil || result.AnswerType == core.AnswerUnknown {
		return result
	}

	lines := make([]string, 0, len(result.Sources))
	for _, s := range result.Sources {
		lines = append(lines, describeSource(s))
	}
	reply, err := x.o.phraser.Generate(x.qctx, ai.AnswerPrompt(x.q.Text, result.Answer, lines), phraseMaxTokens)
	reply = strings.TrimSpace(reply)
	if err != nil || reply == "" {
		x.logger.Warn("answer phrasing failed, keeping templated answer", "err", err)
		return result
	}

	result.Answer = reply
	result.ReasoningTrace = append(slices.Clone(result.ReasoningTrace), core.ReasoningStep{
		Step:       len(result.ReasoningTrace) + 1,
		Action:     "phrased answer with language model",
		Confidence: result.Confidence,
	})
	return result
}

func (x *execution) finish(result core.MergedResult, cacheHit bool) {
	if !x.enter(StateMerging) {
		return
	}
	if !x.emit(Event{Type: EventMerged, Result: &result}) {
		x.cancelled()
		return
	}
	if !cacheHit {
		x.store(result)
	}
	if !x.enter(StateComplete) {
		return
	}
	elapsed := time.Since(x.started)
	outcome := "ok"
	if cacheHit {
		outcome = "cache_hit"
	}
	x.o.metrics.recordQuery(x.route, outcome, elapsed)
	x.logger.Debug("query complete",
		"route", x.route,
		"answer_type", result.AnswerType,
		"confidence", result.Confidence,
		"cache_hit", cacheHit,
		"elapsed", elapsed)
	x.emit(Event{Type: EventComplete, Done: &Completion{Key: x.run.key, CacheHit: cacheHit, Elapsed: elapsed.Seconds()}})
}

// store caches a freshly merged result. A query cancelled before its merged
// event was delivered never reaches here, and one cancelled since is not cached.
func (x *execution) store(result core.MergedResult) {
	if x.o.cache == nil || x.ctx.Err() != nil {
		return
	}
	x.o.cache.Put(x.run.key, result)
}

// enter moves the run to state. A rejected transition fails the query.
func (x *execution) enter(state State) bool {
	if x.run.State() == state {
		return true
	}
	if err := x.run.transition(state); err != nil {
		x.fail(core.NewQueryError(core.KindInternal, err.Error(), err))
		return false
	}
	return true
}

// emit delivers ev unless the caller has cancelled.
func (x *execution) emit(ev Event) bool {
	if errors.Is(x.ctx.Err(), context.Canceled) {
		return false
	}
	x.run.events <- ev
	return true
}

// interrupted reports whether the query context is done and, if so, ends the
// run as cancelled or timed out.
func (x *execution) interrupted() bool {
	if x.qctx.Err() == nil {
		return false
	}
	if errors.Is(x.ctx.Err(), context.Canceled) {
		x.cancelled()
		return true
	}
	x.fail(core.NewQueryError(core.KindQueryTimeout,
		fmt.Sprintf("query exceeded its %s deadline", x.deadline), x.qctx.Err()))
	return true
}

func (x *execution) cancelled() {
	x.run.fail(core.NewQueryError(core.KindCancellationRequested, "query cancelled", x.ctx.Err()))
	x.o.metrics.recordQuery(x.route, string(core.KindCancellationRequested), time.Since(x.started))
	x.logger.Debug("query cancelled")
}

func (x *execution) fail(err *core.QueryError) {
	x.run.fail(err)
	x.o.metrics.recordQuery(x.route, string(err.Kind), time.Since(x.started))
	x.logger.Error("query failed", "kind", err.Kind, "err", err)
	x.emit(Event{Type: EventError, Err: err})
}

type pathResult struct {
	path    core.SourceType
	partial core.PartialResult
	err     error
}

func routedPaths(route core.Route) []core.SourceType {
	var paths []core.SourceType
	if route.UsesVector() {
		paths = append(paths, core.SourceVector)
	}
	if route.UsesGraph() {
		paths = append(paths, core.SourceGraph)
	}
	if len(paths) == 0 {
		paths = []core.SourceType{core.SourceVector, core.SourceGraph}
	}
	return paths
}

func asQueryError(path core.SourceType, err error) *core.QueryError {
	var qe *core.QueryError
	if errors.As(err, &qe) {
		out := *qe
		if out.Path == "" {
			out.Path = path
		}
		return &out
	}
	return core.RetrievalFailure(path, err)
}

// surfaced picks the error reported when every path failed. An unreachable
// upstream outranks a plain retrieval failure.
func surfaced(failures []*core.QueryError) *core.QueryError {
	for _, f := range failures {
		if f.Kind == core.KindUpstreamUnavailable {
			return f
		}
	}
	return failures[0]
}

func describeSource(s core.Source) string {
	label := s.Name
	if label == "" {
		label = string(s.EntityID)
	}
	if s.Content == "" {
		return fmt.Sprintf("%s (%s)", label, s.EntityType)
	}
	return fmt.Sprintf("%s (%s): %s", label, s.EntityType, s.Content)
}
