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

package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/poiesic/portfolioqa/cache"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

const (
	DefaultMaxHops        = 3
	DefaultMaxNodes       = 200
	DefaultFuzzyThreshold = 0.85
	DefaultResolveTTL     = 30 * time.Minute

	// hopDecay discounts a source's confidence for each hop from the root.
	hopDecay = 0.9
	// truncationPenalty discounts the path confidence when a bound was hit.
	truncationPenalty = 0.9
)

// Request is a single graph retrieval.
type Request struct {
	Text    string
	Context map[string]any
	// EntityID skips mention resolution when set.
	EntityID core.EntityID
	Intent   core.IntentLabel
	Window   *core.TimeWindow
}

// Retriever answers questions by walking the knowledge graph.
// A Retriever is safe for concurrent use.
type Retriever struct {
	guard *Guard

	maxHops        int
	maxNodes       int
	fuzzyThreshold float64

	resolveCache cache.Store
	resolveTTL   time.Duration

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithMaxHops bounds traversal depth.
// Default is 3.
func WithMaxHops(hops int) Option {
	return func(r *Retriever) error {
		if hops <= 0 {
			return fmt.Errorf("%w: max hops must be positive, got %d", ErrInvalidOption, hops)
		}
		r.maxHops = hops
		return nil
	}
}

// WithMaxNodes bounds the number of nodes a traversal visits.
// Default is 200.
func WithMaxNodes(nodes int) Option {
	return func(r *Retriever) error {
		if nodes <= 0 {
			return fmt.Errorf("%w: max nodes must be positive, got %d", ErrInvalidOption, nodes)
		}
		r.maxNodes = nodes
		return nil
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler similarity for a fuzzy match.
// Default is 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(r *Retriever) error {
		if threshold <= 0 || threshold > 1 {
			return fmt.Errorf("%w: fuzzy threshold must be in (0,1], got %v", ErrInvalidOption, threshold)
		}
		r.fuzzyThreshold = threshold
		return nil
	}
}

// WithResolveCache caches mention resolutions in store for ttl.
func WithResolveCache(store cache.Store, ttl time.Duration) Option {
	return func(r *Retriever) error {
		r.resolveCache = store
		r.resolveTTL = ttl
		return nil
	}
}

// WithClock sets the time source.
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

// NewRetriever creates a graph retriever over store.
func NewRetriever(store Store, opts ...Option) (*Retriever, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	r := &Retriever{
		maxHops:        DefaultMaxHops,
		maxNodes:       DefaultMaxNodes,
		fuzzyThreshold: DefaultFuzzyThreshold,
		resolveTTL:     DefaultResolveTTL,
		now:            time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.guard = NewGuard(store, r.logger)
	r.logger = r.logger.With("component", "graph-retriever")

	return r, nil
}

// Guard returns the lock that serializes rebuilds against this retriever's reads.
func (r *Retriever) Guard() *Guard {
	return r.guard
}

// Rebuild recomputes derived graph structure under the guard's write lock.
func (r *Retriever) Rebuild(ctx context.Context) error {
	return r.guard.Rebuild(ctx)
}

// PatternFor selects the traversal pattern that serves an intent.
func PatternFor(label core.IntentLabel) core.TraversalPattern {
	switch label {
	case core.IntentCausal:
		return core.PatternCausal
	case core.IntentTrends, core.IntentForecast:
		return core.PatternTemporal
	default:
		return core.PatternNeighborhood
	}
}

// Retrieve runs the graph path for a question. An unresolvable question
// yields an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (core.PartialResult, error) {
	var result core.PartialResult
	err := r.guard.Read(ctx, func(ctx context.Context, store Store) error {
		var err error
		result, err = r.retrieve(ctx, store, req)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.PartialResult{}, ctxErr
		}
		r.logger.Error("graph retrieval failed", "err", err)
		if errors.Is(err, storage.ErrStorageClosed) {
			return core.PartialResult{}, core.UpstreamUnavailable("graph store", err)
		}
		return core.PartialResult{}, core.RetrievalFailure(core.SourceGraph, err)
	}
	return result, nil
}

func (r *Retriever) retrieve(ctx context.Context, store Store, req Request) (core.PartialResult, error) {
	root, err := r.root(ctx, store, req)
	if errors.Is(err, ErrUnresolved) {
		r.logger.Debug("no entity resolved", "query", req.Text)
		return core.EmptyPartial(core.SourceGraph), nil
	}
	if err != nil {
		return core.PartialResult{}, err
	}

	pattern := PatternFor(req.Intent)
	w := walkFor(pattern)
	if req.Intent == core.IntentBlockers {
		w = blockersWalk
	}

	sub, err := r.traverse(ctx, store, root, w, r.maxHops)
	if err != nil {
		return core.PartialResult{}, err
	}

	var findings *core.GraphFindings
	switch pattern {
	case core.PatternCausal:
		findings = causalFindings(sub)
	case core.PatternTemporal:
		findings = temporalFindings(sub, req.Window, r.now())
	case core.PatternAggregate:
		findings = aggregateFindings(sub)
	default:
		findings = &core.GraphFindings{Pattern: pattern}
	}

	// Historical patterns round out a causal answer when the chain is thin.
	if pattern == core.PatternCausal && len(findings.Chain) == 0 {
		findings.Aggregates = aggregateFindings(sub).Aggregates
	}

	result, err := r.buildResult(ctx, store, sub, findings)
	if err != nil {
		return core.PartialResult{}, err
	}
	r.logger.Debug("graph retrieval complete",
		"root", root.ID,
		"pattern", pattern,
		"nodes", len(sub.Nodes),
		"truncated", sub.Truncated,
		"confidence", result.Confidence)
	return result, nil
}

// root picks the traversal start: an explicit ID, then context["entity_id"],
// then the first resolvable mention in the question.
func (r *Retriever) root(ctx context.Context, store Store, req Request) (*core.Entity, error) {
	id := req.EntityID
	if id == "" {
		if v, ok := req.Context["entity_id"].(string); ok {
			id = core.EntityID(v)
		}
	}
	if id != "" {
		entity, err := store.GetEntity(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnresolved, id)
		}
		return entity, err
	}

	for _, mention := range Mentions(req.Text, req.Context) {
		entity, err := r.resolve(ctx, store, mention)
		if errors.Is(err, ErrUnresolved) {
			continue
		}
		return entity, err
	}
	return nil, ErrUnresolved
}

func (r *Retriever) buildResult(ctx context.Context, store Store, sub *Subgraph, findings *core.GraphFindings) (core.PartialResult, error) {
	result := core.EmptyPartial(core.SourceGraph)
	result.Graph = findings
	result.Truncated = sub.Truncated
	result.Answer = answerFor(sub, findings)

	degree, err := store.Degree(ctx, sub.Root.ID)
	if err != nil {
		return core.PartialResult{}, err
	}
	if degree == 0 {
		// The degree index is only current after a rebuild.
		for _, e := range sub.Edges {
			if e.From == sub.Root.ID || e.To == sub.Root.ID {
				degree++
			}
		}
	}
	result.Evidence.Connections = degree

	var total float64
	for _, node := range sub.Nodes {
		confidence := math.Pow(hopDecay, float64(sub.Depth[node.ID]))
		result.Sources = append(result.Sources, core.Source{
			EntityID:   node.ID,
			EntityType: node.Type,
			Name:       node.Name,
			Content:    describeEntity(node),
			Confidence: confidence,
			SourceType: core.SourceGraph,
		})
		total += confidence

		if node.UpdatedAt.After(result.Evidence.NewestUpdate) {
			result.Evidence.NewestUpdate = node.UpdatedAt
		}
		reqPresent, reqTotal, optPresent, optTotal := node.FieldCompleteness()
		result.Evidence.RequiredPresent += reqPresent
		result.Evidence.RequiredFields += reqTotal
		result.Evidence.OptionalPresent += optPresent
		result.Evidence.OptionalFields += optTotal
	}

	result.Confidence = total / float64(len(sub.Nodes))
	if sub.Truncated {
		result.Confidence *= truncationPenalty
	}
	return result, nil
}

// describeEntity renders an entity's type and sorted attributes on one line.
func describeEntity(e *core.Entity) string {
	s := fmt.Sprintf("%s (%s)", e.Name, e.Type)
	for _, k := range sortedKeys(e.Attributes) {
		s += fmt.Sprintf(" %s=%s", k, e.Attributes[k])
	}
	return s
}
