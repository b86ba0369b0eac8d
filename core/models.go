package core

//go:generate go run ../cmd/musgen

import (
	"encoding/hex"
	"maps"
	"slices"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// EntityID identifies a node in the knowledge graph.
type EntityID string

// ChunkID identifies a chunk in the vector index.
type ChunkID string

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ChunkID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return ChunkID(hex.EncodeToString(h.Sum(nil)))
}

// IntentLabel is the classified purpose of a query.
type IntentLabel string

const (
	IntentBlockers IntentLabel = "blockers"
	IntentCausal   IntentLabel = "causal"
	IntentTrends   IntentLabel = "trends"
	IntentForecast IntentLabel = "forecast"
	IntentStatus   IntentLabel = "status"
	IntentHybrid   IntentLabel = "hybrid"
	IntentUnknown  IntentLabel = "unknown"
)

// Route selects which retrieval paths run for a query.
type Route string

const (
	RouteRAG   Route = "rag"
	RouteGraph Route = "graph"
	RouteBoth  Route = "both"
)

// UsesVector reports whether the route includes the vector path.
func (r Route) UsesVector() bool {
	return r == RouteRAG || r == RouteBoth
}

// UsesGraph reports whether the route includes the graph path.
func (r Route) UsesGraph() bool {
	return r == RouteGraph || r == RouteBoth
}

// SourceType tags which retrieval path produced a source or partial result.
type SourceType string

const (
	SourceVector SourceType = "vector"
	SourceGraph  SourceType = "graph"
)

// AnswerType tells the caller how much to trust an answer.
type AnswerType string

const (
	AnswerGrounded    AnswerType = "grounded"
	AnswerSpeculative AnswerType = "speculative"
	AnswerPartial     AnswerType = "partial"
	AnswerUnknown     AnswerType = "unknown"
)

// TimeWindow bounds temporal graph queries. Zero values are open ends.
type TimeWindow struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Contains reports whether t falls inside the window.
func (w *TimeWindow) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// QueryOptions tune a single query.
type QueryOptions struct {
	IncludePartial bool          `json:"include_partial"`
	Deadline       time.Duration `json:"deadline,omitempty"`
	TopK           int           `json:"top_k,omitempty"`
	EntityFilter   []EntityID    `json:"entity_filter,omitempty"`
	TimeWindow     *TimeWindow   `json:"time_window,omitempty"`
}

// Query is a natural-language question plus caller context.
type Query struct {
	Text    string         `json:"text"`
	Context map[string]any `json:"context,omitempty"`
	Options QueryOptions   `json:"options"`
}

// Clone returns a copy that does not share the context map or filter slice.
func (q Query) Clone() Query {
	out := q
	if q.Context != nil {
		out.Context = maps.Clone(q.Context)
	}
	out.Options.EntityFilter = slices.Clone(q.Options.EntityFilter)
	if q.Options.TimeWindow != nil {
		w := *q.Options.TimeWindow
		out.Options.TimeWindow = &w
	}
	return out
}

// Intent is produced once per query and never mutated.
type Intent struct {
	Label      IntentLabel `json:"label"`
	Confidence float64     `json:"confidence"`
	Route      Route       `json:"route"`
}

// Source is a single piece of attributed evidence.
type Source struct {
	EntityID   EntityID   `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	Name       string     `json:"name,omitempty"`
	Content    string     `json:"content,omitempty"`
	Confidence float64    `json:"confidence"`
	SourceType SourceType `json:"source_type"`
}

// Evidence is the entity metadata a retrieval path observed. The confidence
// scorer consumes it.
type Evidence struct {
	NewestUpdate    time.Time `json:"newest_update"`
	Connections     int       `json:"connections"`
	RequiredFields  int       `json:"required_fields"`
	RequiredPresent int       `json:"required_present"`
	OptionalFields  int       `json:"optional_fields"`
	OptionalPresent int       `json:"optional_present"`
}

// TraversalPattern selects how the graph is walked.
type TraversalPattern string

const (
	PatternCausal       TraversalPattern = "causal"
	PatternTemporal     TraversalPattern = "temporal"
	PatternAggregate    TraversalPattern = "pattern"
	PatternNeighborhood TraversalPattern = "neighborhood"
)

// CausalLink is one hop of a risk -> action -> outcome chain.
type CausalLink struct {
	From     EntityID     `json:"from"`
	To       EntityID     `json:"to"`
	Kind     RelationKind `json:"kind"`
	FromName string       `json:"from_name"`
	ToName   string       `json:"to_name"`
}

// Snapshot is a time-stamped observation of an entity.
type Snapshot struct {
	EntityID   EntityID          `json:"entity_id"`
	At         time.Time         `json:"at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// RelationAggregate counts a relationship kind across historical instances.
type RelationAggregate struct {
	Kind  RelationKind `json:"kind"`
	Count int          `json:"count"`
}

// GraphFindings holds the structured facts only the graph path can produce.
type GraphFindings struct {
	Pattern    TraversalPattern    `json:"pattern"`
	Chain      []CausalLink        `json:"chain,omitempty"`
	Snapshots  []Snapshot          `json:"snapshots,omitempty"`
	Aggregates []RelationAggregate `json:"aggregates,omitempty"`
	Actions    []RecommendedAction `json:"actions,omitempty"`
	Forecast   *Forecast           `json:"forecast,omitempty"`
}

// HasCausalOrTemporal reports whether the findings carry causal or temporal data.
func (g *GraphFindings) HasCausalOrTemporal() bool {
	if g == nil {
		return false
	}
	return len(g.Chain) > 0 || len(g.Snapshots) > 0
}

// PartialResult is the output of exactly one retrieval path. Path is the tag;
// Graph is only ever set when Path is SourceGraph.
type PartialResult struct {
	Path       SourceType     `json:"path"`
	Answer     string         `json:"answer,omitempty"`
	Confidence float64        `json:"confidence"`
	Sources    []Source       `json:"sources"`
	Evidence   Evidence       `json:"evidence"`
	Graph      *GraphFindings `json:"graph,omitempty"`
	Truncated  bool           `json:"truncated,omitempty"`
}

// IsEmpty reports whether the path found nothing.
func (p *PartialResult) IsEmpty() bool {
	return p == nil || len(p.Sources) == 0
}

// EmptyPartial returns a valid, empty result for the given path.
func EmptyPartial(path SourceType) PartialResult {
	return PartialResult{Path: path, Sources: []Source{}}
}

// ConfidenceBreakdown decomposes an overall confidence score.
type ConfidenceBreakdown struct {
	Overall            float64 `json:"overall"`
	DataFreshness      float64 `json:"data_freshness"`
	SourceReliability  float64 `json:"source_reliability"`
	EntityGrounding    float64 `json:"entity_grounding"`
	HistoricalAccuracy float64 `json:"historical_accuracy"`
}

// ReasoningStep records one step of how an answer was produced.
type ReasoningStep struct {
	Step       int     `json:"step"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
}

// RecommendedAction is a suggested follow-up derived from causal history.
type RecommendedAction struct {
	ActionType string  `json:"action_type"`
	Tier       string  `json:"tier"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// Forecast is a projected scenario derived from temporal data.
type Forecast struct {
	Scenario    string  `json:"scenario"`
	Impact      string  `json:"impact"`
	Probability float64 `json:"probability"`
	TimeHorizon string  `json:"time_horizon"`
}

// MergedResult is the final answer to a query. It is created once and never
// modified afterwards.
type MergedResult struct {
	Answer              string              `json:"answer"`
	Confidence          float64             `json:"confidence"`
	AnswerType          AnswerType          `json:"answer_type"`
	Completeness        float64             `json:"completeness"`
	Warnings            []string            `json:"warnings,omitempty"`
	Intent              Intent              `json:"intent"`
	Sources             []Source            `json:"sources"`
	ReasoningTrace      []ReasoningStep     `json:"reasoning_trace"`
	RecommendedActions  []RecommendedAction `json:"recommended_actions"`
	Forecast            *Forecast           `json:"forecast,omitempty"`
	ConfidenceBreakdown ConfidenceBreakdown `json:"confidence_breakdown"`
}

// Clone returns a deep copy of the result. Nil and empty slices are preserved
// so a clone marshals to the same bytes as the original.
func (m MergedResult) Clone() MergedResult {
	out := m
	out.Warnings = slices.Clone(m.Warnings)
	out.Sources = slices.Clone(m.Sources)
	out.ReasoningTrace = slices.Clone(m.ReasoningTrace)
	out.RecommendedActions = slices.Clone(m.RecommendedActions)
	if m.Forecast != nil {
		f := *m.Forecast
		out.Forecast = &f
	}
	return out
}

// References reports whether any source points at the entity.
func (m *MergedResult) References(id EntityID) bool {
	for _, s := range m.Sources {
		if s.EntityID == id {
			return true
		}
	}
	return false
}

// CacheEntry is a cached query answer.
type CacheEntry struct {
	Key       string        `json:"key"`
	Value     MergedResult  `json:"value"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// Expired reports whether the entry outlived its TTL at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) >= e.TTL
}
