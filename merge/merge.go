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

package merge

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/portfolioqa/core"
)

const (
	primaryWeight   = 0.7
	secondaryWeight = 0.3

	// GroundedThreshold is the confidence at or above which an answer with
	// enough sources is reported as grounded. Below it a warning is attached.
	GroundedThreshold = 0.6
)

// Case is the shape of the merger input.
type Case int

const (
	CaseEmpty Case = iota
	CaseVectorOnly
	CaseGraphOnly
	CaseBoth
)

func (c Case) String() string {
	switch c {
	case CaseEmpty:
		return "empty"
	case CaseVectorOnly:
		return "vector-only"
	case CaseGraphOnly:
		return "graph-only"
	case CaseBoth:
		return "both"
	default:
		return fmt.Sprintf("Case(%d)", int(c))
	}
}

// Scored is a partial result annotated with its confidence breakdown.
type Scored struct {
	Partial   core.PartialResult
	Breakdown core.ConfidenceBreakdown
}

func (s *Scored) contributes() bool {
	return s != nil && !s.Partial.IsEmpty()
}

// score is the path's confidence: the scorer's overall bounded by how well
// the retrieved evidence matched the question.
func (s *Scored) score() float64 {
	return min(clamp01(s.Breakdown.Overall), clamp01(s.Partial.Confidence))
}

// Input is everything the merger needs for one query. A nil path did not run.
// Failed lists paths that ran and returned an error; their Scored entry, if
// any, is the empty partial they degraded to.
type Input struct {
	Question string
	Intent   core.Intent
	Vector   *Scored
	Graph    *Scored
	Failed   []core.SourceType
}

// Classify reports which paths contributed evidence. Empty partials count as
// absent.
func Classify(in Input) Case {
	switch v, g := in.Vector.contributes(), in.Graph.contributes(); {
	case v && g:
		return CaseBoth
	case v:
		return CaseVectorOnly
	case g:
		return CaseGraphOnly
	default:
		return CaseEmpty
	}
}

// Merge produces the final answer. It never fails: missing evidence yields an
// "insufficient information" answer of type unknown.
func Merge(in Input) core.MergedResult {
	var primary, secondary *Scored
	switch Classify(in) {
	case CaseEmpty:
		return insufficient(in)
	case CaseVectorOnly:
		primary = in.Vector
	case CaseGraphOnly:
		primary = in.Graph
	case CaseBoth:
		primary, secondary = rank(in)
	}

	p := primary.score()
	var s float64
	if secondary != nil {
		s = secondary.score()
	}
	confidence := min(primaryWeight*p+secondaryWeight*s, max(p, s))

	out := core.MergedResult{
		Answer:              compose(primary, secondary),
		Confidence:          confidence,
		Intent:              in.Intent,
		Sources:             sources(primary, secondary),
		RecommendedActions:  []core.RecommendedAction{},
		ConfidenceBreakdown: blend(primary, secondary, confidence),
	}

	if g := in.Graph; g.contributes() && g.Partial.Graph.HasCausalOrTemporal() {
		if acts := g.Partial.Graph.Actions; len(acts) > 0 {
			out.RecommendedActions = slices.Clone(acts)
		}
		if f := g.Partial.Graph.Forecast; f != nil {
			fc := *f
			out.Forecast = &fc
		}
	}

	out.ReasoningTrace = trace(in, primary, confidence)
	out.Completeness = completeness(in)
	out.AnswerType = answerType(in, out)
	out.Warnings = warnings(in, confidence)
	return out
}

// rank orders the two contributing paths by score. A tie goes to graph on a
// graph route and to vector otherwise.
func rank(in Input) (primary, secondary *Scored) {
	v, g := in.Vector.score(), in.Graph.score()
	switch {
	case g > v:
		return in.Graph, in.Vector
	case v > g:
		return in.Vector, in.Graph
	case in.Intent.Route == core.RouteGraph:
		return in.Graph, in.Vector
	default:
		return in.Vector, in.Graph
	}
}

func compose(primary, secondary *Scored) string {
	answer := strings.TrimSpace(primary.Partial.Answer)
	if answer == "" {
		answer = fmt.Sprintf("Found %d relevant %s.", len(primary.Partial.Sources), plural(len(primary.Partial.Sources), "source"))
	}
	if secondary == nil {
		return answer
	}

	summary := firstSentence(secondary.Partial.Answer)
	if summary == "" {
		summary = fmt.Sprintf("%d related %s.", len(secondary.Partial.Sources), plural(len(secondary.Partial.Sources), "source"))
	}
	return fmt.Sprintf("%s Supporting %s evidence: %s", terminate(answer), secondary.Partial.Path, summary)
}

func sources(primary, secondary *Scored) []core.Source {
	n := len(primary.Partial.Sources)
	if secondary != nil {
		n += len(secondary.Partial.Sources)
	}
	out := make([]core.Source, 0, n)
	for _, sc := range []*Scored{primary, secondary} {
		if sc == nil {
			continue
		}
		for _, src := range sc.Partial.Sources {
			src.Confidence = clamp01(src.Confidence)
			if src.SourceType == "" {
				src.SourceType = sc.Partial.Path
			}
			out = append(out, src)
		}
	}
	return out
}

// blend combines the component scores with the same weights as the overall
// confidence. Overall is the merged confidence itself.
func blend(primary, secondary *Scored, overall float64) core.ConfidenceBreakdown {
	b := primary.Breakdown
	if secondary != nil {
		s := secondary.Breakdown
		b.DataFreshness = primaryWeight*b.DataFreshness + secondaryWeight*s.DataFreshness
		b.SourceReliability = primaryWeight*b.SourceReliability + secondaryWeight*s.SourceReliability
		b.EntityGrounding = primaryWeight*b.EntityGrounding + secondaryWeight*s.EntityGrounding
		b.HistoricalAccuracy = primaryWeight*b.HistoricalAccuracy + secondaryWeight*s.HistoricalAccuracy
	}
	b.Overall = overall
	return b
}

func trace(in Input, primary *Scored, confidence float64) []core.ReasoningStep {
	var steps []core.ReasoningStep
	add := func(action string, conf float64) {
		steps = append(steps, core.ReasoningStep{Step: len(steps) + 1, Action: action, Confidence: clamp01(conf)})
	}

	add(fmt.Sprintf("classified intent as %s (route %s)", in.Intent.Label, in.Intent.Route), in.Intent.Confidence)
	for _, path := range ran(in) {
		sc := in.scored(path)
		switch {
		case slices.Contains(in.Failed, path):
			add(fmt.Sprintf("%s retrieval failed", path), 0)
		case !sc.contributes():
			add(fmt.Sprintf("%s retrieval found nothing", path), 0)
		default:
			add(describe(sc), sc.score())
		}
	}

	if primary == nil {
		add("no path produced evidence; answered with insufficient information", 0)
		return steps
	}
	add(fmt.Sprintf("merged %s with %s as primary", Classify(in), primary.Partial.Path), confidence)
	return steps
}

func describe(sc *Scored) string {
	p := sc.Partial
	n := len(p.Sources)
	if p.Path != core.SourceGraph || p.Graph == nil {
		return fmt.Sprintf("vector search returned %d %s", n, plural(n, "chunk"))
	}

	msg := fmt.Sprintf("graph %s traversal reached %d %s", p.Graph.Pattern, n, plural(n, "entity"))
	switch {
	case len(p.Graph.Chain) > 0:
		msg += fmt.Sprintf(" with a %d-link causal chain", len(p.Graph.Chain))
	case len(p.Graph.Snapshots) > 0:
		msg += fmt.Sprintf(" with %d %s", len(p.Graph.Snapshots), plural(len(p.Graph.Snapshots), "snapshot"))
	case len(p.Graph.Aggregates) > 0:
		msg += fmt.Sprintf(" across %d relationship %s", len(p.Graph.Aggregates), plural(len(p.Graph.Aggregates), "kind"))
	}
	return msg
}

// ran lists the paths that executed, vector first.
func ran(in Input) []core.SourceType {
	var out []core.SourceType
	if in.Vector != nil || slices.Contains(in.Failed, core.SourceVector) {
		out = append(out, core.SourceVector)
	}
	if in.Graph != nil || slices.Contains(in.Failed, core.SourceGraph) {
		out = append(out, core.SourceGraph)
	}
	return out
}

func (in Input) scored(path core.SourceType) *Scored {
	if path == core.SourceGraph {
		return in.Graph
	}
	return in.Vector
}

// completeness is the fraction of routed paths that contributed, scaled by
// the mean grounding of the contributing paths.
func completeness(in Input) float64 {
	routed := 0
	if in.Intent.Route.UsesVector() {
		routed++
	}
	if in.Intent.Route.UsesGraph() {
		routed++
	}
	if routed == 0 {
		routed = len(ran(in))
	}
	if routed == 0 {
		return 0
	}

	var contributed int
	var grounding float64
	for _, sc := range []*Scored{in.Vector, in.Graph} {
		if sc.contributes() {
			contributed++
			grounding += clamp01(sc.Breakdown.EntityGrounding)
		}
	}
	if contributed == 0 {
		return 0
	}
	return clamp01(float64(contributed) / float64(routed) * grounding / float64(contributed))
}

func answerType(in Input, out core.MergedResult) core.AnswerType {
	c := Classify(in)
	switch {
	case c == CaseEmpty:
		return core.AnswerUnknown
	case len(in.Failed) > 0:
		return core.AnswerPartial
	case in.Intent.Route == core.RouteBoth && c != CaseBoth:
		return core.AnswerPartial
	case out.Confidence >= GroundedThreshold && (in.Graph.contributes() || len(out.Sources) >= 2):
		return core.AnswerGrounded
	default:
		return core.AnswerSpeculative
	}
}

func warnings(in Input, confidence float64) []string {
	var out []string
	if confidence < GroundedThreshold {
		out = append(out, fmt.Sprintf("low confidence (%.2f): treat this answer as a best-effort guess", confidence))
	}
	for _, path := range in.Failed {
		out = append(out, fmt.Sprintf("%s retrieval failed; answer built without it", path))
	}
	for _, sc := range []*Scored{in.Vector, in.Graph} {
		if sc != nil && sc.Partial.Truncated {
			out = append(out, fmt.Sprintf("%s results were truncated", sc.Partial.Path))
		}
	}
	return out
}

func insufficient(in Input) core.MergedResult {
	q := strings.TrimSpace(in.Question)
	answer := "There is not enough information to answer this question."
	if q != "" {
		answer = fmt.Sprintf("There is not enough information to answer %q.", q)
	}
	return core.MergedResult{
		Answer:             answer,
		Confidence:         0,
		AnswerType:         core.AnswerUnknown,
		Completeness:       0,
		Warnings:           append(warnings(in, 0), core.ErrMergeInsufficientData.Error()),
		Intent:             in.Intent,
		Sources:            []core.Source{},
		ReasoningTrace:     trace(in, nil, 0),
		RecommendedActions: []core.RecommendedAction{},
	}
}

// firstSentence ends at the first terminator followed by whitespace, so
// decimals like 0.85 stay intact.
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	for i := 0; i < len(text); i++ {
		if !strings.ContainsRune(".!?", rune(text[i])) {
			continue
		}
		if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
			return text[:i+1]
		}
	}
	return terminate(text)
}

func terminate(s string) string {
	if s == "" || strings.ContainsAny(s[len(s)-1:], ".!?") {
		return s
	}
	return s + "."
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	if strings.HasSuffix(word, "y") {
		return strings.TrimSuffix(word, "y") + "ies"
	}
	return word + "s"
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}
