package graph

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/portfolioqa/core"
)

const forecastHorizonDays = 30

// successfulResults are outcome "result" values that count as the action having worked.
var successfulResults = map[string]bool{
	"success": true, "resolved": true, "mitigated": true, "on_track": true, "recovered": true,
}

var relationVerbs = map[core.RelationKind]string{
	core.RelHasRisk:     "has risk",
	core.RelMitigatedBy: "was mitigated by",
	core.RelResultedIn:  "resulted in",
	core.RelBlocks:      "blocks",
	core.RelDependsOn:   "depends on",
	core.RelSnapshotOf:  "is a snapshot of",
	core.RelEscalatedTo: "was escalated to",
	core.RelOwnedBy:     "is owned by",
}

func describeEdge(sub *Subgraph, e *core.Relationship) string {
	verb, ok := relationVerbs[e.Kind]
	if !ok {
		verb = strings.ReplaceAll(string(e.Kind), "_", " ")
	}
	return nodeName(sub, e.From) + " " + verb + " " + nodeName(sub, e.To)
}

func nodeName(sub *Subgraph, id core.EntityID) string {
	if n := sub.Node(id); n != nil && n.Name != "" {
		return n.Name
	}
	return string(id)
}

func causalFindings(sub *Subgraph) *core.GraphFindings {
	findings := &core.GraphFindings{Pattern: core.PatternCausal}
	for _, e := range sub.Edges {
		if !slices.Contains(causalKinds, e.Kind) {
			continue
		}
		findings.Chain = append(findings.Chain, core.CausalLink{
			From:     e.From,
			To:       e.To,
			Kind:     e.Kind,
			FromName: nodeName(sub, e.From),
			ToName:   nodeName(sub, e.To),
		})
	}
	findings.Actions = recommendActions(sub)
	return findings
}

// recommendActions turns every action node reached through a mitigation into
// a recommendation, ranked by how its outcome went.
func recommendActions(sub *Subgraph) []core.RecommendedAction {
	var actions []core.RecommendedAction
	for _, node := range sub.Nodes {
		if node.Type != core.EntityAction {
			continue
		}

		var risk, outcome *core.Entity
		for _, e := range sub.Edges {
			switch {
			case e.Kind == core.RelMitigatedBy && e.To == node.ID:
				risk = sub.Node(e.From)
			case e.Kind == core.RelResultedIn && e.From == node.ID:
				outcome = sub.Node(e.To)
			}
		}

		actionType := node.Attributes["action_type"]
		if actionType == "" {
			actionType = node.Name
		}
		tier := node.Attributes["tier"]
		if tier == "" {
			tier = "standard"
		}

		rationale := node.Name
		if risk != nil {
			rationale += " mitigated " + risk.Name
		}
		confidence := 0.4
		if outcome != nil {
			result := outcome.Attributes["result"]
			rationale += " and resulted in " + outcome.Name
			if result != "" {
				rationale += " (" + result + ")"
			}
			confidence = 0.55
			if successfulResults[strings.ToLower(result)] {
				confidence = 0.85
			}
		}

		actions = append(actions, core.RecommendedAction{
			ActionType: actionType,
			Tier:       tier,
			Rationale:  rationale,
			Confidence: confidence,
		})
	}

	slices.SortStableFunc(actions, func(a, b core.RecommendedAction) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.ActionType, b.ActionType)
	})
	return actions
}

// temporalFindings orders the root's snapshots in time. Snapshots outside the
// window or dated after now are left out.
func temporalFindings(sub *Subgraph, window *core.TimeWindow, now time.Time) *core.GraphFindings {
	findings := &core.GraphFindings{Pattern: core.PatternTemporal}

	occurred := make(map[core.EntityID]time.Time)
	for _, e := range sub.Edges {
		if e.Kind == core.RelSnapshotOf && !e.OccurredAt.IsZero() {
			occurred[e.From] = e.OccurredAt
		}
	}

	for _, node := range sub.Nodes[1:] {
		if node.Type != core.EntitySnapshot {
			continue
		}
		at := snapshotTime(node, occurred[node.ID])
		if !window.Contains(at) || at.After(now) {
			continue
		}
		findings.Snapshots = append(findings.Snapshots, core.Snapshot{
			EntityID:   node.ID,
			At:         at,
			Attributes: maps.Clone(node.Attributes),
		})
	}

	slices.SortFunc(findings.Snapshots, func(a, b core.Snapshot) int {
		if c := a.At.Compare(b.At); c != 0 {
			return c
		}
		return cmp.Compare(a.EntityID, b.EntityID)
	})
	findings.Forecast = forecast(findings.Snapshots)
	return findings
}

// snapshotTime prefers the snapshot's own "at" attribute, then the edge
// timestamp, then the entity's update time.
func snapshotTime(node *core.Entity, edgeTime time.Time) time.Time {
	if v := node.Attributes["at"]; v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	if !edgeTime.IsZero() {
		return edgeTime
	}
	return node.UpdatedAt
}

// forecast fits a least-squares line through the snapshots' numeric "score"
// and projects it forecastHorizonDays past the last snapshot. It needs two
// scored snapshots at distinct times.
func forecast(snaps []core.Snapshot) *core.Forecast {
	var xs, ys []float64
	for _, s := range snaps {
		y, err := strconv.ParseFloat(s.Attributes["score"], 64)
		if err != nil {
			continue
		}
		xs = append(xs, s.At.Sub(snaps[0].At).Hours()/24)
		ys = append(ys, y)
	}
	n := float64(len(xs))
	if len(xs) < 2 {
		return nil
	}

	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/n, sy/n

	var sxx, sxy, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return nil
	}

	slope := sxy / sxx
	intercept := my - slope*mx
	r2 := 1.0
	if syy > 0 {
		r2 = (sxy * sxy) / (sxx * syy)
	}

	last := ys[len(ys)-1]
	projected := intercept + slope*(xs[len(xs)-1]+forecastHorizonDays)
	change := projected - last

	impact := "stable"
	if math.Abs(change) > 0.01*math.Max(math.Abs(my), 1) {
		impact = "improving"
		if change < 0 {
			impact = "declining"
		}
	}

	return &core.Forecast{
		Scenario:    fmt.Sprintf("score projected to move from %.2f to %.2f", last, projected),
		Impact:      impact,
		Probability: min(max(r2*n/(n+1), 0), 1),
		TimeHorizon: fmt.Sprintf("%dd", forecastHorizonDays),
	}
}

func aggregateFindings(sub *Subgraph) *core.GraphFindings {
	counts := make(map[core.RelationKind]int)
	for _, e := range sub.Edges {
		counts[e.Kind]++
	}

	findings := &core.GraphFindings{Pattern: core.PatternAggregate}
	for kind, n := range counts {
		findings.Aggregates = append(findings.Aggregates, core.RelationAggregate{Kind: kind, Count: n})
	}
	slices.SortFunc(findings.Aggregates, func(a, b core.RelationAggregate) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Kind, b.Kind)
	})
	return findings
}

// answerFor renders the findings as a short templated answer.
func answerFor(sub *Subgraph, findings *core.GraphFindings) string {
	root := sub.Root.Name
	switch findings.Pattern {
	case core.PatternCausal:
		if len(findings.Chain) == 0 {
			return fmt.Sprintf("No causal history was found for %s.", root)
		}
		steps := make([]string, 0, len(findings.Chain))
		for _, l := range findings.Chain {
			steps = append(steps, l.FromName+" "+relationVerbs[l.Kind]+" "+l.ToName)
		}
		return strings.Join(steps, "; ") + "."

	case core.PatternTemporal:
		snaps := findings.Snapshots
		if len(snaps) == 0 {
			return fmt.Sprintf("No snapshots of %s were found in the requested window.", root)
		}
		answer := fmt.Sprintf("%s has %d snapshots from %s to %s.", root, len(snaps),
			snaps[0].At.Format(time.DateOnly), snaps[len(snaps)-1].At.Format(time.DateOnly))
		if findings.Forecast != nil {
			answer += " The " + findings.Forecast.Scenario + " over " + findings.Forecast.TimeHorizon + "."
		}
		return answer

	case core.PatternAggregate:
		if len(findings.Aggregates) == 0 {
			return fmt.Sprintf("No related history was found for %s.", root)
		}
		top := findings.Aggregates[0]
		return fmt.Sprintf("Across %d related entities, the most common relationship for %s is %s (%d).",
			len(sub.Nodes)-1, root, strings.ReplaceAll(string(top.Kind), "_", " "), top.Count)

	default:
		if len(sub.Edges) == 0 {
			return fmt.Sprintf("%s has no recorded relationships.", root)
		}
		const maxFacts = 5
		facts := make([]string, 0, maxFacts)
		for _, e := range sub.Edges[:min(len(sub.Edges), maxFacts)] {
			facts = append(facts, describeEdge(sub, e))
		}
		return strings.Join(facts, "; ") + "."
	}
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
