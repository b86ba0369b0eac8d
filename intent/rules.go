package intent

import (
	"strings"

	"github.com/poiesic/portfolioqa/core"
)

const (
	singleMatchConfidence = 0.85
	extraHitBonus         = 0.05
	maxRuleConfidence     = 0.95
	hybridRuleConfidence  = 0.75
	entityHintConfidence  = 0.65
)

type rule struct {
	label    core.IntentLabel
	route    core.Route
	keywords []string
}

// rules are evaluated in order; the first matching rule wins when all matches
// share a route.
var rules = []rule{
	{label: core.IntentBlockers, route: core.RouteRAG, keywords: []string{"blocker", "blockers", "block", "blocked", "blocking", "dependency", "dependencies"}},
	{label: core.IntentCausal, route: core.RouteGraph, keywords: []string{"why", "cause", "caused", "causes", "reason", "reasons"}},
	{label: core.IntentTrends, route: core.RouteGraph, keywords: []string{"trend", "trends", "history", "historical", "over time"}},
	{label: core.IntentForecast, route: core.RouteGraph, keywords: []string{"forecast", "predict", "prediction", "what if", "will"}},
	{label: core.IntentStatus, route: core.RouteRAG, keywords: []string{"status", "progress", "health"}},
}

type match struct {
	rule *rule
	hits int
}

// normalize lowercases text, strips punctuation from word edges and pads the
// result with spaces so phrase lookups can match on word boundaries.
func normalize(text string) string {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		words[i] = strings.Trim(w, ".,!?;:'\"-()[]{}")
	}
	return " " + strings.Join(words, " ") + " "
}

func matchRules(text string) []match {
	padded := normalize(text)
	var out []match
	for i := range rules {
		r := &rules[i]
		hits := 0
		for _, kw := range r.keywords {
			if strings.Contains(padded, " "+kw+" ") {
				hits++
			}
		}
		if hits > 0 {
			out = append(out, match{rule: r, hits: hits})
		}
	}
	return out
}

// applyRules returns the heuristic intent for text. ok is false when nothing
// matched.
func applyRules(text string, attrs map[string]any) (core.Intent, bool) {
	matches := matchRules(text)
	if len(matches) == 0 {
		if hasEntityHint(attrs) {
			return core.Intent{Label: core.IntentHybrid, Confidence: entityHintConfidence, Route: core.RouteBoth}, true
		}
		return core.Intent{Label: core.IntentUnknown, Route: core.RouteBoth}, false
	}

	first := matches[0]
	for _, m := range matches[1:] {
		if m.rule.route != first.rule.route {
			return core.Intent{Label: core.IntentHybrid, Confidence: hybridRuleConfidence, Route: core.RouteBoth}, true
		}
	}

	confidence := min(singleMatchConfidence+extraHitBonus*float64(first.hits-1), maxRuleConfidence)
	return core.Intent{Label: first.rule.label, Confidence: confidence, Route: first.rule.route}, true
}

func hasEntityHint(attrs map[string]any) bool {
	for _, k := range []string{"entity_id", "entity"} {
		if v, ok := attrs[k]; ok && v != nil && v != "" {
			return true
		}
	}
	return false
}

// RouteFor maps an intent label to the retrieval paths that serve it.
func RouteFor(label core.IntentLabel) core.Route {
	switch label {
	case core.IntentBlockers, core.IntentStatus:
		return core.RouteRAG
	case core.IntentCausal, core.IntentTrends, core.IntentForecast:
		return core.RouteGraph
	default:
		return core.RouteBoth
	}
}
