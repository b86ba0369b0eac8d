package merge

import (
	"encoding/json"
	"testing"

	"github.com/poiesic/portfolioqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorScored(overall float64, ids ...core.EntityID) *Scored {
	p := core.EmptyPartial(core.SourceVector)
	for _, id := range ids {
		p.Sources = append(p.Sources, core.Source{EntityID: id, EntityType: core.EntityDocument, Confidence: 0.9, SourceType: core.SourceVector})
	}
	if len(ids) > 0 {
		p.Answer = "Vendor API delays block Product X. QA backlog is growing."
		p.Confidence = 1
	}
	return &Scored{Partial: p, Breakdown: core.ConfidenceBreakdown{Overall: overall, EntityGrounding: 0.8, DataFreshness: 1, SourceReliability: 0.4, HistoricalAccuracy: 0.7}}
}

func graphScored(overall float64) *Scored {
	return &Scored{
		Partial: core.PartialResult{
			Path:       core.SourceGraph,
			Answer:     "Product X was escalated after risk R1 was mitigated by a tier-1 escalation.",
			Confidence: 0.95,
			Sources: []core.Source{
				{EntityID: "product-x", EntityType: core.EntityProduct, Confidence: 1, SourceType: core.SourceGraph},
				{EntityID: "risk-1", EntityType: core.EntityRisk, Confidence: 0.9, SourceType: core.SourceGraph},
			},
			Graph: &core.GraphFindings{
				Pattern: core.PatternCausal,
				Chain: []core.CausalLink{
					{From: "product-x", To: "risk-1", Kind: core.RelHasRisk},
					{From: "risk-1", To: "action-1", Kind: core.RelMitigatedBy},
					{From: "action-1", To: "outcome-1", Kind: core.RelResultedIn},
				},
				Actions:  []core.RecommendedAction{{ActionType: "escalation", Tier: "tier-1", Confidence: 0.85}},
				Forecast: &core.Forecast{Scenario: "score projected", Impact: "improving", Probability: 0.7, TimeHorizon: "30d"},
			},
		},
		Breakdown: core.ConfidenceBreakdown{Overall: overall, EntityGrounding: 0.9, DataFreshness: 0.8, SourceReliability: 0.6, HistoricalAccuracy: 0.7},
	}
}

var (
	ragIntent    = core.Intent{Label: core.IntentBlockers, Confidence: 0.9, Route: core.RouteRAG}
	graphIntent  = core.Intent{Label: core.IntentCausal, Confidence: 0.9, Route: core.RouteGraph}
	hybridIntent = core.Intent{Label: core.IntentHybrid, Confidence: 0.75, Route: core.RouteBoth}
)

func assertContiguous(t *testing.T, trace []core.ReasoningStep) {
	t.Helper()
	require.NotEmpty(t, trace)
	for i, step := range trace {
		assert.Equal(t, i+1, step.Step)
		assert.GreaterOrEqual(t, step.Confidence, 0.0)
		assert.LessOrEqual(t, step.Confidence, 1.0)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Case
	}{
		{name: "nothing ran", in: Input{}, want: CaseEmpty},
		{name: "both empty", in: Input{Vector: vectorScored(0), Graph: &Scored{Partial: core.EmptyPartial(core.SourceGraph)}}, want: CaseEmpty},
		{name: "vector only", in: Input{Vector: vectorScored(0.8, "doc-1")}, want: CaseVectorOnly},
		{name: "graph only, vector empty", in: Input{Vector: vectorScored(0), Graph: graphScored(0.7)}, want: CaseGraphOnly},
		{name: "both", in: Input{Vector: vectorScored(0.8, "doc-1"), Graph: graphScored(0.7)}, want: CaseBoth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
			assert.Equal(t, tt.want.String(), Classify(tt.in).String())
		})
	}
}

func TestMerge_Empty(t *testing.T) {
	got := Merge(Input{
		Question: "What is the weather on Mars?",
		Intent:   hybridIntent,
		Vector:   vectorScored(0),
		Graph:    &Scored{Partial: core.EmptyPartial(core.SourceGraph)},
	})

	assert.Equal(t, core.AnswerUnknown, got.AnswerType)
	assert.Zero(t, got.Confidence)
	assert.Zero(t, got.Completeness)
	assert.Contains(t, got.Answer, "not enough information")
	assert.Contains(t, got.Answer, "Mars")
	assert.Empty(t, got.Sources)
	assert.NotNil(t, got.Sources)
	assert.Empty(t, got.RecommendedActions)
	assert.Nil(t, got.Forecast)
	assert.Contains(t, got.Warnings, core.ErrMergeInsufficientData.Error())
	assertContiguous(t, got.ReasoningTrace)
	assert.Len(t, got.ReasoningTrace, 4) // intent, vector, graph, conclusion
}

func TestMerge_VectorOnly(t *testing.T) {
	got := Merge(Input{
		Question: "What blockers does Product X have?",
		Intent:   ragIntent,
		Vector:   vectorScored(0.8, "doc-1", "doc-2"),
	})

	assert.InDelta(t, 0.7*0.8, got.Confidence, 1e-9)
	assert.Equal(t, got.Confidence, got.ConfidenceBreakdown.Overall)
	require.Len(t, got.Sources, 2)
	for _, s := range got.Sources {
		assert.Equal(t, core.SourceVector, s.SourceType)
	}
	assert.Equal(t, "Vendor API delays block Product X. QA backlog is growing.", got.Answer)
	assert.Equal(t, core.AnswerSpeculative, got.AnswerType)
	assert.InDelta(t, 0.8, got.Completeness, 1e-9)
	assert.Empty(t, got.RecommendedActions)
	assert.Nil(t, got.Forecast)
	require.NotEmpty(t, got.Warnings)
	assert.Contains(t, got.Warnings[0], "low confidence")
	assertContiguous(t, got.ReasoningTrace)
	assert.Len(t, got.ReasoningTrace, 3)
}

func TestMerge_GraphCausal(t *testing.T) {
	got := Merge(Input{
		Question: "Why was Product X escalated?",
		Intent:   graphIntent,
		Vector:   nil,
		Graph:    graphScored(0.9),
	})

	assert.InDelta(t, 0.63, got.Confidence, 1e-9)
	assert.GreaterOrEqual(t, len(got.ReasoningTrace), 3)
	assertContiguous(t, got.ReasoningTrace)
	assert.Contains(t, got.ReasoningTrace[1].Action, "3-link causal chain")
	require.Len(t, got.RecommendedActions, 1)
	assert.Equal(t, "escalation", got.RecommendedActions[0].ActionType)
	require.NotNil(t, got.Forecast)
	assert.Equal(t, core.AnswerGrounded, got.AnswerType)
	assert.Empty(t, got.Warnings)
}

func TestMerge_Both(t *testing.T) {
	in := Input{
		Intent: hybridIntent,
		Vector: vectorScored(0.8, "doc-1"),
		Graph:  graphScored(0.6),
	}
	got := Merge(in)

	assert.InDelta(t, 0.7*0.8+0.3*0.6, got.Confidence, 1e-9)
	require.Len(t, got.Sources, 3)
	assert.Equal(t, core.SourceVector, got.Sources[0].SourceType, "primary sources first")
	assert.Equal(t, core.EntityID("product-x"), got.Sources[1].EntityID)
	assert.Equal(t, "Vendor API delays block Product X. QA backlog is growing. Supporting graph evidence: Product X was escalated after risk R1 was mitigated by a tier-1 escalation.", got.Answer)
	assert.Equal(t, core.AnswerGrounded, got.AnswerType)
	assert.InDelta(t, (0.8+0.9)/2, got.Completeness, 1e-9)
	assert.NotEmpty(t, got.RecommendedActions, "graph findings attach even when graph is secondary")
	assert.InDelta(t, 0.7*1+0.3*0.8, got.ConfidenceBreakdown.DataFreshness, 1e-9)
	assert.Contains(t, got.ReasoningTrace[len(got.ReasoningTrace)-1].Action, "vector as primary")
	assertContiguous(t, got.ReasoningTrace)
}

func TestMerge_PrimarySelection(t *testing.T) {
	tests := []struct {
		name   string
		intent core.Intent
		v, g   float64
		want   core.SourceType
	}{
		{name: "graph higher", intent: hybridIntent, v: 0.5, g: 0.7, want: core.SourceGraph},
		{name: "vector higher", intent: hybridIntent, v: 0.7, g: 0.5, want: core.SourceVector},
		{name: "tie on both route", intent: hybridIntent, v: 0.6, g: 0.6, want: core.SourceVector},
		{name: "tie on graph route", intent: graphIntent, v: 0.6, g: 0.6, want: core.SourceGraph},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(Input{Intent: tt.intent, Vector: vectorScored(tt.v, "doc-1"), Graph: graphScored(tt.g)})
			assert.Equal(t, tt.want, got.Sources[0].SourceType)
		})
	}
}

func TestMerge_ConfidenceNeverExceedsBestPartial(t *testing.T) {
	for _, v := range []float64{0, 0.1, 0.5, 0.9, 1} {
		for _, g := range []float64{0, 0.2, 0.6, 1} {
			got := Merge(Input{Intent: hybridIntent, Vector: vectorScored(v, "doc-1"), Graph: graphScored(g)})
			assert.LessOrEqual(t, got.Confidence, max(v, g)+1e-12)
			assert.GreaterOrEqual(t, got.Confidence, 0.0)
		}
	}

	// Out of range inputs are clamped.
	got := Merge(Input{Intent: ragIntent, Vector: vectorScored(3, "doc-1")})
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)
}

func TestMerge_LowRelevanceBoundsConfidence(t *testing.T) {
	weak := vectorScored(0.9, "doc-1", "doc-2")
	weak.Partial.Confidence = 0.1
	for i := range weak.Partial.Sources {
		weak.Partial.Sources[i].Confidence = 0.1
	}

	got := Merge(Input{Intent: ragIntent, Vector: weak})
	assert.LessOrEqual(t, got.Confidence, 0.1)
	assert.InDelta(t, 0.7*0.1, got.Confidence, 1e-9)
	assert.Equal(t, core.AnswerSpeculative, got.AnswerType)
	assert.Contains(t, got.Warnings[0], "low confidence")

	t.Run("weak path loses primary", func(t *testing.T) {
		got := Merge(Input{Intent: hybridIntent, Vector: weak, Graph: graphScored(0.5)})
		assert.Equal(t, core.SourceGraph, got.Sources[0].SourceType)
		assert.LessOrEqual(t, got.Confidence, 0.5)
	})

	t.Run("never above the best partial", func(t *testing.T) {
		for _, vc := range []float64{0, 0.2, 0.6, 1} {
			for _, gc := range []float64{0.1, 0.5, 0.95} {
				v := vectorScored(0.9, "doc-1")
				v.Partial.Confidence = vc
				g := graphScored(0.9)
				g.Partial.Confidence = gc
				got := Merge(Input{Intent: hybridIntent, Vector: v, Graph: g})
				assert.LessOrEqual(t, got.Confidence, max(vc, gc)+1e-12)
			}
		}
	})
}

func TestMerge_PartialAnswers(t *testing.T) {
	t.Run("one path missing on both route", func(t *testing.T) {
		got := Merge(Input{Intent: hybridIntent, Vector: vectorScored(0), Graph: graphScored(0.95)})
		assert.Equal(t, core.AnswerPartial, got.AnswerType)
		assert.InDelta(t, 0.5*0.9, got.Completeness, 1e-9)
	})

	t.Run("failed path", func(t *testing.T) {
		empty := &Scored{Partial: core.EmptyPartial(core.SourceGraph)}
		got := Merge(Input{Intent: hybridIntent, Vector: vectorScored(0.9, "doc-1", "doc-2"), Graph: empty, Failed: []core.SourceType{core.SourceGraph}})
		assert.Equal(t, core.AnswerPartial, got.AnswerType)
		assert.Contains(t, got.Warnings, "graph retrieval failed; answer built without it")
		assert.Contains(t, got.ReasoningTrace[2].Action, "graph retrieval failed")
	})
}

func TestMerge_NoActionsWithoutCausalOrTemporalData(t *testing.T) {
	g := graphScored(0.8)
	g.Partial.Graph.Chain = nil
	g.Partial.Graph.Pattern = core.PatternNeighborhood

	got := Merge(Input{Intent: graphIntent, Graph: g})
	assert.Empty(t, got.RecommendedActions)
	assert.Nil(t, got.Forecast)
}

func TestMerge_TruncationWarning(t *testing.T) {
	g := graphScored(0.9)
	g.Partial.Truncated = true

	got := Merge(Input{Intent: graphIntent, Graph: g})
	assert.Contains(t, got.Warnings, "graph results were truncated")
}

func TestMerge_DoesNotAliasInput(t *testing.T) {
	g := graphScored(0.9)
	got := Merge(Input{Intent: graphIntent, Graph: g})

	got.RecommendedActions[0].Tier = "changed"
	got.Forecast.Impact = "changed"
	got.Sources[0].Name = "changed"

	assert.Equal(t, "tier-1", g.Partial.Graph.Actions[0].Tier)
	assert.Equal(t, "improving", g.Partial.Graph.Forecast.Impact)
	assert.Empty(t, g.Partial.Sources[0].Name)
}

func TestMerge_Deterministic(t *testing.T) {
	in := Input{Intent: hybridIntent, Vector: vectorScored(0.8, "doc-1", "doc-2"), Graph: graphScored(0.7)}
	first, err := json.Marshal(Merge(in))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := json.Marshal(Merge(in))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "Score rose to 0.85 in May.", firstSentence("Score rose to 0.85 in May. Then it fell."))
	assert.Equal(t, "No terminator.", firstSentence("No terminator"))
	assert.Equal(t, "", firstSentence("  "))
}
