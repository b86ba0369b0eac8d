package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONResponse(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantLabel string
		wantConf  float64
		wantErr   bool
	}{
		{name: "plain object", reply: `{"label":"causal","confidence":0.9}`, wantLabel: "causal", wantConf: 0.9},
		{name: "markdown fence", reply: "```json\n{\"label\":\"trends\",\"confidence\":0.7}\n```", wantLabel: "trends", wantConf: 0.7},
		{name: "leading chatter", reply: `Sure! {"label":"status","confidence":0.8} hope this helps`, wantLabel: "status", wantConf: 0.8},
		{name: "missing opening quote", reply: `{label":"blockers", confidence": 0.65}`, wantLabel: "blockers", wantConf: 0.65},
		{name: "no object", reply: "I cannot classify this", wantErr: true},
		{name: "broken object", reply: `{"label": }`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got IntentReply
			err := DecodeJSONResponse(tt.reply, &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
		})
	}
}

func TestDecodeJSONResponse_NoObject(t *testing.T) {
	var got IntentReply
	assert.ErrorIs(t, DecodeJSONResponse("none", &got), ErrNoJSONObject)
}

func TestRepairJSON_LeavesValidInputAlone(t *testing.T) {
	in := `{"rationale": "slow, late", "tags": [1, true]}`
	assert.Equal(t, in, repairJSON(in))
}

func TestIntentPrompt(t *testing.T) {
	p := IntentPrompt("Why was {Atlas} escalated?\n")

	assert.Contains(t, p, "Question: Why was Atlas escalated?")
	for _, label := range IntentLabels {
		assert.Contains(t, p, label)
	}
}

func TestAnswerPrompt(t *testing.T) {
	p := AnswerPrompt("What blocks Atlas?", "Vendor API delay.", []string{"Atlas blocked by vendor", " QA backlog "})

	assert.Contains(t, p, "Question: What blocks Atlas?")
	assert.Contains(t, p, "Draft answer: Vendor API delay.")
	assert.Contains(t, p, "- Atlas blocked by vendor\n- QA backlog\n")

	empty := AnswerPrompt("q", "d", nil)
	assert.Contains(t, empty, "(none)")
}
