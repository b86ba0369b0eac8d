package ai

import (
	"fmt"
	"strings"
)

const intentPromptTemplate = `Classify the portfolio question below and return JSON.

Output ONLY valid JSON. Do not include any preamble or explanation. Start your response with
the opening brace { and end with the closing brace }. The object has exactly two keys:

  "label":      one of %s
  "confidence": a number from 0 to 1

Label meanings:
- blockers: what is blocking or holding back a product, open dependencies
- causal: why something happened, root causes, escalations
- trends: how something changed over time, history
- forecast: what will happen next, predictions, what-if scenarios
- status: current state or health of a product
- hybrid: the question needs both document search and relationship traversal
- unknown: none of the above

Example:
Input: "Why did Atlas slip its launch date?"
Output:
{"label":"causal","confidence":0.9}

Question: %s`

const answerPromptTemplate = `Rewrite the draft answer below as a concise reply to the question.
Use only facts present in the draft and the listed sources. Do not invent names, numbers or dates.
Reply with plain text, at most three sentences.

Question: %s

Draft answer: %s

Sources:
%s`

// IntentLabels lists the labels the intent fallback prompt may return.
var IntentLabels = []string{"blockers", "causal", "trends", "forecast", "status", "hybrid", "unknown"}

// IntentReply is the JSON object the intent fallback prompt asks for.
type IntentReply struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// IntentPrompt builds the low-confidence intent classification prompt.
func IntentPrompt(question string) string {
	return fmt.Sprintf(intentPromptTemplate, strings.Join(IntentLabels, ", "), scrubString(question))
}

// AnswerPrompt builds the final answer phrasing prompt. Each source is one line.
func AnswerPrompt(question, draft string, sources []string) string {
	var b strings.Builder
	for _, s := range sources {
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(s))
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		b.WriteString("(none)\n")
	}
	return fmt.Sprintf(answerPromptTemplate, strings.TrimSpace(question), strings.TrimSpace(draft), b.String())
}

// scrubString strips characters that confuse small models and trims whitespace.
func scrubString(s string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune("\"{}[]`", r) {
			return -1
		}
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
