package scoring

import (
	"sync"

	"github.com/poiesic/portfolioqa/core"
)

// ColdStartAccuracy is reported for intents with no recorded feedback.
const ColdStartAccuracy = 0.7

type tally struct {
	accurate int
	total    int
}

// HistoryTracker counts, per intent, how many answered queries were later
// marked accurate.
type HistoryTracker struct {
	mu     sync.Mutex
	counts map[core.IntentLabel]tally
}

// NewHistoryTracker creates an empty tracker.
func NewHistoryTracker() *HistoryTracker {
	return &HistoryTracker{counts: make(map[core.IntentLabel]tally)}
}

// Accuracy returns the fraction of accurate answers for label.
func (h *HistoryTracker) Accuracy(label core.IntentLabel) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.counts[label]
	if t.total == 0 {
		return ColdStartAccuracy
	}
	return float64(t.accurate) / float64(t.total)
}

// Record adds one piece of feedback for label.
func (h *HistoryTracker) Record(label core.IntentLabel, accurate bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t := h.counts[label]
	t.total++
	if accurate {
		t.accurate++
	}
	h.counts[label] = t
}
