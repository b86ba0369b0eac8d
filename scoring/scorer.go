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

package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/poiesic/portfolioqa/core"
)

const weightTolerance = 1e-9

// ErrInvalidWeights is returned when weights are out of range or do not sum to 1.
var ErrInvalidWeights = errors.New("invalid confidence weights")

// Weights balance the four confidence components.
type Weights struct {
	Freshness   float64 `json:"freshness" yaml:"freshness"`
	Reliability float64 `json:"reliability" yaml:"reliability"`
	Grounding   float64 `json:"grounding" yaml:"grounding"`
	Historical  float64 `json:"historical" yaml:"historical"`
}

// DefaultWeights returns freshness 0.25, reliability 0.30, grounding 0.20
// and historical accuracy 0.25.
func DefaultWeights() Weights {
	return Weights{Freshness: 0.25, Reliability: 0.30, Grounding: 0.20, Historical: 0.25}
}

// Validate checks that every weight is in [0,1] and that they sum to 1.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"freshness":   w.Freshness,
		"reliability": w.Reliability,
		"grounding":   w.Grounding,
		"historical":  w.Historical,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s weight %v outside [0,1]", ErrInvalidWeights, name, v)
		}
	}
	sum := w.Freshness + w.Reliability + w.Grounding + w.Historical
	if math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// Freshness maps the age of the newest observed update to a score.
func Freshness(age time.Duration) float64 {
	switch {
	case age < 24*time.Hour:
		return 1.0
	case age < 168*time.Hour:
		return 0.8
	case age < 720*time.Hour:
		return 0.6
	default:
		return 0.4
	}
}

// Reliability maps graph connectivity or source count to a score.
func Reliability(connections int) float64 {
	switch {
	case connections > 10:
		return 1.0
	case connections > 5:
		return 0.8
	case connections > 2:
		return 0.6
	default:
		return 0.4
	}
}

// Grounding weighs required-field completeness at 0.7 and optional-field
// completeness at 0.3. A category with no expected fields counts as complete;
// with no expected fields at all there is nothing grounded and the score is 0.
func Grounding(reqPresent, reqTotal, optPresent, optTotal int) float64 {
	if reqTotal <= 0 && optTotal <= 0 {
		return 0
	}
	return 0.7*completeness(reqPresent, reqTotal) + 0.3*completeness(optPresent, optTotal)
}

func completeness(present, total int) float64 {
	if total <= 0 {
		return 1
	}
	return clamp01(float64(present) / float64(total))
}

// Score computes the confidence breakdown for one retrieval result. An
// evidence set with no update time is treated as maximally stale.
func Score(ev core.Evidence, historical float64, now time.Time, w Weights) core.ConfidenceBreakdown {
	age := time.Duration(math.MaxInt64)
	if !ev.NewestUpdate.IsZero() {
		age = max(now.Sub(ev.NewestUpdate), 0)
	}

	b := core.ConfidenceBreakdown{
		DataFreshness:      Freshness(age),
		SourceReliability:  Reliability(ev.Connections),
		EntityGrounding:    Grounding(ev.RequiredPresent, ev.RequiredFields, ev.OptionalPresent, ev.OptionalFields),
		HistoricalAccuracy: clamp01(historical),
	}
	b.Overall = clamp01(w.Freshness*b.DataFreshness +
		w.Reliability*b.SourceReliability +
		w.Grounding*b.EntityGrounding +
		w.Historical*b.HistoricalAccuracy)
	return b
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}
