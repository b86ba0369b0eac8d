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

package orchestrator

import "github.com/poiesic/portfolioqa/core"

// EventType names a progressive event.
type EventType string

const (
	EventIntent   EventType = "intent"
	EventVector   EventType = "vector"
	EventGraph    EventType = "graph"
	EventMerged   EventType = "merged"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one step of a query stream. Exactly one payload field is set,
// matching Type.
type Event struct {
	Type    EventType
	Intent  *core.Intent
	Partial *ScoredPartial
	Result  *core.MergedResult
	Done    *Completion
	Err     *core.QueryError
}

// ScoredPartial is a retrieval path's result with its confidence breakdown.
type ScoredPartial struct {
	core.PartialResult
	Breakdown core.ConfidenceBreakdown `json:"confidence_breakdown"`
	Failed    bool                     `json:"failed,omitempty"`
}

// Completion closes a successful stream.
type Completion struct {
	Key      string  `json:"key"`
	CacheHit bool    `json:"cache_hit"`
	Elapsed  float64 `json:"elapsed_seconds"`
}

// Payload returns the value to serialize for the event.
func (e Event) Payload() any {
	switch e.Type {
	case EventIntent:
		return e.Intent
	case EventVector, EventGraph:
		return e.Partial
	case EventMerged:
		return e.Result
	case EventComplete:
		return e.Done
	case EventError:
		return e.Err
	default:
		return nil
	}
}

func pathEvent(path core.SourceType) EventType {
	if path == core.SourceGraph {
		return EventGraph
	}
	return EventVector
}
