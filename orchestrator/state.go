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

import (
	"fmt"
	"slices"
	"sync"
)

// State is the lifecycle position of one query.
type State int

const (
	StateIdle State = iota
	StateClassifying
	StateQuerying
	StateMerging
	StateComplete
	StateError
)

var stateNames = [...]string{"idle", "classifying", "querying", "merging", "complete", "error"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError
}

// A cache hit moves straight from idle to merging. Every non-terminal state
// may fail.
var transitions = map[State][]State{
	StateIdle:        {StateClassifying, StateMerging, StateError},
	StateClassifying: {StateQuerying, StateError},
	StateQuerying:    {StateMerging, StateError},
	StateMerging:     {StateComplete, StateError},
}

// Run tracks the state of a single query.
type Run struct {
	key    string
	events chan Event

	mu      sync.Mutex
	state   State
	history []State
	err     error
}

func newRun(key string, buffer int) *Run {
	return &Run{
		key:     key,
		events:  make(chan Event, buffer),
		history: []State{StateIdle},
	}
}

// Key is the cache key of the query.
func (r *Run) Key() string {
	return r.key
}

// Events returns the run's event stream. It is closed after the final event.
func (r *Run) Events() <-chan Event {
	return r.events
}

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// History returns every state the run has entered, in order.
func (r *Run) History() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.history)
}

// Err returns the error captured when the run entered StateError.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Run) transition(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(transitions[r.state], to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.state, to)
	}
	r.state = to
	r.history = append(r.history, to)
	return nil
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	r.state = StateError
	r.history = append(r.history, StateError)
	r.err = err
}
