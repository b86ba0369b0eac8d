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

package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker tracks and reports progress of reembedding operations.
// Text progress goes to the writer every reportInterval chunks; OnProgress,
// when set, sees every change.
type ProgressTracker struct {
	// OnProgress is called after each change with the current and total counts.
	// It must be set before Start.
	OnProgress func(current, total int)

	writer         io.Writer
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (nil discards it)
// total: total number of chunks to process
// reportInterval: report progress every N chunks
func NewProgressTracker(writer io.Writer, total, reportInterval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressTracker{
		writer:         writer,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
	total := p.total
	p.mu.Unlock()

	p.notify(0, total)
}

// Update sets the current progress to the specified value.
func (p *ProgressTracker) Update(current int) {
	p.set(func() { p.current = current })
}

// Increment increases the current progress by the specified amount.
func (p *ProgressTracker) Increment(delta int) {
	p.set(func() { p.current += delta })
}

func (p *ProgressTracker) set(change func()) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}

	change()
	if p.current > p.total {
		p.current = p.total
	}

	// Report if we've crossed a report interval
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
	current, total := p.current, p.total
	p.mu.Unlock()

	p.notify(current, total)
}

// Finish marks the operation as complete and prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}

	p.current = p.total
	p.report()
	fmt.Fprintln(p.writer)
	total := p.total
	p.mu.Unlock()

	p.notify(total, total)
}

// Current returns the number of chunks processed so far.
func (p *ProgressTracker) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}

	return time.Since(p.startTime)
}

func (p *ProgressTracker) notify(current, total int) {
	if p.OnProgress != nil {
		p.OnProgress(current, total)
	}
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	elapsed := time.Since(p.startTime)
	rate := float64(p.current) / elapsed.Seconds()

	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f chunks/s",
		p.current, p.total, percentage, rate)
}
