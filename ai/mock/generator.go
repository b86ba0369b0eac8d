package mock

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// MockGenerator is a test double for ai.Generator.
// By default it echoes the last line of the prompt.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

	callCount atomic.Int64

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator creates a mock generator with default echo behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// NewMockGeneratorWithReply creates a mock generator that always returns reply.
func NewMockGeneratorWithReply(reply string) *MockGenerator {
	return &MockGenerator{
		GenerateFunc: func(ctx context.Context, prompt string, maxTokens int) (string, error) {
			return reply, nil
		},
	}
}

// Generate records the prompt and returns the injected or default reply.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, maxTokens)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	return int(m.callCount.Load())
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears recorded calls and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount.Store(0)
	m.mu.Lock()
	m.prompts = nil
	m.mu.Unlock()
	m.GenerateFunc = nil
}
