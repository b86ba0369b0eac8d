package search

import (
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
)

// Monitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results.
type Monitor interface {
	Start(query string)
	AfterEmbedding(cached bool)
	AfterSearch(candidates []storage.ScoredChunk)
	AfterRerank(ranked []Candidate)
	AfterAssembly(passages []Passage, truncated bool)
	Finish(result *core.PartialResult)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                      {}
func (n *noopMonitor) AfterEmbedding(_ bool)               {}
func (n *noopMonitor) AfterSearch(_ []storage.ScoredChunk) {}
func (n *noopMonitor) AfterRerank(_ []Candidate)           {}
func (n *noopMonitor) AfterAssembly(_ []Passage, _ bool)   {}
func (n *noopMonitor) Finish(_ *core.PartialResult)        {}
