package main

import (
	"fmt"
	"io"

	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/search"
	"github.com/poiesic/portfolioqa/storage"
)

// explainMonitor prints each step of vector retrieval for --explain.
type explainMonitor struct {
	w io.Writer
}

var _ search.Monitor = (*explainMonitor)(nil)

func (m *explainMonitor) Start(query string) {
	fmt.Fprintf(m.w, "vector: %q\n", query)
}

func (m *explainMonitor) AfterEmbedding(cached bool) {
	if cached {
		fmt.Fprintln(m.w, "  embedding: cached")
		return
	}
	fmt.Fprintln(m.w, "  embedding: computed")
}

func (m *explainMonitor) AfterSearch(candidates []storage.ScoredChunk) {
	fmt.Fprintf(m.w, "  search: %d candidates\n", len(candidates))
}

func (m *explainMonitor) AfterRerank(ranked []search.Candidate) {
	fmt.Fprintf(m.w, "  rerank: %d kept\n", len(ranked))
	for i, c := range ranked {
		fmt.Fprintf(m.w, "    %d. %s sim=%.3f recency=%.3f filter=%.1f score=%.3f\n",
			i+1, c.Chunk.ID, c.Similarity, c.Recency, c.FilterMatch, c.Score)
	}
}

func (m *explainMonitor) AfterAssembly(passages []search.Passage, truncated bool) {
	tokens := 0
	for _, p := range passages {
		tokens += p.Tokens
	}
	fmt.Fprintf(m.w, "  context: %d passages, %d tokens", len(passages), tokens)
	if truncated {
		fmt.Fprint(m.w, " (truncated)")
	}
	fmt.Fprintln(m.w)
}

func (m *explainMonitor) Finish(result *core.PartialResult) {
	fmt.Fprintf(m.w, "  done: %d sources, confidence %.3f\n", len(result.Sources), result.Confidence)
}
