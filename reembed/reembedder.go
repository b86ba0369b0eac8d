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
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/poiesic/portfolioqa/backoff"
	"github.com/poiesic/portfolioqa/core"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks to embed in each call
	BatchSize int

	// ReportInterval is how often to write progress (number of chunks)
	ReportInterval int

	// Concurrency is how many batches are embedded at once. Values below 1 mean 1.
	Concurrency int

	// Retry governs retries of each batch's embedding call
	Retry backoff.Policy
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		Concurrency:    1,
		Retry:          backoff.DefaultPolicy(),
	}
}

// Reembedder orchestrates the reembedding of every chunk in the index.
type Reembedder struct {
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *ChunkIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr, nil discards it)
func NewReembedder(repo ChunkStore, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if repo == nil {
		return nil, ErrChunkStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Retry.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}

	logger := slog.Default().With("component", "reembed")
	return &Reembedder{
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.Retry, logger),
		iterator:  NewChunkIterator(repo, config.BatchSize),
		logger:    logger,
	}, nil
}

// Run re-embeds every chunk. onProgress, when non-nil, receives the processed
// and total chunk counts after each batch.
func (r *Reembedder) Run(ctx context.Context, onProgress func(processed, total int)) error {
	total, err := r.iterator.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in index (0 chunks)\n")
		if onProgress != nil {
			onProgress(0, 0)
		}
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d chunks (batch size: %d)\n",
		total, r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.OnProgress = onProgress
	tracker.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.config.Concurrency, 1))
	iterErr := r.iterator.ForEach(gctx, func(chunks []*core.Chunk) error {
		g.Go(func() error {
			if err := r.processor.Process(gctx, chunks); err != nil {
				return fmt.Errorf("failed to process batch: %w", err)
			}
			tracker.Increment(len(chunks))
			return nil
		})
		return nil
	})
	// A failed batch cancels gctx, so its error outranks the iterator's
	if err = g.Wait(); err == nil {
		err = iterErr
	}
	if err != nil {
		r.logger.Error("reembedding stopped", "processed", tracker.Current(), "total", total, "err", err)
		return err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())

	return nil
}
