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

package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/portfolioqa/core"
)

// Reembedder regenerates every chunk embedding, reporting progress as it goes.
type Reembedder interface {
	Run(ctx context.Context, progress func(processed, total int)) error
}

// BackfillSource supplies the updates replayed by a backfill job.
type BackfillSource interface {
	Updates(ctx context.Context) ([]core.EntityUpdate, error)
}

// StartJob creates a job of the given kind and runs it in the background.
// It returns the job id immediately; poll JobStatus for progress.
func (p *Pipeline) StartJob(ctx context.Context, kind core.JobKind) (string, error) {
	if err := core.ValidateJobKind(kind); err != nil {
		return "", err
	}
	if p.jobs == nil {
		return "", ErrJobStoreRequired
	}
	if !p.canRun(kind) {
		return "", fmt.Errorf("%w: %s", ErrJobUnavailable, kind)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return "", ErrClosed
	}
	p.jobsWG.Add(1)
	p.mu.Unlock()

	now := p.now().UTC()
	job := &core.IngestJob{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    core.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.jobs.CreateJob(ctx, job); err != nil {
		p.jobsWG.Done()
		return "", err
	}

	// Jobs outlive the request that started them
	err := p.jobPool.Submit(func() {
		defer p.jobsWG.Done()
		p.runJob(context.Background(), job)
	})
	if err != nil {
		p.jobsWG.Done()
		job.Status = core.JobFailed
		job.Error = err.Error()
		job.UpdatedAt = p.now().UTC()
		if updateErr := p.jobs.UpdateJob(ctx, job); updateErr != nil {
			p.logger.Error("error recording job failure", "job", job.ID, "err", updateErr)
		}
		return "", err
	}

	p.logger.Info("started job", "job", job.ID, "kind", kind)
	return job.ID, nil
}

// JobStatus returns the current state of a job.
// Returns an error wrapping storage.ErrNotFound for unknown ids.
func (p *Pipeline) JobStatus(ctx context.Context, id string) (core.IngestJob, error) {
	if p.jobs == nil {
		return core.IngestJob{}, ErrJobStoreRequired
	}
	job, err := p.jobs.GetJob(ctx, id)
	if err != nil {
		return core.IngestJob{}, fmt.Errorf("job %s: %w", id, err)
	}
	return *job, nil
}

// ListJobs returns jobs newest first, up to limit (0 means all).
func (p *Pipeline) ListJobs(ctx context.Context, limit int) ([]core.IngestJob, error) {
	if p.jobs == nil {
		return nil, ErrJobStoreRequired
	}
	jobs, err := p.jobs.ListJobs(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]core.IngestJob, len(jobs))
	for i, job := range jobs {
		out[i] = *job
	}
	return out, nil
}

func (p *Pipeline) canRun(kind core.JobKind) bool {
	switch kind {
	case core.JobReembed:
		return p.reembedder != nil
	case core.JobRebuild:
		return p.rebuilder != nil
	case core.JobBackfill:
		return p.backfill != nil
	}
	return false
}

// jobRecorder persists job progress. Progress callbacks may arrive from
// several goroutines.
type jobRecorder struct {
	p   *Pipeline
	mu  sync.Mutex
	job core.IngestJob
}

func (r *jobRecorder) save(ctx context.Context, mutate func(job *core.IngestJob)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job.Status.Terminal() {
		return
	}
	mutate(&r.job)
	r.job.UpdatedAt = r.p.now().UTC()
	job := r.job
	if err := r.p.jobs.UpdateJob(ctx, &job); err != nil {
		r.p.logger.Error("error updating job", "job", job.ID, "err", err)
	}
}

func (r *jobRecorder) progress(ctx context.Context) func(processed, total int) {
	return func(processed, total int) {
		r.save(ctx, func(job *core.IngestJob) {
			job.Processed = processed
			job.Total = total
		})
	}
}

func (p *Pipeline) runJob(ctx context.Context, job *core.IngestJob) {
	rec := &jobRecorder{p: p, job: *job}
	logger := p.logger.With("job", job.ID, "kind", job.Kind)

	rec.save(ctx, func(job *core.IngestJob) { job.Status = core.JobRunning })
	start := p.now()

	var err error
	switch job.Kind {
	case core.JobReembed:
		err = p.reembedder.Run(ctx, rec.progress(ctx))
	case core.JobRebuild:
		err = p.runRebuild(ctx, rec.progress(ctx))
	case core.JobBackfill:
		err = p.runBackfill(ctx, rec.progress(ctx))
	}

	if err != nil {
		logger.Error("job failed", "err", err)
		rec.save(ctx, func(job *core.IngestJob) {
			job.Status = core.JobFailed
			job.Error = err.Error()
		})
		return
	}
	rec.save(ctx, func(job *core.IngestJob) { job.Status = core.JobCompleted })
	logger.Info("job completed", "elapsed", p.now().Sub(start))
}

func (p *Pipeline) runRebuild(ctx context.Context, progress func(processed, total int)) error {
	progress(0, 1)
	if err := p.rebuild(ctx); err != nil {
		return err
	}
	progress(1, 1)
	return nil
}

// runBackfill replays every update from the source, then rebuilds once.
// The first update that cannot be applied fails the job.
func (p *Pipeline) runBackfill(ctx context.Context, progress func(processed, total int)) error {
	updates, err := p.backfill.Updates(ctx)
	if err != nil {
		return fmt.Errorf("loading backfill updates: %w", err)
	}

	total := len(updates)
	progress(0, total)
	for i := range updates {
		update := updates[i]
		if err := core.ValidateUpdate(&update); err != nil {
			return err
		}
		if update.ReceivedAt.IsZero() {
			update.ReceivedAt = p.now().UTC()
		}
		if err := p.apply(ctx, &update); err != nil {
			return fmt.Errorf("entity %s: %w", update.EntityID, err)
		}
		progress(i+1, total)
	}
	return p.rebuild(ctx)
}
