package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForJob(t *testing.T, p *Pipeline, id string) core.IngestJob {
	t.Helper()
	var job core.IngestJob
	require.Eventually(t, func() bool {
		var err error
		job, err = p.JobStatus(context.Background(), id)
		return err == nil && job.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestStartJob_Rebuild(t *testing.T) {
	rebuilder := &countingRebuilder{}
	p, _, _ := setupTestPipeline(t, WithRebuilder(rebuilder))

	id, err := p.StartJob(context.Background(), core.JobRebuild)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "job ids are uuids")

	job := waitForJob(t, p, id)
	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, core.JobRebuild, job.Kind)
	assert.Equal(t, 1, job.Total)
	assert.Equal(t, 1, job.Processed)
	assert.Empty(t, job.Error)
	assert.Equal(t, int32(1), rebuilder.calls.Load())
}

func TestStartJob_Reembed(t *testing.T) {
	p, _, _ := setupTestPipeline(t, WithReembedder(&fakeReembedder{total: 4}))

	id, err := p.StartJob(context.Background(), core.JobReembed)
	require.NoError(t, err)

	job := waitForJob(t, p, id)
	assert.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, 4, job.Total)
	assert.Equal(t, 4, job.Processed)
}

func TestStartJob_Failure(t *testing.T) {
	p, _, _ := setupTestPipeline(t, WithReembedder(&fakeReembedder{total: 2, err: errors.New("index offline")}))

	id, err := p.StartJob(context.Background(), core.JobReembed)
	require.NoError(t, err)

	job := waitForJob(t, p, id)
	assert.Equal(t, core.JobFailed, job.Status)
	assert.Equal(t, "index offline", job.Error)
	assert.Equal(t, 2, job.Processed)
}

func TestStartJob_Backfill(t *testing.T) {
	rebuilder := &countingRebuilder{}
	source := staticBackfill{
		productUpdate("p1", "Atlas", "green"),
		productUpdate("p2", "Borealis", "amber"),
		{
			EntityID: "r1",
			Entity:   &core.Entity{ID: "r1", Type: core.EntityRisk, Name: "Vendor API delay"},
			Chunks:   []core.Chunk{{EntityID: "r1", Text: "Vendor API slipped two sprints."}},
			Relationships: []core.Relationship{
				{From: "p1", To: "r1", Kind: core.RelHasRisk},
			},
		},
	}
	p, repos, _ := setupTestPipeline(t, WithBackfillSource(source), WithRebuilder(rebuilder))
	ctx := context.Background()

	id, err := p.StartJob(ctx, core.JobBackfill)
	require.NoError(t, err)

	job := waitForJob(t, p, id)
	require.Equal(t, core.JobCompleted, job.Status, job.Error)
	assert.Equal(t, 3, job.Total)
	assert.Equal(t, 3, job.Processed)
	assert.Equal(t, int32(1), rebuilder.calls.Load())

	entities, err := repos.Graph.ListEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 3)
	chunks, err := repos.Chunks.ChunksForEntity(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestStartJob_BackfillStopsOnInvalidUpdate(t *testing.T) {
	source := staticBackfill{
		productUpdate("p1", "Atlas", "green"),
		{EntityID: "p2", Entity: &core.Entity{ID: "p2", Type: core.EntityProduct}},
	}
	p, _, _ := setupTestPipeline(t, WithBackfillSource(source))

	id, err := p.StartJob(context.Background(), core.JobBackfill)
	require.NoError(t, err)

	job := waitForJob(t, p, id)
	assert.Equal(t, core.JobFailed, job.Status)
	assert.Equal(t, 1, job.Processed)
	assert.Contains(t, job.Error, "invalid entity update")
}

func TestStartJob_Errors(t *testing.T) {
	p, _, _ := setupTestPipeline(t)
	ctx := context.Background()

	_, err := p.StartJob(ctx, "compact")
	assert.ErrorIs(t, err, core.ErrUnknownJobKind)
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = p.StartJob(ctx, core.JobReembed)
	assert.ErrorIs(t, err, ErrJobUnavailable)

	require.NoError(t, p.Close())
	_, err = p.StartJob(ctx, core.JobRebuild)
	assert.Error(t, err)
}

func TestStartJob_WithoutJobStore(t *testing.T) {
	p, _, _ := setupTestPipeline(t)
	p.jobs = nil

	_, err := p.StartJob(context.Background(), core.JobRebuild)
	assert.ErrorIs(t, err, ErrJobStoreRequired)
	_, err = p.JobStatus(context.Background(), "x")
	assert.ErrorIs(t, err, ErrJobStoreRequired)
	_, err = p.ListJobs(context.Background(), 0)
	assert.ErrorIs(t, err, ErrJobStoreRequired)
}

func TestJobStatus_NotFound(t *testing.T) {
	p, _, _ := setupTestPipeline(t)

	_, err := p.JobStatus(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListJobs(t *testing.T) {
	rebuilder := &countingRebuilder{}
	p, _, _ := setupTestPipeline(t, WithRebuilder(rebuilder))
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := p.StartJob(ctx, core.JobRebuild)
		require.NoError(t, err)
		waitForJob(t, p, id)
		ids = append(ids, id)
	}

	jobs, err := p.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	for _, job := range jobs {
		assert.Contains(t, ids, job.ID)
		assert.Equal(t, core.JobCompleted, job.Status)
	}

	limited, err := p.ListJobs(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestClose_WaitsForJobs(t *testing.T) {
	release := make(chan struct{})
	blocking := reembedFunc(func(ctx context.Context, progress func(processed, total int)) error {
		<-release
		progress(1, 1)
		return nil
	})
	p, _, _ := setupTestPipeline(t, WithReembedder(blocking))

	id, err := p.StartJob(context.Background(), core.JobReembed)
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned while a job was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-closed

	job, err := p.jobs.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, job.Status)
}

type reembedFunc func(ctx context.Context, progress func(processed, total int)) error

func (f reembedFunc) Run(ctx context.Context, progress func(processed, total int)) error {
	return f(ctx, progress)
}
