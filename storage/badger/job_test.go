package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRepository_Lifecycle(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	job := &core.IngestJob{ID: "j1", Kind: core.JobReembed}
	require.NoError(t, repos.Jobs.CreateJob(ctx, job))
	assert.Equal(t, core.JobPending, job.Status)

	assert.ErrorIs(t, repos.Jobs.CreateJob(ctx, &core.IngestJob{ID: "j1", Kind: core.JobReembed}), storage.ErrDuplicateKey)

	job.Status = core.JobRunning
	job.Total = 10
	require.NoError(t, repos.Jobs.UpdateJob(ctx, job))

	job.Processed = 5
	require.NoError(t, repos.Jobs.UpdateJob(ctx, job), "progress without status change")

	job.Status = core.JobCompleted
	job.Processed = 10
	require.NoError(t, repos.Jobs.UpdateJob(ctx, job))

	got, err := repos.Jobs.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, got.Status)
	assert.Equal(t, 10, got.Processed)

	got.Status = core.JobFailed
	assert.ErrorIs(t, repos.Jobs.UpdateJob(ctx, got), storage.ErrImmutableRecord)
}

func TestJobRepository_RejectsBackwardTransition(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	job := &core.IngestJob{ID: "j1", Kind: core.JobRebuild}
	require.NoError(t, repos.Jobs.CreateJob(ctx, job))

	job.Status = core.JobCompleted
	assert.ErrorIs(t, repos.Jobs.UpdateJob(ctx, job), core.ErrInvalidJobTransition)

	assert.ErrorIs(t, repos.Jobs.UpdateJob(ctx, &core.IngestJob{ID: "missing", Status: core.JobRunning}), storage.ErrNotFound)
	assert.ErrorIs(t, repos.Jobs.CreateJob(ctx, &core.IngestJob{ID: "j2", Kind: "compact"}), core.ErrUnknownJobKind)
}

func TestJobRepository_ListNewestFirst(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repos.Jobs.CreateJob(ctx, &core.IngestJob{
			ID: id, Kind: core.JobBackfill, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	jobs, err := repos.Jobs.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "a", jobs[2].ID)

	limited, err := repos.Jobs.ListJobs(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
