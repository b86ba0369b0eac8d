package portfolioqa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/portfolioqa/ai/mock"
	"github.com/poiesic/portfolioqa/cache"
	"github.com/poiesic/portfolioqa/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	base := []EngineOption{WithInMemory(), WithProvider(mock.NewMockProvider()), WithDebounceWindow(time.Hour)}
	e, err := OpenEngine("", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func portfolioUpdates() []core.EntityUpdate {
	return []core.EntityUpdate{
		{
			EntityID: "p1",
			Entity: &core.Entity{
				ID: "p1", Type: core.EntityProduct, Name: "Atlas",
				Attributes: map[string]string{"status": "amber", "owner": "platform"},
			},
			Chunks: []core.Chunk{{EntityID: "p1", Text: "Atlas launch is blocked by the vendor API delay."}},
		},
		{
			EntityID: "r1",
			Entity:   &core.Entity{ID: "r1", Type: core.EntityRisk, Name: "Vendor API delay"},
			Chunks:   []core.Chunk{{EntityID: "r1", Text: "The vendor API slipped two sprints and blocks Atlas."}},
			Relationships: []core.Relationship{
				{From: "p1", To: "r1", Kind: core.RelHasRisk},
				{From: "r1", To: "p1", Kind: core.RelBlocks},
			},
		},
	}
}

func seedEngine(t *testing.T, e *Engine) {
	t.Helper()
	for _, update := range portfolioUpdates() {
		require.NoError(t, e.Pipeline().Notify(update))
	}
	require.NoError(t, e.Pipeline().Flush(context.Background()))
}

func TestOpenEngine(t *testing.T) {
	t.Run("create on disk", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "test_db")
		e, err := OpenEngine(dir, WithProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, e)

		assert.NotNil(t, e.Orchestrator())
		assert.NotNil(t, e.Pipeline())
		assert.NotNil(t, e.Repositories())
		assert.NotNil(t, e.Metrics().Registry())
		assert.NoError(t, e.Close())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		e, err := OpenEngine(tmpFile, WithProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, e)
	})

	t.Run("invalid result cache", func(t *testing.T) {
		e, err := OpenEngine("", WithInMemory(), WithProvider(mock.NewMockProvider()), WithResultCache(0, time.Minute))
		assert.Error(t, err)
		assert.Nil(t, e)
	})
}

func TestEngine_IngestAndQuery(t *testing.T) {
	mr := miniredis.RunT(t)
	l2, err := cache.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "pqa:")
	require.NoError(t, err)

	e := openTestEngine(t, WithL2Cache(l2))
	seedEngine(t, e)
	ctx := context.Background()

	entities, err := e.Repositories().Graph.ListEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, entities, 2)
	degree, err := e.Repositories().Graph.Degree(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, degree)

	result, err := e.Orchestrator().Query(ctx, core.Query{Text: "What is blocking Atlas?"})
	require.NoError(t, err)
	assert.Equal(t, core.IntentBlockers, result.Intent.Label)
	assert.NotEmpty(t, result.Answer)
	assert.NotEmpty(t, mr.Keys(), "query embedding cached in redis")
}

func TestEngine_Server(t *testing.T) {
	e := openTestEngine(t)
	seedEngine(t, e)

	srv, err := e.NewServer()
	require.NoError(t, err)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"text":"What is blocking Atlas?"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"answer"`)

	req = httptest.NewRequest(http.MethodPost, "/v1/entities/updates",
		strings.NewReader(`{"entity_id":"p1","deleted":true}`))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, 1, e.Pipeline().Pending())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "portfolioqa_queries_total")
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestEngine_RebuildJob(t *testing.T) {
	e := openTestEngine(t)
	seedEngine(t, e)
	ctx := context.Background()

	id, err := e.Pipeline().StartJob(ctx, core.JobRebuild)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := e.Pipeline().JobStatus(ctx, id)
		return err == nil && job.Status == core.JobCompleted
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEngine_ReembedJob(t *testing.T) {
	e := openTestEngine(t)
	seedEngine(t, e)
	ctx := context.Background()

	id, err := e.Pipeline().StartJob(ctx, core.JobReembed)
	require.NoError(t, err)

	var job core.IngestJob
	require.Eventually(t, func() bool {
		job, err = e.Pipeline().JobStatus(ctx, id)
		return err == nil && job.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, core.JobCompleted, job.Status, job.Error)
	assert.Equal(t, 2, job.Total)
	assert.Equal(t, 2, job.Processed)
}
