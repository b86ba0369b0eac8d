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

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func TestEntityRepository_PutAndGet(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	atlas := &core.Entity{ID: "p1", Type: core.EntityProduct, Name: "Atlas", Aliases: []string{"Project A"}}
	require.NoError(t, repos.Graph.PutEntities(ctx, atlas))
	assert.False(t, atlas.CreatedAt.IsZero())

	got, err := repos.Graph.GetEntity(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Atlas", got.Name)

	byName, err := repos.Graph.FindByName(ctx, "  ATLAS ")
	require.NoError(t, err)
	assert.Equal(t, core.EntityID("p1"), byName.ID)

	byAlias, err := repos.Graph.FindByAlias(ctx, "project a")
	require.NoError(t, err)
	assert.Equal(t, core.EntityID("p1"), byAlias.ID)

	_, err = repos.Graph.GetEntity(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEntityRepository_ReplaceMovesIndexes(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	created := time.Now().Add(-48 * time.Hour).UTC()
	require.NoError(t, repos.Graph.PutEntities(ctx, &core.Entity{
		ID: "p1", Type: core.EntityProduct, Name: "Atlas", Aliases: []string{"A1"}, CreatedAt: created,
	}))
	require.NoError(t, repos.Graph.PutEntities(ctx, &core.Entity{
		ID: "p1", Type: core.EntityProduct, Name: "Atlas Prime",
	}))

	_, err := repos.Graph.FindByName(ctx, "Atlas")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repos.Graph.FindByAlias(ctx, "A1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := repos.Graph.FindByName(ctx, "atlas prime")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created), "CreatedAt preserved across replace")
}

func TestEntityRepository_ListAndDelete(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Graph.PutEntities(ctx,
		&core.Entity{ID: "p1", Type: core.EntityProduct, Name: "Atlas"},
		&core.Entity{ID: "r1", Type: core.EntityRisk, Name: "Vendor delay"},
		&core.Entity{ID: "p2", Type: core.EntityProduct, Name: "Borealis"},
	))

	all, err := repos.Graph.ListEntities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, core.EntityID("p1"), all[0].ID)

	products, err := repos.Graph.ListEntities(ctx, core.EntityProduct)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	require.NoError(t, repos.Graph.DeleteEntities(ctx, "p2"))
	_, err = repos.Graph.FindByName(ctx, "Borealis")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, repos.Graph.DeleteEntities(ctx, "p2"), storage.ErrNotFound)
}

func TestEntityRepository_RejectsInvalid(t *testing.T) {
	repos := newTestRepos(t)
	err := repos.Graph.PutEntities(context.Background(), &core.Entity{ID: "p1", Type: core.EntityProduct})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestRelationshipRepository_Edges(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Graph.AddRelationships(ctx,
		&core.Relationship{From: "p1", To: "r1", Kind: core.RelHasRisk},
		&core.Relationship{From: "p1", To: "r2", Kind: core.RelHasRisk},
		&core.Relationship{From: "p1", To: "m1", Kind: core.RelDependsOn},
		&core.Relationship{From: "r1", To: "a1", Kind: core.RelMitigatedBy},
		&core.Relationship{From: "p10", To: "r9", Kind: core.RelHasRisk},
	))

	out, err := repos.Graph.Outgoing(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, out, 3, "p10 edges must not leak into p1 scan")
	assert.Equal(t, core.RelDependsOn, out[0].Kind)

	risks, err := repos.Graph.Outgoing(ctx, "p1", core.RelHasRisk)
	require.NoError(t, err)
	require.Len(t, risks, 2)
	assert.Equal(t, core.EntityID("r1"), risks[0].To)
	assert.Equal(t, core.EntityID("r2"), risks[1].To)

	in, err := repos.Graph.Incoming(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, core.EntityID("p1"), in[0].From)

	require.NoError(t, repos.Graph.DeleteRelationshipsFor(ctx, "r1"))
	out, err = repos.Graph.Outgoing(ctx, "p1", core.RelHasRisk)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	out, err = repos.Graph.Outgoing(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGraphStore_RebuildDegrees(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Graph.AddRelationships(ctx,
		&core.Relationship{From: "p1", To: "r1", Kind: core.RelHasRisk},
		&core.Relationship{From: "p1", To: "r2", Kind: core.RelHasRisk},
		&core.Relationship{From: "r1", To: "a1", Kind: core.RelMitigatedBy},
	))

	d, err := repos.Graph.Degree(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, d, "degree index empty before rebuild")

	require.NoError(t, repos.Graph.Rebuild(ctx))

	for id, want := range map[core.EntityID]int{"p1": 2, "r1": 2, "r2": 1, "a1": 1} {
		got, err := repos.Graph.Degree(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "degree of %s", id)
	}

	require.NoError(t, repos.Graph.DeleteRelationshipsFor(ctx, "r2"))
	require.NoError(t, repos.Graph.Rebuild(ctx))

	d, err = repos.Graph.Degree(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, 0, d, "stale degree removed")
}

func TestGraphStore_DeleteEntity(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Graph.PutEntities(ctx,
		&core.Entity{ID: "p1", Type: core.EntityProduct, Name: "Atlas"},
		&core.Entity{ID: "r1", Type: core.EntityRisk, Name: "Vendor delay"},
	))
	require.NoError(t, repos.Graph.AddRelationships(ctx, &core.Relationship{From: "p1", To: "r1", Kind: core.RelHasRisk}))

	require.NoError(t, repos.Graph.DeleteEntity(ctx, "r1"))
	require.NoError(t, repos.Graph.DeleteEntity(ctx, "r1"), "deleting twice is fine")

	out, err := repos.Graph.Outgoing(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, out)
}
