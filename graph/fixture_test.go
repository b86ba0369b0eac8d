package graph

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/storage/badger"
	"github.com/stretchr/testify/require"
)

var _ Store = (*badger.GraphStore)(nil)

var (
	day0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	day  = 24 * time.Hour
)

// seedPortfolio stores a small portfolio:
//
//	Product X --has_risk--> Vendor API delay --mitigated_by--> Escalate to vendor exec --resulted_in--> API delivered
//	Atlas --depends_on--> Product X
//	Security review --blocks--> Atlas
//	three snapshots of Product X, 30 days apart, scores 0.5 / 0.6 / 0.7
func seedPortfolio(t *testing.T) *badger.Repositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	ctx := context.Background()
	entities := []*core.Entity{
		{ID: "product-x", Type: core.EntityProduct, Name: "Product X", Aliases: []string{"PX"},
			Attributes: map[string]string{"owner": "dana", "status": "at_risk", "stage": "beta"}, UpdatedAt: day0},
		{ID: "risk-1", Type: core.EntityRisk, Name: "Vendor API delay",
			Attributes: map[string]string{"severity": "high", "status": "closed"}, UpdatedAt: day0},
		{ID: "action-1", Type: core.EntityAction, Name: "Escalate to vendor exec",
			Attributes: map[string]string{"tier": "tier-1", "status": "done", "action_type": "escalation"}, UpdatedAt: day0},
		{ID: "outcome-1", Type: core.EntityOutcome, Name: "API delivered",
			Attributes: map[string]string{"result": "resolved"}, UpdatedAt: day0},
		{ID: "atlas", Type: core.EntityProduct, Name: "Atlas", UpdatedAt: day0},
		{ID: "security-review", Type: core.EntityMilestone, Name: "Security review", UpdatedAt: day0},
	}
	for i, score := range []string{"0.5", "0.6", "0.7"} {
		at := day0.Add(time.Duration(i*30) * day)
		entities = append(entities, &core.Entity{
			ID:         core.EntityID("snap-" + score),
			Type:       core.EntitySnapshot,
			Name:       "Product X snapshot " + score,
			Attributes: map[string]string{"score": score, "at": at.Format(time.RFC3339)},
			UpdatedAt:  day0,
		})
	}
	require.NoError(t, repos.Graph.PutEntities(ctx, entities...))

	require.NoError(t, repos.Graph.AddRelationships(ctx,
		&core.Relationship{From: "product-x", To: "risk-1", Kind: core.RelHasRisk},
		&core.Relationship{From: "risk-1", To: "action-1", Kind: core.RelMitigatedBy},
		&core.Relationship{From: "action-1", To: "outcome-1", Kind: core.RelResultedIn},
		&core.Relationship{From: "atlas", To: "product-x", Kind: core.RelDependsOn},
		&core.Relationship{From: "security-review", To: "atlas", Kind: core.RelBlocks},
		&core.Relationship{From: "snap-0.5", To: "product-x", Kind: core.RelSnapshotOf},
		&core.Relationship{From: "snap-0.6", To: "product-x", Kind: core.RelSnapshotOf},
		&core.Relationship{From: "snap-0.7", To: "product-x", Kind: core.RelSnapshotOf},
	))
	return repos
}

func newTestRetriever(t *testing.T, store Store, opts ...Option) *Retriever {
	t.Helper()
	r, err := NewRetriever(store, opts...)
	require.NoError(t, err)
	return r
}
