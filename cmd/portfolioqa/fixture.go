package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/poiesic/portfolioqa/core"
	"github.com/poiesic/portfolioqa/ingestion"
	"gopkg.in/yaml.v3"
)

// fixture is a YAML portfolio description:
//
//	entities:
//	  - id: p1
//	    type: product
//	    name: Atlas
//	    attributes: {owner: platform, status: amber, stage: beta}
//	    notes:
//	      - Atlas launch slipped after the vendor API delay.
//	relationships:
//	  - {from: p1, to: r1, kind: has_risk}
type fixture struct {
	Entities      []fixtureEntity       `yaml:"entities"`
	Relationships []fixtureRelationship `yaml:"relationships"`
}

type fixtureEntity struct {
	ID         string            `yaml:"id"`
	Type       string            `yaml:"type"`
	Name       string            `yaml:"name"`
	Aliases    []string          `yaml:"aliases"`
	Attributes map[string]string `yaml:"attributes"`
	Notes      []string          `yaml:"notes"`
	UpdatedAt  time.Time         `yaml:"updated_at"`
}

type fixtureRelationship struct {
	From       string    `yaml:"from"`
	To         string    `yaml:"to"`
	Kind       string    `yaml:"kind"`
	Weight     float64   `yaml:"weight"`
	OccurredAt time.Time `yaml:"occurred_at"`
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// updates converts the fixture into one update per entity. Each relationship
// travels with the update of its source entity, so every source must be
// declared.
func (f *fixture) updates() ([]core.EntityUpdate, error) {
	out := make([]core.EntityUpdate, 0, len(f.Entities))
	index := make(map[core.EntityID]int, len(f.Entities))

	for _, e := range f.Entities {
		id := core.EntityID(e.ID)
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("fixture: duplicate entity %q", e.ID)
		}
		update := core.EntityUpdate{
			EntityID: id,
			Entity: &core.Entity{
				ID:         id,
				Type:       core.EntityType(e.Type),
				Name:       e.Name,
				Aliases:    e.Aliases,
				Attributes: e.Attributes,
				UpdatedAt:  e.UpdatedAt,
			},
		}
		for _, note := range e.Notes {
			update.Chunks = append(update.Chunks, core.Chunk{
				EntityID:  id,
				Text:      note,
				UpdatedAt: e.UpdatedAt,
			})
		}
		index[id] = len(out)
		out = append(out, update)
	}

	for _, r := range f.Relationships {
		i, ok := index[core.EntityID(r.From)]
		if !ok {
			return nil, fmt.Errorf("fixture: relationship from undeclared entity %q", r.From)
		}
		out[i].Relationships = append(out[i].Relationships, core.Relationship{
			From:       core.EntityID(r.From),
			To:         core.EntityID(r.To),
			Kind:       core.RelationKind(r.Kind),
			Weight:     r.Weight,
			OccurredAt: r.OccurredAt,
		})
	}

	for i := range out {
		if err := core.ValidateUpdate(&out[i]); err != nil {
			return nil, fmt.Errorf("fixture entity %s: %w", out[i].EntityID, err)
		}
	}
	return out, nil
}

// fixtureSource replays a fixture file for the backfill job. The file is
// read when the job runs.
type fixtureSource string

var _ ingestion.BackfillSource = fixtureSource("")

func (s fixtureSource) Updates(ctx context.Context) ([]core.EntityUpdate, error) {
	f, err := loadFixture(string(s))
	if err != nil {
		return nil, err
	}
	return f.updates()
}
