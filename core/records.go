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

package core

import (
	"maps"
	"time"
)

// EntityType categorizes a graph node.
type EntityType string

const (
	EntityProduct   EntityType = "product"
	EntityRisk      EntityType = "risk"
	EntityAction    EntityType = "action"
	EntityOutcome   EntityType = "outcome"
	EntityMilestone EntityType = "milestone"
	EntitySnapshot  EntityType = "snapshot"
	EntityDocument  EntityType = "document"
	EntityTeam      EntityType = "team"
)

// RelationKind labels a directed edge between two entities.
type RelationKind string

const (
	RelHasRisk     RelationKind = "has_risk"
	RelMitigatedBy RelationKind = "mitigated_by"
	RelResultedIn  RelationKind = "resulted_in"
	RelBlocks      RelationKind = "blocks"
	RelDependsOn   RelationKind = "depends_on"
	RelSnapshotOf  RelationKind = "snapshot_of"
	RelEscalatedTo RelationKind = "escalated_to"
	RelOwnedBy     RelationKind = "owned_by"
)

// requiredAttributes lists the attributes each entity type is expected to carry.
// Grounding is computed against these lists.
var requiredAttributes = map[EntityType][]string{
	EntityProduct:   {"owner", "status", "stage"},
	EntityRisk:      {"severity", "status"},
	EntityAction:    {"tier", "status"},
	EntityOutcome:   {"result"},
	EntityMilestone: {"due", "status"},
	EntitySnapshot:  {"score"},
}

var optionalAttributes = map[EntityType][]string{
	EntityProduct:   {"description", "budget", "region"},
	EntityRisk:      {"description", "probability"},
	EntityAction:    {"owner", "rationale"},
	EntityOutcome:   {"impact"},
	EntityMilestone: {"owner"},
	EntitySnapshot:  {"note"},
}

// Entity is a node in the knowledge graph.
type Entity struct {
	ID         EntityID          `json:"id"`
	Type       EntityType        `json:"type"`
	Name       string            `json:"name"`
	Aliases    []string          `json:"aliases,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Clone returns a deep copy of the entity.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.Aliases = append([]string(nil), e.Aliases...)
	out.Attributes = maps.Clone(e.Attributes)
	return &out
}

// FieldCompleteness counts how many of the expected required and optional
// attributes are present on the entity.
func (e *Entity) FieldCompleteness() (reqPresent, reqTotal, optPresent, optTotal int) {
	reqTotal = 1 // name
	if e.Name != "" {
		reqPresent = 1
	}
	for _, k := range requiredAttributes[e.Type] {
		reqTotal++
		if e.Attributes[k] != "" {
			reqPresent++
		}
	}
	for _, k := range optionalAttributes[e.Type] {
		optTotal++
		if e.Attributes[k] != "" {
			optPresent++
		}
	}
	return reqPresent, reqTotal, optPresent, optTotal
}

// Relationship is a directed, typed edge.
type Relationship struct {
	From       EntityID     `json:"from"`
	To         EntityID     `json:"to"`
	Kind       RelationKind `json:"kind"`
	Weight     float64      `json:"weight,omitempty"`
	OccurredAt time.Time    `json:"occurred_at,omitempty"`
}

// Chunk is a piece of unstructured text in the vector index.
type Chunk struct {
	ID        ChunkID           `json:"id"`
	EntityID  EntityID          `json:"entity_id"`
	Text      string            `json:"text"`
	Vector    []float32         `json:"vector,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Tokens    int               `json:"tokens,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// EntityUpdate is a change notification received from an upstream system.
type EntityUpdate struct {
	EntityID      EntityID       `json:"entity_id"`
	Entity        *Entity        `json:"entity,omitempty"`
	Chunks        []Chunk        `json:"chunks,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Deleted       bool           `json:"deleted,omitempty"`
	ReceivedAt    time.Time      `json:"received_at"`
}

// Coalesce folds a newer update for the same entity into u. The newer entity
// body and deletion flag win; chunks and relationships accumulate, with later
// chunks replacing earlier ones that share an id.
func (u EntityUpdate) Coalesce(newer EntityUpdate) EntityUpdate {
	out := u
	if newer.Entity != nil {
		out.Entity = newer.Entity
	}
	out.Deleted = newer.Deleted
	if newer.ReceivedAt.After(out.ReceivedAt) {
		out.ReceivedAt = newer.ReceivedAt
	}

	chunks := make([]Chunk, 0, len(u.Chunks)+len(newer.Chunks))
	seen := make(map[ChunkID]int, len(u.Chunks)+len(newer.Chunks))
	for _, c := range append(append([]Chunk(nil), u.Chunks...), newer.Chunks...) {
		if c.ID == "" {
			c.ID = IDFromContent(string(c.EntityID) + "\x00" + c.Text)
		}
		if i, ok := seen[c.ID]; ok {
			chunks[i] = c
			continue
		}
		seen[c.ID] = len(chunks)
		chunks = append(chunks, c)
	}
	out.Chunks = chunks
	out.Relationships = append(append([]Relationship(nil), u.Relationships...), newer.Relationships...)
	return out
}

// JobKind names a batch ingestion job.
type JobKind string

const (
	JobReembed  JobKind = "reembed"
	JobRebuild  JobKind = "rebuild"
	JobBackfill JobKind = "backfill"
)

// JobStatus is the lifecycle state of an IngestJob.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransition reports whether moving from s to next keeps the lifecycle
// monotonic: pending -> running -> completed|failed. A pending job may also
// fail directly if it could not be started.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobRunning || next == JobFailed
	case JobRunning:
		return next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// IngestJob tracks a batch or backfill job.
type IngestJob struct {
	ID        string    `json:"id"`
	Kind      JobKind   `json:"kind"`
	Status    JobStatus `json:"status"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
