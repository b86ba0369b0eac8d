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
	"fmt"
	"strings"
	"time"
)

// ValidateQuery validates a Query according to domain rules.
//
// Validation rules:
//   - Text must contain at least one non-space character
//   - Options.TopK must not be negative (0 selects the retriever default)
//   - Options.Deadline must not be negative
func ValidateQuery(q *Query) error {
	if q == nil {
		return fmt.Errorf("%w: query is nil", ErrInvalidQuery)
	}
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, ErrEmptyQueryText)
	}
	if q.Options.TopK < 0 {
		return fmt.Errorf("%w: top_k %d must not be negative", ErrInvalidQuery, q.Options.TopK)
	}
	if q.Options.Deadline < 0 {
		return fmt.Errorf("%w: deadline %s must not be negative", ErrInvalidQuery, q.Options.Deadline)
	}
	return nil
}

// ValidateEntity validates an Entity according to domain rules.
//
// Validation rules:
//   - ID, Name and Type must not be empty
//   - UpdatedAt must not be in the future
//
// NOT validated:
//   - Attributes (incomplete entities lower grounding, they are not rejected)
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}
	if entity.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyEntityID)
	}
	if strings.TrimSpace(entity.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyEntityName)
	}
	if entity.Type == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyEntityType)
	}
	if !IsValidTimestamp(entity.UpdatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrInvalidTimestamp)
	}
	return nil
}

// ValidateRelationship validates a Relationship according to domain rules.
func ValidateRelationship(rel *Relationship) error {
	if rel == nil {
		return fmt.Errorf("%w: relationship is nil", ErrInvalidRelationship)
	}
	if rel.From == "" || rel.To == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrEmptyEntityID)
	}
	if rel.From == rel.To {
		return fmt.Errorf("%w: %w", ErrInvalidRelationship, ErrSelfRelationship)
	}
	if rel.Kind == "" {
		return fmt.Errorf("%w: kind cannot be empty", ErrInvalidRelationship)
	}
	return nil
}

// ValidateChunk validates a Chunk according to domain rules.
//
// NOT validated (populated by ingestion):
//   - Vector (can be empty until embedded)
//   - ID (derived from content when empty)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.EntityID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyEntityID)
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	return nil
}

// ValidateUpdate validates a change notification and everything it carries.
func ValidateUpdate(update *EntityUpdate) error {
	if update == nil {
		return fmt.Errorf("%w: update is nil", ErrInvalidUpdate)
	}
	if update.EntityID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidUpdate, ErrEmptyEntityID)
	}
	if update.Entity != nil {
		if update.Entity.ID != update.EntityID {
			return fmt.Errorf("%w: entity id %q does not match update %q", ErrInvalidUpdate, update.Entity.ID, update.EntityID)
		}
		if err := ValidateEntity(update.Entity); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidUpdate, err)
		}
	}
	for i := range update.Chunks {
		if err := ValidateChunk(&update.Chunks[i]); err != nil {
			return fmt.Errorf("%w: chunk %d: %w", ErrInvalidUpdate, i, err)
		}
	}
	for i := range update.Relationships {
		if err := ValidateRelationship(&update.Relationships[i]); err != nil {
			return fmt.Errorf("%w: relationship %d: %w", ErrInvalidUpdate, i, err)
		}
	}
	return nil
}

// ValidateJobKind checks that the job kind is supported.
func ValidateJobKind(kind JobKind) error {
	switch kind {
	case JobReembed, JobRebuild, JobBackfill:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownJobKind, kind)
}

// ValidateJobTransition checks that a status change keeps the job lifecycle monotonic.
func ValidateJobTransition(from, to JobStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, from, to)
	}
	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
// A small allowance absorbs clock skew between upstream systems.
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now().Add(time.Minute))
}
