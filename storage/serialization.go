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

package storage

import (
	"fmt"

	"github.com/poiesic/portfolioqa/core"
)

// decode runs a generated MUS unmarshaller and rejects empty or trailing input.
func decode[T any](kind string, data []byte, unmarshal func([]byte) (T, int, error)) (*T, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: empty value", ErrSerializationFailed, kind)
	}
	v, n, err := unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSerializationFailed, kind, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", ErrSerializationFailed, kind, len(data)-n)
	}
	return &v, nil
}

// MarshalEntity serializes an Entity to bytes.
func MarshalEntity(entity *core.Entity) []byte {
	buf := make([]byte, core.EntityMUS.Size(*entity))
	core.EntityMUS.Marshal(*entity, buf)
	return buf
}

// UnmarshalEntity deserializes an Entity from bytes.
func UnmarshalEntity(data []byte) (*core.Entity, error) {
	return decode("entity", data, core.EntityMUS.Unmarshal)
}

// MarshalRelationship serializes a Relationship to bytes.
func MarshalRelationship(rel *core.Relationship) []byte {
	buf := make([]byte, core.RelationshipMUS.Size(*rel))
	core.RelationshipMUS.Marshal(*rel, buf)
	return buf
}

// UnmarshalRelationship deserializes a Relationship from bytes.
func UnmarshalRelationship(data []byte) (*core.Relationship, error) {
	return decode("relationship", data, core.RelationshipMUS.Unmarshal)
}

// MarshalChunk serializes a Chunk, including its embedding, to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, core.ChunkMUS.Size(*chunk))
	core.ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	return decode("chunk", data, core.ChunkMUS.Unmarshal)
}

// MarshalJob serializes an IngestJob to bytes.
func MarshalJob(job *core.IngestJob) []byte {
	buf := make([]byte, core.IngestJobMUS.Size(*job))
	core.IngestJobMUS.Marshal(*job, buf)
	return buf
}

// UnmarshalJob deserializes an IngestJob from bytes.
func UnmarshalJob(data []byte) (*core.IngestJob, error) {
	return decode("job", data, core.IngestJobMUS.Unmarshal)
}
