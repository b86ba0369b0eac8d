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

// Package storage provides the storage abstraction layer for the query engine.
//
// This package defines repository interfaces that decouple storage implementation
// from retrieval and ingestion logic:
//
//   - EntityRepository: knowledge graph nodes with name and alias lookup
//   - RelationshipRepository: typed edges plus a degree index
//   - ChunkRepository: embedded text chunks and vector similarity search
//   - JobRepository: ingestion job state
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return concrete types that satisfy
// these interfaces; consumers accept the interfaces.
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	entities, err := badger.NewEntityRepository(backend)
//
// # Serialization
//
// Values are stored as JSON produced by the Marshal/Unmarshal helpers in this
// package. Failures wrap ErrSerializationFailed.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
