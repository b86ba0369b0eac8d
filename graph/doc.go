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

// Package graph implements the knowledge graph retrieval path.
//
// A Retriever resolves entity mentions in a question to stable entity IDs,
// walks relationships from the resolved entity following the question's
// intent, and assembles what it found into a partial result:
//
//   - causal: risk -> action -> outcome chains and the actions they suggest
//   - temporal: time-ordered snapshots and a linear forecast
//   - pattern: relationship kinds aggregated across related instances
//   - neighborhood: the entity's immediate surroundings
//
// Traversal is bounded in depth and in nodes visited; hitting either bound
// truncates the result instead of failing it.
//
// Reads go through a Guard. Any number of reads may run at once, but a
// rebuild of derived graph structure excludes reads and other rebuilds.
package graph
