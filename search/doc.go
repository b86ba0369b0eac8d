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

// Package search implements the vector retrieval path.
//
// The Retriever type answers a question from unstructured text in stages:
//   - Embed the question, consulting an optional byte cache first
//   - Search the chunk index for the nearest candidates
//   - Rerank candidates by similarity, recency and filter match
//   - Assemble a token-bounded context from the best chunks
//
// Ordering is deterministic for identical inputs and index state; ties are
// broken by chunk ID ascending. An empty candidate set is a valid, empty
// result rather than an error.
package search
