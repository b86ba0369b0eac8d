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

// Package ai provides abstractions for AI services used by the query engine.
//
// This package defines interfaces for the two model-backed operations the
// engine depends on: text embeddings for the vector retrieval path and text
// generation for the low-confidence intent fallback and final answer phrasing.
// Domain packages depend on these abstractions rather than on a vendor SDK.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: Completes a prompt under a token limit
//   - AIProvider: Aggregates AI services for convenient initialization
//
// Prompt construction (IntentPrompt, AnswerPrompt) and tolerant decoding of
// model JSON (DecodeJSONResponse) live here as well, so every Generator
// implementation is interchangeable.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Test utility constructors (mock.NewMockEmbedder, mock.NewMockGenerator)
// return CONCRETE types to enable call-count assertions and behavior injection.
//
// # Usage Example
//
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Atlas launch slipped")
//	reply, err := provider.Generator().Generate(ctx, ai.IntentPrompt(question), 64)
//
//	var intent ai.IntentReply
//	err = ai.DecodeJSONResponse(reply, &intent)
package ai
