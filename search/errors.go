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

package search

import (
	"errors"
	"fmt"

	"github.com/poiesic/portfolioqa/core"
)

var (
	// ErrIndexRequired is returned when a chunk index is not provided.
	ErrIndexRequired = errors.New("chunk index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidTopK is returned when a request asks for a non-positive number of candidates.
	ErrInvalidTopK = fmt.Errorf("%w: top_k must be positive", core.ErrValidation)

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid retriever option")
)
