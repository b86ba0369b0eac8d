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

package badger

// Repositories bundles every repository opened over one backend.
type Repositories struct {
	Backend *Backend
	Graph   *GraphStore
	Chunks  *ChunkRepository
	Jobs    *JobRepository
}

// Close closes the repositories and then the backend.
func (r *Repositories) Close() error {
	r.Graph.Close()
	r.Chunks.Close()
	r.Jobs.Close()
	return r.Backend.Close()
}

// OpenRepositories opens every repository over a backend at path.
func OpenRepositories(path string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	graph, err := NewGraphStore(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	chunks, err := NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	jobs, err := NewJobRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Backend: backend,
		Graph:   graph,
		Chunks:  chunks,
		Jobs:    jobs,
	}, nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	return OpenRepositories("", true)
}
