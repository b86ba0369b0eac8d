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

package openai

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// When embeddings and generation live on the same host, one client serves both.
type Provider struct {
	embedder  *Embedder
	generator *Generator
	shared    bool
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewProvider validates the config and connects the embedding and generation
// services it names. No request is made until the first call.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		shared: config.EmbeddingHost == config.GeneratorHost,
		logger: slog.Default().With("component", "ai-provider"),
	}
	if p.shared {
		client, err := newClient(config.GeneratorHost, config,
			openai.WithModel(config.GeneratorModel),
			openai.WithEmbeddingModel(config.EmbeddingModel),
		)
		if err != nil {
			return nil, err
		}
		if p.embedder, err = wrapEmbedder(client, config); err != nil {
			return nil, err
		}
		p.generator = wrapGenerator(client, config)
	} else {
		var err error
		if p.embedder, err = newEmbedder(config); err != nil {
			return nil, err
		}
		if p.generator, err = newGenerator(config); err != nil {
			return nil, err
		}
	}

	p.logger.Info("AI services configured",
		"embedding_host", config.EmbeddingHost,
		"embedding_model", config.EmbeddingModel,
		"generator_host", config.GeneratorHost,
		"generator_model", config.GeneratorModel,
		"shared_client", p.shared)
	return p, nil
}

// newClient opens an OpenAI-compatible client on host with the config's token.
// Local servers accept the "none" token that Normalize fills in.
func newClient(host string, config *ai.Config, opts ...openai.Option) (*openai.LLM, error) {
	opts = append([]openai.Option{
		openai.WithBaseURL(host),
		openai.WithToken(config.Token),
	}, opts...)
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai client for %s: %w", host, err)
	}
	return client, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the text generation service.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close releases resources held by the provider. The langchaingo clients hold
// no connections of their own, so this only records the shutdown once.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Debug("closing AI provider")
	})
	return nil
}
