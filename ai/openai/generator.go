package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client    llms.Model
	maxTokens int
	logger    *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newClient(config.GeneratorHost, config, openai.WithModel(config.GeneratorModel))
	if err != nil {
		return nil, err
	}
	return wrapGenerator(client, config), nil
}

func wrapGenerator(client llms.Model, config *ai.Config) *Generator {
	return &Generator{
		client:    client,
		maxTokens: config.MaxTokens,
		logger:    slog.Default().With("component", "generator", "model", config.GeneratorModel),
	}
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate completes prompt with temperature 0 so repeated questions phrase the same way.
// A maxTokens of 0 falls back to the configured default.
func (g *Generator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	opts := []llms.CallOption{llms.WithTemperature(0.0)}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	g.logger.Debug("generating completion", "prompt_length", len(prompt), "max_tokens", maxTokens)
	text, err := llms.GenerateFromSinglePrompt(ctx, g.client, prompt, opts...)
	if err != nil {
		g.logger.Error("failed to generate completion", "err", err)
		return "", err
	}
	return strings.TrimSpace(text), nil
}
