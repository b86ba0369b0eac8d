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

package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/portfolioqa/ai"
	"github.com/poiesic/portfolioqa/core"
)

const (
	// DefaultThreshold is the minimum rule confidence that skips the model.
	DefaultThreshold = 0.6

	// DefaultFallbackTimeout bounds the model classification call.
	DefaultFallbackTimeout = 100 * time.Millisecond

	fallbackConfidence = 0.5
	fallbackMaxTokens  = 32
)

// ErrInvalidThreshold is returned when a threshold falls outside [0,1].
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 1")

// Classifier assigns an intent and route to a query.
// A Classifier is safe for concurrent use.
type Classifier struct {
	generator       ai.Generator
	threshold       float64
	fallbackTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier) error

// WithGenerator enables the model fallback for low-confidence questions.
// Without a generator, low-confidence questions get the default hybrid intent.
func WithGenerator(generator ai.Generator) Option {
	return func(c *Classifier) error {
		c.generator = generator
		return nil
	}
}

// WithThreshold sets the rule confidence below which the model is consulted.
// Default is 0.6.
func WithThreshold(threshold float64) Option {
	return func(c *Classifier) error {
		if threshold < 0 || threshold > 1 {
			return ErrInvalidThreshold
		}
		c.threshold = threshold
		return nil
	}
}

// WithFallbackTimeout bounds the model call.
// Default is 100ms.
func WithFallbackTimeout(timeout time.Duration) Option {
	return func(c *Classifier) error {
		if timeout <= 0 {
			return fmt.Errorf("fallback timeout must be positive, got %s", timeout)
		}
		c.fallbackTimeout = timeout
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewClassifier creates a classifier.
func NewClassifier(opts ...Option) (*Classifier, error) {
	c := &Classifier{
		threshold:       DefaultThreshold,
		fallbackTimeout: DefaultFallbackTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "intent")
	return c, nil
}

// Classify returns the intent for a question. It never fails; see the package
// documentation for the fallback behavior.
func (c *Classifier) Classify(ctx context.Context, text string, attrs map[string]any) core.Intent {
	intent, ok := applyRules(text, attrs)
	if ok && intent.Confidence >= c.threshold {
		return intent
	}

	if c.generator == nil {
		c.logger.Debug("no rule matched and no generator configured", "query", text)
		return defaultIntent()
	}

	fallback, err := c.classifyWithModel(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = core.NewQueryError(core.KindClassificationTimeout, "intent fallback timed out", err)
		}
		c.logger.Warn("intent fallback failed, using default route", "kind", core.KindOf(err), "err", err)
		return defaultIntent()
	}

	// A matched rule that fell under the threshold still beats a less
	// confident model answer.
	if ok && intent.Confidence >= fallback.Confidence {
		return intent
	}
	return fallback
}

func (c *Classifier) classifyWithModel(ctx context.Context, text string) (core.Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fallbackTimeout)
	defer cancel()

	reply, err := c.generator.Generate(ctx, ai.IntentPrompt(text), fallbackMaxTokens)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.Intent{}, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return core.Intent{}, err
	}

	var parsed ai.IntentReply
	if err := ai.DecodeJSONResponse(reply, &parsed); err != nil {
		return core.Intent{}, err
	}

	label := core.IntentLabel(parsed.Label)
	if !slices.Contains(ai.IntentLabels, parsed.Label) {
		return core.Intent{}, fmt.Errorf("unknown intent label %q", parsed.Label)
	}
	confidence := min(max(parsed.Confidence, 0), 1)

	c.logger.Debug("intent classified by model", "label", label, "confidence", confidence)
	return core.Intent{Label: label, Confidence: confidence, Route: RouteFor(label)}, nil
}

func defaultIntent() core.Intent {
	return core.Intent{Label: core.IntentHybrid, Confidence: fallbackConfidence, Route: core.RouteBoth}
}
