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

// Package backoff retries transient failures according to an explicit policy.
//
// Which failures are retried is part of the policy, not inferred from error
// types: only errors whose core.KindOf is listed in RetryableKinds are tried
// again, and validation errors never are.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/poiesic/portfolioqa/core"
	"github.com/sethvargo/go-retry"
)

// ErrInvalidPolicy is returned by Validate for unusable policies.
var ErrInvalidPolicy = errors.New("invalid retry policy")

// Policy configures retries with capped, jittered exponential backoff.
// MaxAttempts counts the first try. Jitter is a ratio of the delay, so 0.1
// means plus or minus 10%.
type Policy struct {
	MaxAttempts    int              `json:"max_attempts" yaml:"max_attempts"`
	BaseDelay      time.Duration    `json:"base_delay" yaml:"base_delay"`
	BackoffFactor  float64          `json:"backoff_factor" yaml:"backoff_factor"`
	MaxDelay       time.Duration    `json:"max_delay" yaml:"max_delay"`
	Jitter         float64          `json:"jitter" yaml:"jitter"`
	RetryableKinds []core.ErrorKind `json:"retryable_kinds" yaml:"retryable_kinds"`
}

// DefaultPolicy returns 3 attempts, 1s base delay doubling up to 10s with
// 10% jitter, retrying unavailable upstreams and failed retrievals.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		BackoffFactor:  2,
		MaxDelay:       10 * time.Second,
		Jitter:         0.1,
		RetryableKinds: []core.ErrorKind{core.KindUpstreamUnavailable, core.KindRetrievalFailure},
	}
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts <= 0:
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidPolicy, p.MaxAttempts)
	case p.BaseDelay < 0:
		return fmt.Errorf("%w: base delay cannot be negative", ErrInvalidPolicy)
	case p.BackoffFactor < 1:
		return fmt.Errorf("%w: backoff factor must be at least 1, got %v", ErrInvalidPolicy, p.BackoffFactor)
	case p.MaxDelay < p.BaseDelay:
		return fmt.Errorf("%w: max delay %s is below base delay %s", ErrInvalidPolicy, p.MaxDelay, p.BaseDelay)
	case p.Jitter < 0 || p.Jitter > 1:
		return fmt.Errorf("%w: jitter must be in [0,1], got %v", ErrInvalidPolicy, p.Jitter)
	}
	return nil
}

// Retryable reports whether the policy retries err.
func (p Policy) Retryable(err error) bool {
	if err == nil || errors.Is(err, core.ErrValidation) {
		return false
	}
	return slices.Contains(p.RetryableKinds, core.KindOf(err))
}

// Delay returns the un-jittered wait before retry number n, counting from 0.
func (p Policy) Delay(n int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.BackoffFactor, float64(n))
	if d >= float64(p.MaxDelay) || math.IsInf(d, 1) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

func (p Policy) backoff() retry.Backoff {
	var n int
	var b retry.Backoff = retry.BackoffFunc(func() (time.Duration, bool) {
		d := p.Delay(n)
		n++
		return d, false
	})
	if pct := uint64(math.Round(p.Jitter * 100)); pct > 0 {
		b = retry.WithJitterPercent(pct, b)
	}
	b = retry.WithCappedDuration(p.MaxDelay, b)
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// Do runs op until it succeeds, fails permanently, runs out of attempts or
// ctx is done. The error of the last attempt is returned unchanged.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return p.DoWithLogger(ctx, nil, op)
}

// DoWithLogger is Do with retries logged at debug level.
func (p Policy) DoWithLogger(ctx context.Context, logger *slog.Logger, op func(ctx context.Context) error) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}

	attempt := 0
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !p.Retryable(err) {
			return err
		}
		logger.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", p.MaxAttempts, "error", err)
		return retry.RetryableError(err)
	})
}
