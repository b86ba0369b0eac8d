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

package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/poiesic/portfolioqa/core"
)

const (
	// DefaultSize bounds the number of cached answers.
	DefaultSize = 1024

	// DefaultTTL is how long an answer stays fresh.
	DefaultTTL = 5 * time.Minute
)

// ResultCache is the in-process answer cache. It is TTL-bounded and
// LRU-bounded, and keeps a reverse index from entity to keys so ingestion
// can evict every answer that cites an updated entity.
//
// One mutex guards the LRU and the reverse index together.
type ResultCache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, *core.CacheEntry]
	byEntity map[core.EntityID]map[string]struct{}

	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// ResultCacheOption configures a ResultCache.
type ResultCacheOption func(*ResultCache)

// WithClock overrides the time source used for TTL checks.
func WithClock(now func() time.Time) ResultCacheOption {
	return func(c *ResultCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ResultCacheOption {
	return func(c *ResultCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewResultCache creates a cache holding at most size answers for ttl each.
// A ttl of 0 selects DefaultTTL.
func NewResultCache(size int, ttl time.Duration, opts ...ResultCacheOption) (*ResultCache, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &ResultCache{
		byEntity: make(map[core.EntityID]map[string]struct{}),
		ttl:      ttl,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "result-cache")

	// The eviction callback runs synchronously inside lru calls, which are
	// only made with mu held.
	lru, err := simplelru.NewLRU(size, func(key string, entry *core.CacheEntry) {
		c.unindex(key, entry)
	})
	if err != nil {
		return nil, err
	}
	c.lru = lru
	return c, nil
}

// Get returns a copy of the cached answer for key.
func (c *ResultCache) Get(key string) (core.MergedResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(key)
	if !ok {
		return core.MergedResult{}, false
	}
	if entry.Expired(c.now()) {
		c.lru.Remove(key)
		return core.MergedResult{}, false
	}
	return entry.Value.Clone(), true
}

// Put caches a copy of result under key, replacing any previous answer.
func (c *ResultCache) Put(key string, result core.MergedResult) {
	entry := &core.CacheEntry{
		Key:       key,
		Value:     result.Clone(),
		CreatedAt: c.now(),
		TTL:       c.ttl,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// simplelru does not report replacements to the eviction callback
	if old, ok := c.lru.Peek(key); ok {
		c.unindex(key, old)
	}
	c.lru.Add(key, entry)
	for _, src := range entry.Value.Sources {
		keys, ok := c.byEntity[src.EntityID]
		if !ok {
			keys = make(map[string]struct{})
			c.byEntity[src.EntityID] = keys
		}
		keys[key] = struct{}{}
	}
}

// InvalidateEntity evicts every cached answer whose sources reference id,
// regardless of TTL, and returns how many were evicted.
func (c *ResultCache) InvalidateEntity(id core.EntityID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.byEntity[id]
	evicted := 0
	for key := range keys {
		if c.lru.Remove(key) {
			evicted++
		}
	}
	delete(c.byEntity, id)

	if evicted > 0 {
		c.logger.Debug("invalidated cached answers", "entity_id", id, "evicted", evicted)
	}
	return evicted
}

// Len returns the number of cached answers, including expired ones not yet
// reclaimed.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge drops every cached answer.
func (c *ResultCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	clear(c.byEntity)
}

// unindex removes key from the reverse index of every entity entry cites.
// Caller holds mu.
func (c *ResultCache) unindex(key string, entry *core.CacheEntry) {
	for _, src := range entry.Value.Sources {
		keys := c.byEntity[src.EntityID]
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byEntity, src.EntityID)
		}
	}
}
