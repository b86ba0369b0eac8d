// Package cache holds the query answer cache and the byte stores retrievers
// use internally.
//
// ResultCache is the first tier: in-process, keyed by Key(text, context),
// bounded by both TTL and LRU capacity, with eager per-entity invalidation.
// Store implementations (MemoryStore, RedisStore) back the second tier that
// lives inside the vector and graph retrievers; the orchestrator never sees it.
package cache
