// Package ingestion keeps the knowledge graph and vector index in sync with
// upstream systems.
//
// The Pipeline type handles two kinds of work:
//   - Change notifications, debounced over a short window and coalesced per
//     entity, then applied concurrently on a worker pool
//   - Batch jobs (re-embedding, graph rebuild, backfill) tracked by id
//
// Every applied change evicts cached answers that cite the entity, and each
// flushed batch triggers one graph rebuild. Transient failures are retried
// according to a backoff.Policy; validation failures never are.
package ingestion
