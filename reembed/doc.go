// Package reembed regenerates embeddings for every chunk in the vector index,
// typically after switching embedding models.
//
// Chunks are walked in id order and embedded in batches. Each batch is
// retried under a backoff.Policy, vectors are normalized to unit length so
// cosine search stays comparable, and progress is reported both to a writer
// and to an optional callback.
package reembed
