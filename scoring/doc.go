// Package scoring computes confidence breakdowns for retrieval results.
//
// Score is a pure function of the evidence a retrieval path observed, the
// historical accuracy for the query's intent and the current time. The
// HistoryTracker is the only stateful part and is safe for concurrent use.
package scoring
