// Package merge combines the vector and graph partial results of one query
// into a single attributed answer.
//
// Every combination of inputs is one of four cases (empty, vector only, graph
// only, both) and Merge handles each explicitly. The result carries a
// reasoning trace, an answer type and a completeness score so callers can
// tell grounded answers from best-effort ones.
package merge
