// Package orchestrator runs hybrid portfolio queries end to end.
//
// A query is checked against the result cache, classified, fanned out to the
// vector and graph retrievers its route selects, scored, merged and cached.
// Progress is delivered as an ordered stream of typed events:
//
//	intent -> {vector, graph in completion order} -> merged -> complete
//
// A stream ends after complete or error. Cancelling the caller's context
// aborts the query silently; exceeding the query deadline ends the stream
// with an error event of kind query_timeout.
//
// An Orchestrator holds no package-level state, so independent instances can
// run side by side.
package orchestrator
