// Package httpapi exposes the query orchestrator and the ingestion pipeline
// over HTTP.
//
// Routes:
//
//	POST /v1/query             answer a question (JSON, or SSE with Accept: text/event-stream)
//	POST /v1/feedback          report whether a cached answer was accurate
//	POST /v1/entities/updates  upstream change webhook
//	POST /v1/jobs              start an ingestion job
//	GET  /v1/jobs              list jobs
//	GET  /v1/jobs/:id          job status
//	GET  /metrics              Prometheus metrics
//	GET  /healthz              liveness
//
// Errors are rendered as {"error":{"kind":...,"message":...}}.
package httpapi
