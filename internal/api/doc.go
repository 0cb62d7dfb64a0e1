// Package api implements the read-only HTTP API for hydrocore.
//
// This package provides:
//   - GET /api/v1/series/{metric}?since=... for dashboards and displays
//   - GET /api/v1/health with store reachability and sensor link state
//   - GET /api/v1/stream, a WebSocket feed of each new Summary Record
//   - GET /metrics for Prometheus
//   - Middleware stack (request ID, logging, recovery, request metrics, CORS)
//
// # Architecture
//
// The API never writes. It reads through store.Store.Query, which both
// backends implement, and the link's atomic State, so it can run alongside
// the acquisition loop without sharing any mutable state with it. The
// stream Hub is registered with the loop as a forwarder and only receives
// records after they are persisted.
//
// # Errors
//
// Error responses use a single JSON shape:
//
//	{"status": 400, "code": "bad_request", "message": "..."}
//
// An unknown metric or unparseable since is 400; a store that cannot be
// reached is 503.
package api
