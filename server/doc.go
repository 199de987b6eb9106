// Package server exposes setup and question answering over HTTP.
//
// Routes:
//   - POST /setup loads the configured documents and ingests them
//   - POST /read answers a JSON-encoded question string
//   - GET /health reports liveness
//
// Setup runs on a single-worker pool. A setup request that arrives while
// another one is running is rejected with 409 Conflict.
package server
