// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Synchronous contract analysis
//   - Asynchronous analysis jobs and their status
//   - Health checks
//   - Prometheus metrics
package http
