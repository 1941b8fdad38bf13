// Package storage provides report cache and job state storage implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and TTL
//   - memory: In-memory with lazy expiry, the default for single-instance deployments and tests
package storage
