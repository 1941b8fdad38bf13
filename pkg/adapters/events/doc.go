// Package events provides event bus implementations for job lifecycle events.
//
// Implementations:
//   - redis: Redis Streams, every subscriber reads the full stream
//   - memory: In-memory fan-out for single-instance deployments and tests
package events
