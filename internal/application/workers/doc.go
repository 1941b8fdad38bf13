// Package workers implements the worker pool for asynchronous analyses.
//
// The worker pool manages a fixed number of goroutines that:
//   - Take submitted jobs from a bounded queue
//   - Run them through the analysis service
//   - Update job state in state storage
//   - Publish lifecycle events on the event bus
//
// The health monitor tracks worker status and records metrics.
package workers
