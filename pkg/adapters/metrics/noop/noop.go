// Package noop provides a MetricsCollector that discards everything.
package noop

import "time"

// Collector discards all metrics
type Collector struct{}

func (Collector) RecordAnalysis(mode, outcome string, duration time.Duration)       {}
func (Collector) RecordIssues(severity string, count int)                            {}
func (Collector) RecordCacheHit(mode string)                                         {}
func (Collector) RecordToolExecution(tool string, duration time.Duration, err error) {}
func (Collector) RecordJobSubmitted(status string)                                   {}
func (Collector) RecordJobCompleted(status string, duration time.Duration)           {}
func (Collector) RecordWorkerPoolStatus(idle, busy, stopped int)                     {}
func (Collector) SetQueueDepth(depth int)                                            {}
func (Collector) ObserveLLMLatency(model string, duration time.Duration)             {}
