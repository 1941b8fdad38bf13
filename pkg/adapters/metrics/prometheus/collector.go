package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	analyses         *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	issuesFound      *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec

	toolExecutions *prometheus.CounterVec
	toolFailures   *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec

	jobsSubmitted *prometheus.CounterVec
	jobsCompleted *prometheus.CounterVec
	jobDuration   prometheus.Histogram
	queueDepth    prometheus.Gauge

	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge

	llmLatency *prometheus.HistogramVec
}

// NewCollector creates a collector registered with the default registry
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered with reg
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		analyses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mythgate_analyses_total",
				Help: "Total number of analyses by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		analysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mythgate_analysis_duration_seconds",
				Help:    "Analysis duration in seconds",
				Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300, 600},
			},
			[]string{"mode"},
		),
		issuesFound: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mythgate_issues_total",
				Help: "Total number of reported issues by severity",
			},
			[]string{"severity"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mythgate_report_cache_hits_total",
				Help: "Total number of analyses served from the report cache",
			},
			[]string{"mode"},
		),
		toolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mythgate_tool_executions_total",
				Help: "Total number of external tool executions",
			},
			[]string{"tool"},
		),
		toolFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mythgate_tool_failures_total",
				Help: "Total number of external tool executions that could not complete",
			},
			[]string{"tool"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mythgate_tool_duration_seconds",
				Help:    "External tool execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"tool"},
		),
		jobsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mythgate_jobs_submitted_total",
				Help: "Total number of asynchronous jobs submitted",
			},
			[]string{"status"},
		),
		jobsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mythgate_jobs_completed_total",
				Help: "Total number of asynchronous jobs finished",
			},
			[]string{"status"},
		),
		jobDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mythgate_job_duration_seconds",
				Help:    "Job duration from start to completion in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mythgate_queue_depth",
				Help: "Current number of queued jobs",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mythgate_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mythgate_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mythgate_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mythgate_llm_latency_seconds",
				Help:    "Summary generation latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"model"},
		),
	}
}

// RecordAnalysis records a finished analysis
func (c *Collector) RecordAnalysis(mode, outcome string, duration time.Duration) {
	c.analyses.WithLabelValues(mode, outcome).Inc()
	if duration > 0 {
		c.analysisDuration.WithLabelValues(mode).Observe(duration.Seconds())
	}
}

// RecordIssues adds count issues of a severity
func (c *Collector) RecordIssues(severity string, count int) {
	c.issuesFound.WithLabelValues(severity).Add(float64(count))
}

// RecordCacheHit records an analysis served from cache
func (c *Collector) RecordCacheHit(mode string) {
	c.cacheHits.WithLabelValues(mode).Inc()
}

// RecordToolExecution records one external tool run
func (c *Collector) RecordToolExecution(tool string, duration time.Duration, err error) {
	c.toolExecutions.WithLabelValues(tool).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if err != nil {
		c.toolFailures.WithLabelValues(tool).Inc()
	}
}

// RecordJobSubmitted records a job submission
func (c *Collector) RecordJobSubmitted(status string) {
	c.jobsSubmitted.WithLabelValues(status).Inc()
}

// RecordJobCompleted records a job reaching a terminal state
func (c *Collector) RecordJobCompleted(status string, duration time.Duration) {
	c.jobsCompleted.WithLabelValues(status).Inc()
	c.jobDuration.Observe(duration.Seconds())
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}

// SetQueueDepth sets the current depth of the job queue
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// ObserveLLMLatency records the latency of a summary call
func (c *Collector) ObserveLLMLatency(model string, duration time.Duration) {
	c.llmLatency.WithLabelValues(model).Observe(duration.Seconds())
}
