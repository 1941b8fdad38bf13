package domain

import "time"

// JobStatus represents the lifecycle state of an asynchronous analysis
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions happen
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is an asynchronous analysis
type Job struct {
	ID          string          `json:"job_id"`
	Request     AnalysisRequest `json:"request"`
	Status      JobStatus       `json:"status"`
	Error       string          `json:"error,omitempty"`
	Report      *Report         `json:"report,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// EventType identifies a job lifecycle event
type EventType string

const (
	EventTypeJobQueued    EventType = "job.queued"
	EventTypeJobStarted   EventType = "job.started"
	EventTypeJobCompleted EventType = "job.completed"
	EventTypeJobFailed    EventType = "job.failed"
)

// JobEventsTopic is the topic all job events are published on
const JobEventsTopic = "job.events"

// Event is a job lifecycle notification
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	JobID     string                 `json:"job_id"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
