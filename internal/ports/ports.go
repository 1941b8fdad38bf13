// Package ports declares the interfaces the application layer depends on.
// Adapters under pkg/adapters implement them.
package ports

import (
	"context"
	"time"

	"github.com/aescanero/mythgate/internal/domain"
)

// SourceFetcher retrieves verified contract source from a block explorer
type SourceFetcher interface {
	GetSourceCode(ctx context.Context, address string) (*domain.ContractSource, error)
}

// Flattener turns the source tree rooted at root into one compilable unit
type Flattener interface {
	Flatten(ctx context.Context, root, entry string) ([]byte, error)
}

// CompilerManager installs and selects a compiler version. The selection is
// host-global, so fn runs while the version is held.
type CompilerManager interface {
	Use(ctx context.Context, version string, fn func(ctx context.Context) error) error
}

// Analyzer runs the external security analyzer
type Analyzer interface {
	AnalyzeAddress(ctx context.Context, address string) ([]domain.Issue, error)
	AnalyzeFile(ctx context.Context, path, compilerVersion string) ([]domain.Issue, error)
}

// CodeChecker asks a node provider whether an address holds contract code
type CodeChecker interface {
	HasCode(ctx context.Context, address string) (bool, error)
}

// Summarizer produces a short prose summary of a report
type Summarizer interface {
	Summarize(ctx context.Context, report *domain.Report) (string, error)
}

// StateStorage persists cached reports and job state
type StateStorage interface {
	SaveReport(ctx context.Context, key string, report *domain.Report, ttl time.Duration) error
	GetReport(ctx context.Context, key string) (*domain.Report, error)
	SaveJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	Ping(ctx context.Context) error
}

// EventHandler handles a published event
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus distributes job events
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Close() error
}

// AnalysisService runs analyses end to end
type AnalysisService interface {
	Validate(req domain.AnalysisRequest) (domain.AnalysisRequest, error)
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.Report, error)
}

// MetricsCollector records service metrics
type MetricsCollector interface {
	RecordAnalysis(mode, outcome string, duration time.Duration)
	RecordIssues(severity string, count int)
	RecordCacheHit(mode string)
	RecordToolExecution(tool string, duration time.Duration, err error)
	RecordJobSubmitted(status string)
	RecordJobCompleted(status string, duration time.Duration)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetQueueDepth(depth int)
	ObserveLLMLatency(model string, duration time.Duration)
}
