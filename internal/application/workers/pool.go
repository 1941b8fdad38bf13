package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/internal/ports"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPoolStopped is returned when submitting to a pool that is shutting down
var ErrPoolStopped = errors.New("worker pool is stopped")

// Pool manages a pool of worker goroutines
type Pool struct {
	size     int
	service  ports.AnalysisService
	storage  ports.StateStorage
	eventBus ports.EventBus
	metrics  ports.MetricsCollector
	logger   *zap.Logger
	health   *HealthMonitor

	queue   chan *domain.Job
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a new worker pool
func NewPool(
	size int,
	queueSize int,
	service ports.AnalysisService,
	storage ports.StateStorage,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:     size,
		service:  service,
		storage:  storage,
		eventBus: eventBus,
		metrics:  metrics,
		logger:   logger,
		queue:    make(chan *domain.Job, queueSize),
		workers:  make([]*worker, size),
		ctx:      ctx,
		cancel:   cancel,
	}

	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)

	return pool
}

// Health returns the pool's health monitor
func (p *Pool) Health() *HealthMonitor {
	return p.health
}

// Start starts the worker pool
func (p *Pool) Start() error {
	p.logger.Info("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("worker pool started", zap.Int("workers", p.size))
	return nil
}

// Shutdown stops taking jobs and waits for running ones to finish.
// Jobs still queued stay in the queued state.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// Submit validates req and queues it as a new job
func (p *Pool) Submit(ctx context.Context, req domain.AnalysisRequest) (*domain.Job, error) {
	if p.ctx.Err() != nil {
		return nil, ErrPoolStopped
	}

	req, err := p.service.Validate(req)
	if err != nil {
		p.metrics.RecordJobSubmitted("rejected")
		return nil, err
	}

	job := &domain.Job{
		ID:          uuid.New().String(),
		Request:     req,
		Status:      domain.JobStatusQueued,
		SubmittedAt: time.Now().UTC(),
	}

	// Stored before it is queued so a worker never races the initial save
	if err := p.storage.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case p.queue <- job:
	default:
		p.metrics.RecordJobSubmitted("queue_full")
		now := time.Now().UTC()
		job.Status = domain.JobStatusFailed
		job.Error = domain.ErrQueueFull.Error()
		job.CompletedAt = &now
		if err := p.storage.SaveJob(ctx, job); err != nil {
			p.logger.Warn("failed to save rejected job",
				zap.String("job_id", job.ID),
				zap.Error(err))
		}
		return nil, domain.ErrQueueFull
	}

	p.metrics.RecordJobSubmitted("accepted")
	p.metrics.SetQueueDepth(len(p.queue))
	p.publishEvent(ctx, job, domain.EventTypeJobQueued, map[string]interface{}{
		"address": req.Address,
		"mode":    string(req.Mode),
	})

	p.logger.Info("job queued",
		zap.String("job_id", job.ID),
		zap.String("address", req.Address),
		zap.String("mode", string(req.Mode)))

	snapshot := *job
	return &snapshot, nil
}

// GetJob returns the current state of a job
func (p *Pool) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	return p.storage.GetJob(ctx, id)
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// QueueDepth returns the number of jobs waiting for a worker
func (p *Pool) QueueDepth() int {
	return len(p.queue)
}

// run is the main worker loop
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Info("worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.setStatus(WorkerStatusStopped)
			w.pool.logger.Info("worker stopped", zap.String("worker_id", w.id))
			return
		case job := <-w.pool.queue:
			w.pool.metrics.SetQueueDepth(len(w.pool.queue))
			// A job that was picked up finishes even during shutdown
			w.handleJob(context.WithoutCancel(ctx), job)
		}
	}
}

func (w *worker) setStatus(status WorkerStatus) {
	w.mu.Lock()
	w.status = status
	if status == WorkerStatusBusy {
		w.lastJob = time.Now()
	}
	w.mu.Unlock()
}

// handleJob runs one job to a terminal state
func (w *worker) handleJob(ctx context.Context, job *domain.Job) {
	w.setStatus(WorkerStatusBusy)
	defer w.setStatus(WorkerStatusIdle)

	logger := w.pool.logger.With(
		zap.String("worker_id", w.id),
		zap.String("job_id", job.ID),
		zap.String("address", job.Request.Address))

	logger.Info("executing job")

	startedAt := time.Now().UTC()
	job.Status = domain.JobStatusRunning
	job.StartedAt = &startedAt
	if err := w.pool.storage.SaveJob(ctx, job); err != nil {
		logger.Error("failed to save job state", zap.Error(err))
	}
	w.pool.publishEvent(ctx, job, domain.EventTypeJobStarted, nil)

	report, err := w.pool.service.Analyze(ctx, job.Request)

	completedAt := time.Now().UTC()
	duration := completedAt.Sub(startedAt)
	job.CompletedAt = &completedAt

	if err != nil {
		job.Status = domain.JobStatusFailed
		job.Error = err.Error()
		w.pool.publishEvent(ctx, job, domain.EventTypeJobFailed, map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		job.Status = domain.JobStatusCompleted
		job.Report = report
		w.pool.publishEvent(ctx, job, domain.EventTypeJobCompleted, map[string]interface{}{
			"message": report.Message(),
			"issues":  len(report.Issues),
		})
	}
	w.pool.metrics.RecordJobCompleted(string(job.Status), duration)

	if err := w.pool.storage.SaveJob(ctx, job); err != nil {
		logger.Error("failed to save final job state", zap.Error(err))
	}

	logger.Info("job execution completed",
		zap.String("status", string(job.Status)),
		zap.Duration("duration", duration))
}

// publishEvent publishes a job event to the event bus
func (p *Pool) publishEvent(ctx context.Context, job *domain.Job, eventType domain.EventType, data map[string]interface{}) {
	if p.eventBus == nil {
		return
	}

	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		JobID:     job.ID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	if err := p.eventBus.Publish(ctx, domain.JobEventsTopic, event); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("job_id", job.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
