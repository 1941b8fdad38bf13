package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aescanero/mythgate/internal/application/analysis"
	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/pkg/adapters/events/memory"
	"github.com/aescanero/mythgate/pkg/adapters/metrics/noop"
	storagememory "github.com/aescanero/mythgate/pkg/adapters/storage/memory"
	"go.uber.org/zap"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type fakeService struct {
	validator *analysis.Validator
	report    *domain.Report
	err       error
	release   chan struct{}
}

func newFakeService() *fakeService {
	return &fakeService{validator: analysis.NewValidator(domain.AnalysisModeAddress)}
}

func (s *fakeService) Validate(req domain.AnalysisRequest) (domain.AnalysisRequest, error) {
	return s.validator.Validate(req)
}

func (s *fakeService) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.Report, error) {
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.report != nil {
		return s.report, nil
	}
	return &domain.Report{Address: req.Address, Mode: req.Mode, Issues: []domain.Issue{}}, nil
}

type testPool struct {
	*Pool
	storage *storagememory.InMemoryStateStorage
	events  chan domain.Event
}

func newTestPool(t *testing.T, svc *fakeService, size, queueSize int) *testPool {
	t.Helper()

	storage := storagememory.NewInMemoryStateStorage(time.Hour)
	bus := memory.NewInMemoryEventBus()
	events := make(chan domain.Event, 64)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	err := bus.Subscribe(ctx, domain.JobEventsTopic, func(ctx context.Context, e domain.Event) error {
		events <- e
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	pool := NewPool(size, queueSize, svc, storage, bus, noop.Collector{}, zap.NewNop(), time.Hour)
	return &testPool{Pool: pool, storage: storage, events: events}
}

func (tp *testPool) waitFor(t *testing.T, jobID string, eventType domain.EventType) domain.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-tp.events:
			if e.JobID == jobID && e.Type == eventType {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s on job %s", eventType, jobID)
		}
	}
}

func shutdown(t *testing.T, p *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestSubmitCompletes(t *testing.T) {
	svc := newFakeService()
	svc.report = &domain.Report{
		Address: testAddress,
		Mode:    domain.AnalysisModeAddress,
		Issues:  []domain.Issue{domain.NewIssue("110", "Assert Violation", "", "Medium", "", "")},
	}
	tp := newTestPool(t, svc, 2, 4)
	if err := tp.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer shutdown(t, tp.Pool)

	job, err := tp.Submit(context.Background(), domain.AnalysisRequest{
		Address: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if job.ID == "" || job.Status != domain.JobStatusQueued {
		t.Fatalf("Submit() = %+v", job)
	}
	if job.Request.Address != testAddress {
		t.Errorf("Request.Address = %q, want normalized %q", job.Request.Address, testAddress)
	}

	tp.waitFor(t, job.ID, domain.EventTypeJobQueued)
	tp.waitFor(t, job.ID, domain.EventTypeJobStarted)
	done := tp.waitFor(t, job.ID, domain.EventTypeJobCompleted)
	if done.Data["issues"] != 1 {
		t.Errorf("completed event issues = %v, want 1", done.Data["issues"])
	}

	// The final save happens after the completion event
	var got *domain.Job
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err = tp.GetJob(context.Background(), job.ID)
		if err == nil && got.Status == domain.JobStatusCompleted {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got == nil || got.Status != domain.JobStatusCompleted {
		t.Fatalf("job = %+v, want completed", got)
	}
	if got.Report == nil || len(got.Report.Issues) != 1 {
		t.Errorf("job report = %+v", got.Report)
	}
	if got.StartedAt == nil || got.CompletedAt == nil {
		t.Error("job timestamps not set")
	}
}

func TestSubmitFailure(t *testing.T) {
	svc := newFakeService()
	svc.err = domain.ErrSourceNotVerified
	tp := newTestPool(t, svc, 1, 4)
	if err := tp.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer shutdown(t, tp.Pool)

	job, err := tp.Submit(context.Background(), domain.AnalysisRequest{Address: testAddress})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	failed := tp.waitFor(t, job.ID, domain.EventTypeJobFailed)
	if failed.Data["error"] != domain.ErrSourceNotVerified.Error() {
		t.Errorf("failed event error = %v", failed.Data["error"])
	}
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	tp := newTestPool(t, newFakeService(), 1, 4)

	_, err := tp.Submit(context.Background(), domain.AnalysisRequest{Address: "not-an-address"})
	if !errors.Is(err, domain.ErrInvalidAddress) {
		t.Fatalf("Submit() error = %v, want ErrInvalidAddress", err)
	}
	if tp.QueueDepth() != 0 {
		t.Errorf("QueueDepth() = %d, want 0", tp.QueueDepth())
	}
}

func TestSubmitQueueFull(t *testing.T) {
	// Not started, so nothing drains the queue
	tp := newTestPool(t, newFakeService(), 1, 1)
	req := domain.AnalysisRequest{Address: testAddress}

	if _, err := tp.Submit(context.Background(), req); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	if _, err := tp.Submit(context.Background(), req); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("second Submit() error = %v, want ErrQueueFull", err)
	}
	if tp.QueueDepth() != 1 {
		t.Errorf("QueueDepth() = %d, want 1", tp.QueueDepth())
	}
}

func TestGetJobNotFound(t *testing.T) {
	tp := newTestPool(t, newFakeService(), 1, 1)

	if _, err := tp.GetJob(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetJob() error = %v, want ErrNotFound", err)
	}
}

func TestShutdownWaitsForRunningJob(t *testing.T) {
	svc := newFakeService()
	svc.release = make(chan struct{})
	tp := newTestPool(t, svc, 1, 1)
	if err := tp.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job, err := tp.Submit(context.Background(), domain.AnalysisRequest{Address: testAddress})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	tp.waitFor(t, job.ID, domain.EventTypeJobStarted)

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		shutdownErr <- tp.Shutdown(ctx)
	}()

	close(svc.release)
	if err := <-shutdownErr; err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	got, err := tp.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Status != domain.JobStatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}

	if _, err := tp.Submit(context.Background(), domain.AnalysisRequest{Address: testAddress}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Submit() after shutdown error = %v, want ErrPoolStopped", err)
	}
}

func TestHealthStatus(t *testing.T) {
	tp := newTestPool(t, newFakeService(), 3, 4)
	if err := tp.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	status := tp.Health().GetStatus()
	if status.TotalWorkers != 3 || !status.Healthy {
		t.Errorf("status = %+v, want 3 healthy workers", status)
	}
	if !tp.Health().IsHealthy() {
		t.Error("IsHealthy() = false for a running pool")
	}

	shutdown(t, tp.Pool)

	status = tp.Health().GetStatus()
	if status.StoppedWorkers != 3 || status.Healthy {
		t.Errorf("status after shutdown = %+v, want 3 stopped", status)
	}
	if tp.Health().IsHealthy() {
		t.Error("IsHealthy() = true after shutdown")
	}
}

func TestHealthMonitorReportsStatus(t *testing.T) {
	tp := newTestPool(t, newFakeService(), 1, 1)
	tp.health = NewHealthMonitor(tp.Pool, 10*time.Millisecond, zap.NewNop())

	reported := make(chan *HealthStatus, 8)
	tp.Health().OnStatus(func(s *HealthStatus) {
		select {
		case reported <- s:
		default:
		}
	})

	if err := tp.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer shutdown(t, tp.Pool)

	select {
	case s := <-reported:
		if s.TotalWorkers != 1 {
			t.Errorf("TotalWorkers = %d, want 1", s.TotalWorkers)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("health monitor never reported")
	}
}
