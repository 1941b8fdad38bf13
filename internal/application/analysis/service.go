package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/internal/ports"
	"github.com/aescanero/mythgate/pkg/adapters/flatten"
	"github.com/aescanero/mythgate/pkg/adapters/pragma"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config holds service dependencies and settings. CodeChecker, Summarizer
// and Storage are optional.
type Config struct {
	Fetcher     ports.SourceFetcher
	Flattener   ports.Flattener
	Compiler    ports.CompilerManager
	Analyzer    ports.Analyzer
	CodeChecker ports.CodeChecker
	Summarizer  ports.Summarizer
	Storage     ports.StateStorage
	Metrics     ports.MetricsCollector
	Logger      *zap.Logger

	DefaultMode domain.AnalysisMode
	WorkDir     string
	Timeout     time.Duration
	CacheTTL    time.Duration
}

// Service runs contract analyses
type Service struct {
	fetcher     ports.SourceFetcher
	flattener   ports.Flattener
	compiler    ports.CompilerManager
	analyzer    ports.Analyzer
	codeChecker ports.CodeChecker
	summarizer  ports.Summarizer
	storage     ports.StateStorage
	metrics     ports.MetricsCollector
	validator   *Validator
	logger      *zap.Logger

	workDir  string
	timeout  time.Duration
	cacheTTL time.Duration

	// In-flight runs keyed by mode and address
	group singleflight.Group
}

// NewService creates a new analysis service
func NewService(cfg *Config) *Service {
	return &Service{
		fetcher:     cfg.Fetcher,
		flattener:   cfg.Flattener,
		compiler:    cfg.Compiler,
		analyzer:    cfg.Analyzer,
		codeChecker: cfg.CodeChecker,
		summarizer:  cfg.Summarizer,
		storage:     cfg.Storage,
		metrics:     cfg.Metrics,
		validator:   NewValidator(cfg.DefaultMode),
		logger:      cfg.Logger,
		workDir:     cfg.WorkDir,
		timeout:     cfg.Timeout,
		cacheTTL:    cfg.CacheTTL,
	}
}

// Validate normalizes a request without running it
func (s *Service) Validate(req domain.AnalysisRequest) (domain.AnalysisRequest, error) {
	return s.validator.Validate(req)
}

// Analyze validates req and runs it, or joins an identical run in flight
func (s *Service) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.Report, error) {
	req, err := s.validator.Validate(req)
	if err != nil {
		s.metrics.RecordAnalysis("unknown", "rejected", 0)
		return nil, err
	}

	if report, ok := s.cachedReport(ctx, req); ok {
		s.metrics.RecordCacheHit(string(req.Mode))
		s.logger.Info("analysis served from cache",
			zap.String("address", req.Address),
			zap.String("mode", string(req.Mode)))
		return report, nil
	}

	// The run is detached from ctx so a departing caller does not cancel
	// it for the others sharing it.
	ch := s.group.DoChan(req.Key(), func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.run(runCtx, req)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneReport(res.Val.(*domain.Report)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run executes one analysis
func (s *Service) run(ctx context.Context, req domain.AnalysisRequest) (*domain.Report, error) {
	start := time.Now()
	s.logger.Info("analysis started",
		zap.String("address", req.Address),
		zap.String("mode", string(req.Mode)))

	var report *domain.Report
	var err error
	switch req.Mode {
	case domain.AnalysisModeSource:
		report, err = s.analyzeSource(ctx, req.Address)
	default:
		report, err = s.analyzeAddress(ctx, req.Address)
	}

	duration := time.Since(start)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("analysis timed out after %s: %w (%v)", s.timeout, context.DeadlineExceeded, err)
		}
		s.metrics.RecordAnalysis(string(req.Mode), outcome(err), duration)
		s.logger.Error("analysis failed",
			zap.String("address", req.Address),
			zap.String("mode", string(req.Mode)),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, err
	}

	report.Address = req.Address
	report.Mode = req.Mode
	report.AnalyzedAt = time.Now().UTC()
	report.Duration = duration
	if report.Issues == nil {
		report.Issues = []domain.Issue{}
	}

	s.summarize(ctx, report)

	s.metrics.RecordAnalysis(string(req.Mode), "success", duration)
	for severity, count := range report.SeverityCounts() {
		s.metrics.RecordIssues(severity, count)
	}

	s.cacheReport(ctx, req, report)

	s.logger.Info("analysis completed",
		zap.String("address", req.Address),
		zap.String("mode", string(req.Mode)),
		zap.Int("issues", len(report.Issues)),
		zap.Duration("duration", duration))

	return report, nil
}

// analyzeAddress runs the analyzer against deployed bytecode
func (s *Service) analyzeAddress(ctx context.Context, address string) (*domain.Report, error) {
	if s.codeChecker != nil {
		hasCode, err := s.codeChecker.HasCode(ctx, address)
		if err != nil {
			return nil, err
		}
		if !hasCode {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoContractCode, address)
		}
	}

	issues, err := s.analyzer.AnalyzeAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	return &domain.Report{Issues: issues}, nil
}

// analyzeSource fetches, flattens, compiles and analyzes verified source.
// The workspace is removed before returning, on every path.
func (s *Service) analyzeSource(ctx context.Context, address string) (*domain.Report, error) {
	src, err := s.fetcher.GetSourceCode(ctx, address)
	if err != nil {
		return nil, err
	}

	src, err = s.followProxy(ctx, address, src)
	if err != nil {
		return nil, err
	}

	ws, err := flatten.NewWorkspace(s.workDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			s.logger.Warn("failed to remove workspace",
				zap.String("path", ws.Root()),
				zap.Error(err))
		}
	}()

	entry, err := ws.Write(src)
	if err != nil {
		return nil, err
	}

	flat, err := s.flattener.Flatten(ctx, ws.Root(), entry)
	if err != nil {
		return nil, err
	}

	// Flattening keeps only the entry pragma, so versions come from every file
	version, err := pragma.Resolve(src.CompilerVersion, joinSources(src.Files, flat))
	if err != nil {
		return nil, err
	}

	if err := ws.WriteFile(flatten.FlattenedFile, flat); err != nil {
		return nil, err
	}

	s.logger.Debug("source prepared",
		zap.String("address", address),
		zap.String("contract", src.ContractName),
		zap.Int("files", len(src.Files)),
		zap.String("entry", entry),
		zap.String("compiler", version))

	var issues []domain.Issue
	err = s.compiler.Use(ctx, version, func(ctx context.Context) error {
		var err error
		issues, err = s.analyzer.AnalyzeFile(ctx, ws.Path(flatten.FlattenedFile), version)
		return err
	})
	if err != nil {
		return nil, err
	}

	report := &domain.Report{
		ContractName:    src.ContractName,
		CompilerVersion: version,
		Issues:          issues,
	}
	if src.Address != "" && !strings.EqualFold(src.Address, address) {
		report.Implementation = src.Address
	}
	return report, nil
}

// followProxy swaps a verified proxy for its implementation's source.
// Only one hop is followed.
func (s *Service) followProxy(ctx context.Context, address string, src *domain.ContractSource) (*domain.ContractSource, error) {
	if !src.Proxy || src.Implementation == "" {
		return src, nil
	}

	impl, err := NormalizeAddress(src.Implementation)
	if err != nil || impl == address {
		s.logger.Warn("ignoring proxy implementation",
			zap.String("address", address),
			zap.String("implementation", src.Implementation))
		return src, nil
	}

	s.logger.Info("analyzing proxy implementation",
		zap.String("address", address),
		zap.String("implementation", impl))

	implSrc, err := s.fetcher.GetSourceCode(ctx, impl)
	if err != nil {
		return nil, fmt.Errorf("proxy implementation %s: %w", impl, err)
	}
	implSrc.Address = impl
	return implSrc, nil
}

// summarize attaches a prose summary. Failures only cost the summary.
func (s *Service) summarize(ctx context.Context, report *domain.Report) {
	if s.summarizer == nil {
		return
	}

	summary, err := s.summarizer.Summarize(ctx, report)
	if err != nil {
		s.logger.Warn("failed to summarize report",
			zap.String("address", report.Address),
			zap.Error(err))
		return
	}
	report.Summary = summary
}

func (s *Service) cachedReport(ctx context.Context, req domain.AnalysisRequest) (*domain.Report, bool) {
	if s.storage == nil || s.cacheTTL <= 0 {
		return nil, false
	}

	report, err := s.storage.GetReport(ctx, req.Key())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("report cache lookup failed",
				zap.String("key", req.Key()),
				zap.Error(err))
		}
		return nil, false
	}
	return report, true
}

func (s *Service) cacheReport(ctx context.Context, req domain.AnalysisRequest, report *domain.Report) {
	if s.storage == nil || s.cacheTTL <= 0 {
		return
	}

	if err := s.storage.SaveReport(ctx, req.Key(), report, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache report",
			zap.String("key", req.Key()),
			zap.Error(err))
	}
}

// outcome labels a failed analysis for metrics
func outcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, domain.ErrSourceNotVerified), errors.Is(err, domain.ErrNoContractCode):
		return "not_found"
	case errors.Is(err, domain.ErrExplorer):
		return "upstream_error"
	default:
		return "error"
	}
}

// joinSources concatenates the original files followed by the flattened unit
func joinSources(files []domain.SourceFile, flat []byte) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(f.Content)
		b.WriteString("\n")
	}
	b.Write(flat)
	return b.String()
}

func cloneReport(r *domain.Report) *domain.Report {
	c := *r
	c.Issues = append([]domain.Issue{}, r.Issues...)
	return &c
}
