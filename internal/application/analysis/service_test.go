package analysis

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/pkg/adapters/flatten"
	"github.com/aescanero/mythgate/pkg/adapters/metrics/noop"
	"github.com/aescanero/mythgate/pkg/adapters/storage/memory"
	"go.uber.org/zap"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

type fakeFetcher struct {
	src       *domain.ContractSource
	byAddress map[string]*domain.ContractSource
	err       error
	calls     atomic.Int32
}

func (f *fakeFetcher) GetSourceCode(ctx context.Context, address string) (*domain.ContractSource, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	found := f.src
	if s, ok := f.byAddress[address]; ok {
		found = s
	}
	src := *found
	src.Address = address
	return &src, nil
}

type fakeCompiler struct {
	mu       sync.Mutex
	versions []string
}

func (c *fakeCompiler) Use(ctx context.Context, version string, fn func(ctx context.Context) error) error {
	c.mu.Lock()
	c.versions = append(c.versions, version)
	c.mu.Unlock()
	return fn(ctx)
}

type fakeAnalyzer struct {
	issues   []domain.Issue
	err      error
	delay    time.Duration
	calls    atomic.Int32
	mu       sync.Mutex
	fileSeen string
}

func (a *fakeAnalyzer) AnalyzeAddress(ctx context.Context, address string) ([]domain.Issue, error) {
	a.calls.Add(1)
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return a.issues, a.err
}

func (a *fakeAnalyzer) AnalyzeFile(ctx context.Context, path, compilerVersion string) ([]domain.Issue, error) {
	a.calls.Add(1)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.fileSeen = string(data)
	a.mu.Unlock()
	return a.issues, a.err
}

type fakeCodeChecker struct {
	hasCode bool
}

func (c *fakeCodeChecker) HasCode(ctx context.Context, address string) (bool, error) {
	return c.hasCode, nil
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (s *fakeSummarizer) Summarize(ctx context.Context, report *domain.Report) (string, error) {
	return s.summary, s.err
}

func tokenSource() *domain.ContractSource {
	return &domain.ContractSource{
		ContractName:    "Token",
		CompilerVersion: "v0.8.19+commit.7dd6d404",
		Files: []domain.SourceFile{
			{Path: "contracts/Math.sol", Content: "// SPDX-License-Identifier: MIT\npragma solidity ^0.8.0;\n\nlibrary Math {}\n"},
			{Path: "contracts/Token.sol", Content: "// SPDX-License-Identifier: MIT\npragma solidity ^0.8.19;\n\nimport \"./Math.sol\";\n\ncontract Token {}\n"},
		},
	}
}

func newTestService(t *testing.T, cfg *Config) *Service {
	t.Helper()
	if cfg.Fetcher == nil {
		cfg.Fetcher = &fakeFetcher{src: tokenSource()}
	}
	if cfg.Flattener == nil {
		cfg.Flattener = flatten.NewConcatFlattener()
	}
	if cfg.Compiler == nil {
		cfg.Compiler = &fakeCompiler{}
	}
	if cfg.Analyzer == nil {
		cfg.Analyzer = &fakeAnalyzer{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noop.Collector{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = domain.AnalysisModeAddress
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return NewService(cfg)
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("work dir has %d leftover entries", len(entries))
	}
}

func TestAnalyzeRejectsInvalidInputWithoutExternalCalls(t *testing.T) {
	fetcher := &fakeFetcher{src: tokenSource()}
	analyzer := &fakeAnalyzer{}
	svc := newTestService(t, &Config{Fetcher: fetcher, Analyzer: analyzer})

	tests := []struct {
		name    string
		req     domain.AnalysisRequest
		wantErr error
	}{
		{"missing address", domain.AnalysisRequest{}, domain.ErrAddressRequired},
		{"malformed address", domain.AnalysisRequest{Address: "0xnope"}, domain.ErrInvalidAddress},
		{"unknown mode", domain.AnalysisRequest{Address: testAddress, Mode: "deep"}, domain.ErrInvalidMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Analyze(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Analyze() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if fetcher.calls.Load() != 0 || analyzer.calls.Load() != 0 {
		t.Errorf("external calls made for invalid input: fetcher=%d analyzer=%d",
			fetcher.calls.Load(), analyzer.calls.Load())
	}
}

func TestAnalyzeAddressMode(t *testing.T) {
	issue := domain.NewIssue("107", "External Call To User-Supplied Address", "desc", "Low", "withdraw()", "Token")
	analyzer := &fakeAnalyzer{issues: []domain.Issue{issue}}
	svc := newTestService(t, &Config{Analyzer: analyzer})

	report, err := svc.Analyze(context.Background(), domain.AnalysisRequest{
		Address: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if report.Address != testAddress {
		t.Errorf("Address = %q, want checksummed %q", report.Address, testAddress)
	}
	if report.Mode != domain.AnalysisModeAddress {
		t.Errorf("Mode = %q, want address", report.Mode)
	}
	if len(report.Issues) != 1 || report.Issues[0].SWCURL != "https://swcregistry.io/docs/SWC-107" {
		t.Errorf("Issues = %+v", report.Issues)
	}
	if report.Message() != "Analysis complete" {
		t.Errorf("Message() = %q", report.Message())
	}
}

func TestAnalyzeNoIssues(t *testing.T) {
	svc := newTestService(t, &Config{})

	report, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Address: testAddress})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.Issues == nil || len(report.Issues) != 0 {
		t.Errorf("Issues = %#v, want empty non-nil slice", report.Issues)
	}
	if report.Message() != "No issues found" {
		t.Errorf("Message() = %q", report.Message())
	}
}

func TestAnalyzeSourceMode(t *testing.T) {
	workDir := t.TempDir()
	compiler := &fakeCompiler{}
	analyzer := &fakeAnalyzer{}
	svc := newTestService(t, &Config{Compiler: compiler, Analyzer: analyzer, WorkDir: workDir})

	report, err := svc.Analyze(context.Background(), domain.AnalysisRequest{
		Address: testAddress,
		Mode:    domain.AnalysisModeSource,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if report.ContractName != "Token" {
		t.Errorf("ContractName = %q, want Token", report.ContractName)
	}
	if report.CompilerVersion != "0.8.19" {
		t.Errorf("CompilerVersion = %q, want 0.8.19", report.CompilerVersion)
	}
	if len(compiler.versions) != 1 || compiler.versions[0] != "0.8.19" {
		t.Errorf("compiler versions = %v", compiler.versions)
	}
	if analyzer.fileSeen == "" {
		t.Fatal("analyzer did not read a flattened file")
	}

	assertEmptyDir(t, workDir)
}

func TestAnalyzeSourceFailureCleansWorkspace(t *testing.T) {
	workDir := t.TempDir()
	analyzer := &fakeAnalyzer{err: domain.ErrNoJSONOutput}
	svc := newTestService(t, &Config{Analyzer: analyzer, WorkDir: workDir})

	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{
		Address: testAddress,
		Mode:    domain.AnalysisModeSource,
	})
	if !errors.Is(err, domain.ErrNoJSONOutput) {
		t.Fatalf("Analyze() error = %v, want ErrNoJSONOutput", err)
	}

	assertEmptyDir(t, workDir)
}

func TestAnalyzeSourceNotVerified(t *testing.T) {
	fetcher := &fakeFetcher{err: domain.ErrSourceNotVerified}
	analyzer := &fakeAnalyzer{}
	svc := newTestService(t, &Config{Fetcher: fetcher, Analyzer: analyzer})

	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{
		Address: testAddress,
		Mode:    domain.AnalysisModeSource,
	})
	if !errors.Is(err, domain.ErrSourceNotVerified) {
		t.Fatalf("Analyze() error = %v, want ErrSourceNotVerified", err)
	}
	if analyzer.calls.Load() != 0 {
		t.Error("analyzer ran without source")
	}
}

func TestAnalyzeSourceWithoutPragma(t *testing.T) {
	fetcher := &fakeFetcher{src: &domain.ContractSource{
		ContractName: "Bare",
		Files:        []domain.SourceFile{{Path: "Bare.sol", Content: "contract Bare {}\n"}},
	}}
	svc := newTestService(t, &Config{Fetcher: fetcher})

	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{
		Address: testAddress,
		Mode:    domain.AnalysisModeSource,
	})
	if !errors.Is(err, domain.ErrNoPragma) {
		t.Fatalf("Analyze() error = %v, want ErrNoPragma", err)
	}
}

func TestAnalyzeCodeCheck(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	svc := newTestService(t, &Config{
		Analyzer:    analyzer,
		CodeChecker: &fakeCodeChecker{hasCode: false},
	})

	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Address: testAddress})
	if !errors.Is(err, domain.ErrNoContractCode) {
		t.Fatalf("Analyze() error = %v, want ErrNoContractCode", err)
	}
	if analyzer.calls.Load() != 0 {
		t.Error("analyzer ran for an address without code")
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	analyzer := &fakeAnalyzer{delay: time.Second}
	svc := newTestService(t, &Config{Analyzer: analyzer, Timeout: 20 * time.Millisecond})

	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Address: testAddress})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Analyze() error = %v, want DeadlineExceeded", err)
	}
}

func TestAnalyzeSharesInflightRuns(t *testing.T) {
	analyzer := &fakeAnalyzer{delay: 200 * time.Millisecond}
	svc := newTestService(t, &Config{Analyzer: analyzer})

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Address: testAddress})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
	}
	if got := analyzer.calls.Load(); got != 1 {
		t.Errorf("analyzer calls = %d, want 1", got)
	}
}

func TestAnalyzeReportCache(t *testing.T) {
	analyzer := &fakeAnalyzer{issues: []domain.Issue{domain.NewIssue("101", "Overflow", "", "High", "", "")}}
	svc := newTestService(t, &Config{
		Analyzer: analyzer,
		Storage:  memory.NewInMemoryStateStorage(time.Hour),
		CacheTTL: time.Hour,
	})
	req := domain.AnalysisRequest{Address: testAddress}

	first, err := svc.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	second, err := svc.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if got := analyzer.calls.Load(); got != 1 {
		t.Errorf("analyzer calls = %d, want 1", got)
	}
	if len(second.Issues) != len(first.Issues) || second.Issues[0].SWCID != "101" {
		t.Errorf("cached issues = %+v", second.Issues)
	}
}

func TestAnalyzeSummary(t *testing.T) {
	svc := newTestService(t, &Config{Summarizer: &fakeSummarizer{summary: "Nothing to worry about."}})

	report, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Address: testAddress})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.Summary != "Nothing to worry about." {
		t.Errorf("Summary = %q", report.Summary)
	}
}

func TestAnalyzeSummaryFailureKeepsReport(t *testing.T) {
	svc := newTestService(t, &Config{Summarizer: &fakeSummarizer{err: errors.New("rate limited")}})

	report, err := svc.Analyze(context.Background(), domain.AnalysisRequest{Address: testAddress})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.Summary != "" {
		t.Errorf("Summary = %q, want empty", report.Summary)
	}
}

func TestAnalyzeSourcePicksHighestPragmaAcrossFiles(t *testing.T) {
	fetcher := &fakeFetcher{src: &domain.ContractSource{
		ContractName: "A",
		Files: []domain.SourceFile{
			{Path: "A.sol", Content: "pragma solidity ^0.8.0;\nimport \"./L.sol\";\ncontract A {}\n"},
			{Path: "L.sol", Content: "pragma solidity ^0.8.20;\nlibrary L {}\n"},
		},
	}}
	compiler := &fakeCompiler{}
	svc := newTestService(t, &Config{Fetcher: fetcher, Compiler: compiler})

	report, err := svc.Analyze(context.Background(), domain.AnalysisRequest{
		Address: testAddress,
		Mode:    domain.AnalysisModeSource,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if report.CompilerVersion != "0.8.20" {
		t.Errorf("CompilerVersion = %q, want 0.8.20", report.CompilerVersion)
	}
	if len(compiler.versions) != 1 || compiler.versions[0] != "0.8.20" {
		t.Errorf("compiler versions = %v", compiler.versions)
	}
}

func TestAnalyzeSourceFollowsProxy(t *testing.T) {
	const implAddress = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	fetcher := &fakeFetcher{
		src: &domain.ContractSource{
			ContractName:   "Proxy",
			Proxy:          true,
			Implementation: "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359",
			Files:          []domain.SourceFile{{Path: "Proxy.sol", Content: "pragma solidity ^0.8.0;\ncontract Proxy {}\n"}},
		},
		byAddress: map[string]*domain.ContractSource{implAddress: tokenSource()},
	}
	analyzer := &fakeAnalyzer{}
	svc := newTestService(t, &Config{Fetcher: fetcher, Analyzer: analyzer})

	report, err := svc.Analyze(context.Background(), domain.AnalysisRequest{
		Address: testAddress,
		Mode:    domain.AnalysisModeSource,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if report.ContractName != "Token" {
		t.Errorf("ContractName = %q, want implementation Token", report.ContractName)
	}
	if report.Implementation != implAddress {
		t.Errorf("Implementation = %q, want %q", report.Implementation, implAddress)
	}
	if report.Address != testAddress {
		t.Errorf("Address = %q, want proxy %q", report.Address, testAddress)
	}
	if !strings.Contains(analyzer.fileSeen, "contract Token") || strings.Contains(analyzer.fileSeen, "contract Proxy") {
		t.Errorf("analyzed source:\n%s", analyzer.fileSeen)
	}
	if got := fetcher.calls.Load(); got != 2 {
		t.Errorf("fetcher calls = %d, want 2", got)
	}
}

func TestAnalyzeSourceProxyImplementationUnverified(t *testing.T) {
	fetcher := &fakeFetcher{src: &domain.ContractSource{
		ContractName:   "Proxy",
		Proxy:          true,
		Implementation: "0xfb6916095ca1df60bb79ce92ce3ea74c37c5d359",
		Files:          []domain.SourceFile{{Path: "Proxy.sol", Content: "pragma solidity ^0.8.0;\ncontract Proxy {}\n"}},
	}}
	proxyOnly := &proxyThenErrFetcher{first: fetcher.src, err: domain.ErrSourceNotVerified}
	svc := newTestService(t, &Config{Fetcher: proxyOnly})

	_, err := svc.Analyze(context.Background(), domain.AnalysisRequest{
		Address: testAddress,
		Mode:    domain.AnalysisModeSource,
	})
	if !errors.Is(err, domain.ErrSourceNotVerified) {
		t.Fatalf("Analyze() error = %v, want ErrSourceNotVerified", err)
	}
}

type proxyThenErrFetcher struct {
	first *domain.ContractSource
	err   error
	calls int
}

func (f *proxyThenErrFetcher) GetSourceCode(ctx context.Context, address string) (*domain.ContractSource, error) {
	f.calls++
	if f.calls > 1 {
		return nil, f.err
	}
	src := *f.first
	src.Address = address
	return &src, nil
}
