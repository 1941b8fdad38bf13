// Package mythril adapts the Mythril command-line analyzer.
package mythril

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/pkg/adapters/toolexec"
	"go.uber.org/zap"
)

// Config holds analyzer invocation settings
type Config struct {
	Binary           string
	MaxDepth         int
	ExecutionTimeout int
	InfuraID         string
	Runner           toolexec.Runner
	Logger           *zap.Logger
}

// Analyzer runs `myth analyze` and parses its JSON report
type Analyzer struct {
	binary           string
	maxDepth         int
	executionTimeout int
	infuraID         string
	runner           toolexec.Runner
	logger           *zap.Logger
}

// NewAnalyzer creates a new Mythril analyzer
func NewAnalyzer(cfg *Config) *Analyzer {
	return &Analyzer{
		binary:           cfg.Binary,
		maxDepth:         cfg.MaxDepth,
		executionTimeout: cfg.ExecutionTimeout,
		infuraID:         cfg.InfuraID,
		runner:           cfg.Runner,
		logger:           cfg.Logger,
	}
}

// AnalyzeAddress analyzes deployed bytecode, resolved by Mythril through the node provider
func (a *Analyzer) AnalyzeAddress(ctx context.Context, address string) ([]domain.Issue, error) {
	args := append([]string{"analyze", "-a", address}, a.commonArgs()...)
	return a.run(ctx, toolexec.Command{
		Name: a.binary,
		Args: args,
		Env:  a.env(),
	})
}

// AnalyzeFile analyzes a single flattened source file
func (a *Analyzer) AnalyzeFile(ctx context.Context, path, compilerVersion string) ([]domain.Issue, error) {
	args := []string{"analyze", path}
	if compilerVersion != "" {
		args = append(args, "--solv", compilerVersion)
	}
	args = append(args, a.commonArgs()...)
	return a.run(ctx, toolexec.Command{
		Name: a.binary,
		Args: args,
		Env:  a.env(),
	})
}

func (a *Analyzer) commonArgs() []string {
	return []string{
		"-o", "json",
		"-t", strconv.Itoa(a.maxDepth),
		"--execution-timeout", strconv.Itoa(a.executionTimeout),
	}
}

func (a *Analyzer) env() []string {
	if a.infuraID == "" {
		return nil
	}
	return []string{"INFURA_ID=" + a.infuraID}
}

func (a *Analyzer) run(ctx context.Context, cmd toolexec.Command) ([]domain.Issue, error) {
	res, err := a.runner.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrToolFailed, err)
	}

	// myth exits non-zero when it reports issues, so the exit code alone is not a failure
	raw, err := ExtractJSON(res.Stdout)
	if err != nil {
		if errors.Is(err, domain.ErrNoJSONOutput) && res.ExitCode != 0 {
			return nil, fmt.Errorf("%w: myth exited with code %d: %s",
				domain.ErrToolFailed, res.ExitCode, toolexec.Tail(res.Stderr, 512))
		}
		return nil, err
	}

	issues, err := ParseIssues(raw)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("mythril analysis parsed",
		zap.Int("issues", len(issues)),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration))

	return issues, nil
}
