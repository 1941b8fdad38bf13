// Package toolexec runs external command-line tools and captures their output.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aescanero/mythgate/internal/ports"
	"go.uber.org/zap"
)

// Command describes one subprocess invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the parent environment
	Env []string
}

// String renders the command line for logs
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds the captured output of a finished subprocess
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner executes commands. A non-zero exit is reported through
// Result.ExitCode, not as an error; errors mean the process could not run
// to completion.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewExecRunner creates a runner. metrics may be nil.
func NewExecRunner(metrics ports.MetricsCollector, logger *zap.Logger) *ExecRunner {
	return &ExecRunner{
		metrics: metrics,
		logger:  logger,
	}
}

// Run executes cmd and waits for it to exit or for ctx to be done
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	r.logger.Debug("running external tool",
		zap.String("command", cmd.String()),
		zap.String("dir", cmd.Dir))

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		err = fmt.Errorf("%s: %w", cmd.Name, ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		err = nil
	default:
		err = fmt.Errorf("%w: %s: %v", ErrStart, cmd.Name, err)
	}

	if r.metrics != nil {
		r.metrics.RecordToolExecution(filepath.Base(cmd.Name), res.Duration, err)
	}

	r.logger.Debug("external tool finished",
		zap.String("command", cmd.Name),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("duration", res.Duration),
		zap.Error(err))

	return res, err
}

// ErrStart is returned when a command could not be started
var ErrStart = errors.New("failed to start command")

// Tail returns at most n trailing bytes of b as a trimmed string, for error messages
func Tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
