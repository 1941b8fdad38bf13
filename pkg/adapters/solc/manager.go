// Package solc selects Solidity compiler versions through solc-select.
package solc

import (
	"context"
	"fmt"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/pkg/adapters/toolexec"
	"go.uber.org/zap"
)

// Manager installs and activates compiler versions. solc-select switches a
// host-wide symlink, so only one version can be active at a time: callers
// hold the manager for the whole compile.
type Manager struct {
	binary string
	runner toolexec.Runner
	logger *zap.Logger

	// lock is a context-aware mutex
	lock      chan struct{}
	current   string
	installed map[string]bool
}

// NewManager creates a new compiler manager
func NewManager(binary string, runner toolexec.Runner, logger *zap.Logger) *Manager {
	return &Manager{
		binary:    binary,
		runner:    runner,
		logger:    logger,
		lock:      make(chan struct{}, 1),
		installed: make(map[string]bool),
	}
}

// Use activates version and runs fn while holding it
func (m *Manager) Use(ctx context.Context, version string, fn func(ctx context.Context) error) error {
	select {
	case m.lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for compiler %s: %w", version, ctx.Err())
	}
	defer func() { <-m.lock }()

	if err := m.selectVersion(ctx, version); err != nil {
		return err
	}
	return fn(ctx)
}

func (m *Manager) selectVersion(ctx context.Context, version string) error {
	if m.current == version {
		return nil
	}

	if !m.installed[version] {
		if err := m.exec(ctx, "install", version); err != nil {
			return err
		}
		m.installed[version] = true
		m.logger.Info("compiler installed", zap.String("version", version))
	}

	if err := m.exec(ctx, "use", version); err != nil {
		return err
	}
	m.current = version
	m.logger.Info("compiler selected", zap.String("version", version))

	return nil
}

func (m *Manager) exec(ctx context.Context, action, version string) error {
	res, err := m.runner.Run(ctx, toolexec.Command{
		Name: m.binary,
		Args: []string{action, version},
	})
	if err != nil {
		return fmt.Errorf("%w: solc-select %s %s: %w", domain.ErrToolFailed, action, version, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%w: solc-select %s %s exited with code %d: %s",
			domain.ErrToolFailed, action, version, res.ExitCode, toolexec.Tail(res.Stderr, 512))
	}
	return nil
}
