package flatten

import (
	"context"
	"fmt"

	"github.com/aescanero/mythgate/internal/domain"
	"github.com/aescanero/mythgate/pkg/adapters/toolexec"
)

// CommandFlattener runs an external flattening tool on the entry file and
// takes the flattened source from its stdout.
type CommandFlattener struct {
	binary string
	args   []string
	runner toolexec.Runner
}

// NewCommandFlattener creates a flattener backed by an external tool
func NewCommandFlattener(binary string, args []string, runner toolexec.Runner) *CommandFlattener {
	return &CommandFlattener{
		binary: binary,
		args:   args,
		runner: runner,
	}
}

// Flatten implements ports.Flattener
func (f *CommandFlattener) Flatten(ctx context.Context, root, entry string) ([]byte, error) {
	args := append(append([]string(nil), f.args...), entry)
	res, err := f.runner.Run(ctx, toolexec.Command{
		Name: f.binary,
		Args: args,
		Dir:  root,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrToolFailed, f.binary, err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: %s exited with code %d: %s",
			domain.ErrToolFailed, f.binary, res.ExitCode, toolexec.Tail(res.Stderr, 512))
	}
	if len(res.Stdout) == 0 {
		return nil, fmt.Errorf("%w: %s produced no output", domain.ErrToolFailed, f.binary)
	}
	return res.Stdout, nil
}
