package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// DefaultWaitDelay bounds how long a killed process may hold its output pipes open.
const DefaultWaitDelay = 5 * time.Second

type ExecRunner struct {
	envs      []string
	waitDelay time.Duration
}

func NewExecRunner(envs []string) *ExecRunner {
	return &ExecRunner{
		envs:      envs,
		waitDelay: DefaultWaitDelay,
	}
}

// Run starts command with args as discrete process arguments, no shell is
// involved. Stdout and stderr are copied concurrently while the process runs.
func (runner *ExecRunner) Run(ctx context.Context, command string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, command, args...)

	if len(runner.envs) > 0 {
		cmd.Env = append(os.Environ(), runner.envs...)
	}

	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = runner.waitDelay

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command error: %w", err)
	}

	return nil
}
