package dumper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/comoco/mysqldump/dumper/runner"
)

const (
	DefaultBinary = "mysqldump"

	// PasswordWarning is printed by mysqldump whenever --password is passed on
	// the command line. It is not an error.
	PasswordWarning = "mysqldump: [Warning] Using a password on the command line interface can be insecure."
)

// Runner runs an external command, writing its stdout and stderr to the
// given writers. Implementations must keep reading both streams while the
// process runs.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

type MysqlDump struct {
	binary     string
	runner     Runner
	timeout    time.Duration
	strictExit bool
}

type Option func(mysql *MysqlDump)

// WithBinary overrides the mysqldump executable name or path.
func WithBinary(binary string) Option {
	return func(mysql *MysqlDump) {
		mysql.binary = binary
	}
}

func WithRunner(runner Runner) Option {
	return func(mysql *MysqlDump) {
		mysql.runner = runner
	}
}

// WithTimeout bounds every dump. The process is killed once it expires.
func WithTimeout(timeout time.Duration) Option {
	return func(mysql *MysqlDump) {
		mysql.timeout = timeout
	}
}

// WithStrictExitCode makes a non-zero exit status fail the dump even when
// stderr is empty.
func WithStrictExitCode() Option {
	return func(mysql *MysqlDump) {
		mysql.strictExit = true
	}
}

func NewMysqlDump(opts ...Option) *MysqlDump {
	mysql := &MysqlDump{
		binary: DefaultBinary,
		runner: runner.NewExecRunner(nil),
	}

	for _, opt := range opts {
		opt(mysql)
	}

	return mysql
}

// Dump runs mysqldump for cfg and returns its stdout. Anything left on stderr
// after removing the password warning is returned as a *DumpExecutionError.
func (mysql *MysqlDump) Dump(ctx context.Context, cfg *Config) (string, error) {
	if err := cfg.consume(); err != nil {
		return "", err
	}

	if mysql.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mysql.timeout)
		defer cancel()
	}

	args := cfg.Args()
	slog.Debug("running mysqldump", slog.String("binary", mysql.binary), slog.Any("args", redact(args)))

	var stdout, stderr bytes.Buffer
	runErr := mysql.runner.Run(ctx, mysql.binary, args, &stdout, &stderr)

	if runErr != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return "", fmt.Errorf("%w: %v", ErrTimedOut, runErr)
		case ctx.Err() != nil:
			return "", fmt.Errorf("%w: %v", ErrCancelled, runErr)
		}
	}

	if message := filterStderr(stderr.String()); message != "" {
		return "", &DumpExecutionError{Stderr: message, Err: runErr}
	}

	if runErr != nil {
		var coder interface{ ExitCode() int }
		if !errors.As(runErr, &coder) {
			return "", fmt.Errorf("failed to run %s: %w", mysql.binary, runErr)
		}

		if mysql.strictExit {
			return "", &ExitError{Code: coder.ExitCode(), Err: runErr}
		}

		slog.Warn("mysqldump exited with non-zero status but wrote no error", slog.Int("status", coder.ExitCode()))
	}

	return stdout.String(), nil
}

// Start runs the dump in the background. The returned task can be cancelled
// at any time, which kills the mysqldump process.
func (mysql *MysqlDump) Start(ctx context.Context, cfg *Config) *Task {
	ctx, cancel := context.WithCancel(ctx)

	task := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(task.done)
		defer cancel()

		task.output, task.err = mysql.Dump(ctx, cfg)
	}()

	return task
}

func filterStderr(stderr string) string {
	return strings.TrimSpace(strings.ReplaceAll(stderr, PasswordWarning, ""))
}

func redact(args []string) []string {
	redacted := make([]string, len(args))
	for i, arg := range args {
		if strings.HasPrefix(arg, "--password=") {
			arg = "--password=******"
		}
		redacted[i] = arg
	}

	return redacted
}

type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	output string
	err    error
}

// Wait blocks until the dump finishes and returns its result.
func (t *Task) Wait() (string, error) {
	<-t.done
	return t.output, t.err
}

func (t *Task) Cancel() {
	t.cancel()
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}
