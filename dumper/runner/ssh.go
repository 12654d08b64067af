package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/comoco/mysqldump/dumper/dialer"
	"golang.org/x/crypto/ssh"
)

type SshRunner struct {
	sshHost    string
	sshKey     string
	sshUser    string
	knownHosts string
}

func NewSshRunner(host, key, user string) *SshRunner {
	return &SshRunner{
		sshHost: host,
		sshKey:  key,
		sshUser: user,
	}
}

// WithKnownHosts checks the server key against a known_hosts file.
func (runner *SshRunner) WithKnownHosts(path string) *SshRunner {
	runner.knownHosts = path
	return runner
}

// RemoteExitError carries the exit status of a remote command.
type RemoteExitError struct {
	status int
	err    error
}

func (e *RemoteExitError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.status)
}

func (e *RemoteExitError) ExitCode() int {
	return e.status
}

func (e *RemoteExitError) Unwrap() error {
	return e.err
}

// quote wraps s in single quotes so a POSIX shell passes it through as one
// literal argument.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// QuoteCommand renders command and args as a remote shell command line with
// every token quoted.
func QuoteCommand(command string, args []string) string {
	tokens := make([]string, 0, len(args)+1)
	tokens = append(tokens, quote(command))

	for _, arg := range args {
		tokens = append(tokens, quote(arg))
	}

	return strings.Join(tokens, " ")
}

// Run executes the command on the remote host. An ssh session only accepts a
// command line, so every argument is quoted individually.
func (runner *SshRunner) Run(ctx context.Context, command string, args []string, stdout, stderr io.Writer) error {
	client, err := dialer.NewSsh(runner.sshHost, runner.sshKey, runner.sshUser).
		WithKnownHosts(runner.knownHosts).
		CreateSshClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to dial remote server via ssh: %w", err)
	}

	closed := false
	defer func() {
		if closed {
			return
		}

		// Do not need to call session.Close() here as it will only give EOF error.
		if err := client.Close(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			slog.Error("failed to close ssh client", slog.Any("error", err))
		}
	}()

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to start ssh session: %w", err)
	}

	session.Stdout = stdout
	session.Stderr = stderr

	if err := session.Start(QuoteCommand(command, args)); err != nil {
		return fmt.Errorf("failed to start remote command: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return &RemoteExitError{status: exitErr.ExitStatus(), err: err}
		}

		if err != nil {
			return fmt.Errorf("remote command error: %w", err)
		}

		return nil
	case <-ctx.Done():
		if err := session.Signal(ssh.SIGKILL); err != nil {
			slog.Debug("failed to signal remote command", slog.Any("error", err))
		}

		// Closing the client unblocks Wait when the server ignores signals.
		closed = true
		if err := client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Debug("failed to close ssh client", slog.Any("error", err))
		}
		<-done

		return ctx.Err()
	}
}
