package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comoco/mysqldump/testutils"
)

func TestSshRunnerRun(t *testing.T) {
	privateKey, err := testutils.GenerateRSAPrivateKey()
	require.NoError(t, err)

	commands := make(chan string, 1)
	handle := testutils.HandleExec(func(command string, stdout, stderr io.Writer) uint32 {
		commands <- command
		io.WriteString(stdout, "CREATE TABLE users;")
		return 0
	})

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	onClient := func() {
		runner := NewSshRunner("127.0.0.1:20031", privateKey, "root")
		done <- runner.Run(context.Background(), "mysqldump", []string{"app", "--where=name = 'x'"}, &stdout, &stderr)
	}

	require.NoError(t, testutils.StartSshServer("127.0.0.1:20031", privateKey, 1, onClient, handle))
	require.NoError(t, <-done)

	assert.Equal(t, `'mysqldump' 'app' '--where=name = '\''x'\'''`, <-commands)
	assert.Equal(t, "CREATE TABLE users;", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestSshRunnerRunExitStatus(t *testing.T) {
	privateKey, err := testutils.GenerateRSAPrivateKey()
	require.NoError(t, err)

	handle := testutils.HandleExec(func(command string, stdout, stderr io.Writer) uint32 {
		io.WriteString(stderr, "mysqldump: Got error: 1049: Unknown database 'app'")
		return 2
	})

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	onClient := func() {
		runner := NewSshRunner("127.0.0.1:20032", privateKey, "root")
		done <- runner.Run(context.Background(), "mysqldump", []string{"app"}, &stdout, &stderr)
	}

	require.NoError(t, testutils.StartSshServer("127.0.0.1:20032", privateKey, 1, onClient, handle))

	err = <-done
	var exitErr *RemoteExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.ExitCode())
	assert.Contains(t, stderr.String(), "Unknown database 'app'")
}

func TestSshRunnerRunDeadline(t *testing.T) {
	privateKey, err := testutils.GenerateRSAPrivateKey()
	require.NoError(t, err)

	release := make(chan struct{})
	handle := testutils.HandleExec(func(command string, stdout, stderr io.Writer) uint32 {
		<-release
		return 0
	})

	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo})))

	done := make(chan error, 1)
	onClient := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		runner := NewSshRunner("127.0.0.1:20033", privateKey, "root")
		done <- runner.Run(ctx, "mysqldump", []string{"app"}, io.Discard, io.Discard)
	}

	serverErr := testutils.StartSshServer("127.0.0.1:20033", privateKey, 1, onClient, handle)
	err = <-done
	captured := logs.String()

	slog.SetDefault(previous)
	close(release)

	require.NoError(t, serverErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotContains(t, captured, "level=ERROR")
}
