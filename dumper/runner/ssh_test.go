package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteCommand(t *testing.T) {
	assert := assert.New(t)

	actual := QuoteCommand("mysqldump", []string{"--port=3306", "--password=p'ss", "app", "users", "--where=id > 5"})
	expected := `'mysqldump' '--port=3306' '--password=p'\''ss' 'app' 'users' '--where=id > 5'`

	assert.Equal(expected, actual)
	assert.Equal("'mysqldump'", QuoteCommand("mysqldump", nil))
	assert.Equal(`'$(whoami)'`, quote("$(whoami)"))
}

func TestSshRunnerInvalidKey(t *testing.T) {
	runner := NewSshRunner("127.0.0.1", "not a key", "root")

	err := runner.Run(context.Background(), "mysqldump", nil, nil, nil)
	assert.ErrorContains(t, err, "failed to dial remote server via ssh")
}

func TestRemoteExitError(t *testing.T) {
	err := &RemoteExitError{status: 2}

	assert.Equal(t, 2, err.ExitCode())
	assert.Equal(t, "remote command exited with status 2", err.Error())
}
