package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeMysqldump(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "mysqldump")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nprintf '%s\\n' \"$@\"\n"), 0700))

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	RootCmd.SetArgs(args)
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)

	err := RootCmd.Execute()
	return out.String(), err
}

func TestRootCmdMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "jobs.yaml")

	_, err := execute(t, "-f", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read job file from "+missing)
}

func TestRootCmdNoJob(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(filename, nil, 0600))

	_, err := execute(t, "-f", filename)
	assert.ErrorIs(t, err, ErrNoJob)
}

func TestRootCmdInvalidJob(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(filename, []byte("jobs:\n- name: ''\n  dbdsn: root@tcp(127.0.0.1)/app\n"), 0600))

	_, err := execute(t, "-f", filename)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid job configuration")
}

func TestRootCmdRunsJobs(t *testing.T) {
	dir := t.TempDir()
	binary := fakeMysqldump(t)
	dumpFile := filepath.Join(dir, "app.sql")

	jobs := `jobs:
- name: local-dump
  dbdsn: root@tcp(127.0.0.1:3307)/app
  binary: ` + binary + `
  tables:
  - name: users
    where: id > 5
  options:
  - name: single-transaction
  - name: set-gtid-purged
    value: "OFF"
  storage:
    local:
    - path: ` + dumpFile + `
`
	filename := filepath.Join(dir, "jobs.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(jobs), 0600))

	out, err := execute(t, "-f", filename)
	require.NoError(t, err)
	assert.Contains(t, out, "local-dump succeeded")

	content, err := os.ReadFile(dumpFile)
	require.NoError(t, err)

	expected := "--port=3307\n--host=127.0.0.1\n--user=root\n--single-transaction\n--set-gtid-purged=OFF\napp\nusers\n--where=id > 5\n"
	assert.Equal(t, expected, string(content))
}

func TestSchedule(t *testing.T) {
	scheduler, err := schedule("0 2 * * *", func() {})
	require.NoError(t, err)
	assert.Len(t, scheduler.Jobs(), 1)

	_, err = schedule("not a cron", func() {})
	assert.ErrorContains(t, err, "invalid cron expression")
}
