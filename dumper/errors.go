package dumper

import (
	"errors"
	"fmt"
)

var (
	ErrCancelled = errors.New("dump cancelled")
	ErrTimedOut  = errors.New("dump timed out")
)

// DumpExecutionError is returned when mysqldump writes anything to stderr
// besides the password warning.
type DumpExecutionError struct {
	Stderr string
	Err    error // runner error, nil when the process exited cleanly
}

func (e *DumpExecutionError) Error() string {
	return fmt.Sprintf("mysqldump error: %s", e.Stderr)
}

func (e *DumpExecutionError) Unwrap() error {
	return e.Err
}

// ExitError reports a non-zero exit status with no diagnostics on stderr. It
// is only returned in strict exit code mode.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("mysqldump exited with status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
