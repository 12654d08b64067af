package fileutil

import (
	"path/filepath"
	"strings"
	"time"
)

const uniqueTimeLayout = "20060102150405"

// Ensure a file has proper file extension.
func EnsureFileSuffix(filename string, shouldGzip bool) string {
	if !shouldGzip {
		return filename
	}

	if strings.HasSuffix(filename, ".gz") {
		return filename
	}

	return filename + ".gz"
}

// Ensure a file has unique name when necessary.
func ensureUniqueness(path string, unique bool, now time.Time) string {
	if !unique {
		return path
	}

	dir, filename := filepath.Split(path)
	filename = now.UTC().Format(uniqueTimeLayout) + "-" + filename

	return filepath.Join(dir, filename)
}

// EnsureFileName returns the dump destination with a .gz suffix when the dump
// is compressed and a timestamp prefix when every dump must get its own file.
func EnsureFileName(path string, shouldGzip, unique bool) string {
	p := EnsureFileSuffix(path, shouldGzip)
	return ensureUniqueness(p, unique, time.Now())
}
