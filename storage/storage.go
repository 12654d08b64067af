package storage

import (
	"io"

	"github.com/comoco/mysqldump/fileutil"
)

// PathGeneratorFunc turns the configured destination into the final path of
// a dump, e.g. adding a .gz suffix or a timestamp prefix.
type PathGeneratorFunc func(filename string) string

type Storage interface {
	Save(reader io.Reader, pathGenerator PathGeneratorFunc) error
}

func PathGenerator(shouldGzip, unique bool) PathGeneratorFunc {
	return func(filename string) string {
		return fileutil.EnsureFileName(filename, shouldGzip, unique)
	}
}
