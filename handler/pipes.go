package handler

import (
	"compress/gzip"
	"errors"
	"io"
)

// storagePipe is the write end of the pipe feeding one storage.
type storagePipe struct {
	pw *io.PipeWriter
	gw *gzip.Writer
}

func (p storagePipe) writer() io.Writer {
	if p.gw != nil {
		return p.gw
	}

	return p.pw
}

// close flushes the gzip footer before closing the pipe. A non-nil cause is
// returned to the storage reading the pipe instead of io.EOF, so it does not
// store a truncated dump.
func (p storagePipe) close(cause error) error {
	var err error

	if p.gw != nil && cause == nil {
		err = p.gw.Close()
		cause = err
	}

	return errors.Join(err, p.pw.CloseWithError(cause))
}

type storagePipes []storagePipe

// newStoragePipes creates one pipe per storage, all written at once through
// the writer of the returned pipes.
func newStoragePipes(count int, compress bool) ([]io.Reader, storagePipes) {
	readers := make([]io.Reader, 0, count)
	pipes := make(storagePipes, 0, count)

	for range count {
		pr, pw := io.Pipe()
		pipe := storagePipe{pw: pw}

		if compress {
			pipe.gw = gzip.NewWriter(pw)
		}

		readers = append(readers, pr)
		pipes = append(pipes, pipe)
	}

	return readers, pipes
}

func (pipes storagePipes) writer() io.Writer {
	writers := make([]io.Writer, 0, len(pipes))
	for _, p := range pipes {
		writers = append(writers, p.writer())
	}

	return io.MultiWriter(writers...)
}

func (pipes storagePipes) close(cause error) error {
	var errs error
	for _, p := range pipes {
		errs = errors.Join(errs, p.close(cause))
	}

	return errs
}
