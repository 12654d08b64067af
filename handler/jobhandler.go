package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/comoco/mysqldump/config"
	"github.com/comoco/mysqldump/dumper"
	"github.com/comoco/mysqldump/jobresult"
	"github.com/comoco/mysqldump/schema"
	"github.com/comoco/mysqldump/storage"
)

// Verifier checks that the dumped database and tables exist.
type Verifier interface {
	Verify(ctx context.Context, database string, tables []string) error
}

type JobHandler struct {
	Job       *config.Job
	mysqldump *dumper.MysqlDump
	verifier  Verifier
}

type JobHandlerOption func(handler *JobHandler)

// WithMysqlDump replaces the executor derived from the job.
func WithMysqlDump(mysqldump *dumper.MysqlDump) JobHandlerOption {
	return func(handler *JobHandler) {
		handler.mysqldump = mysqldump
	}
}

func WithVerifier(verifier Verifier) JobHandlerOption {
	return func(handler *JobHandler) {
		handler.verifier = verifier
	}
}

// Create a new job handler.
func NewJobHandler(job *config.Job, opts ...JobHandlerOption) *JobHandler {
	handler := &JobHandler{
		Job: job,
	}

	for _, opt := range opts {
		opt(handler)
	}

	if handler.mysqldump == nil {
		handler.mysqldump = job.MysqlDump()
	}

	return handler
}

func (handler *JobHandler) verify(ctx context.Context, cfg *dumper.Config) error {
	verifier := handler.verifier

	if verifier == nil {
		conn, err := handler.Job.Connection()
		if err != nil {
			return err
		}

		db, err := schema.Open(conn.DSN())
		if err != nil {
			return err
		}

		defer func() {
			if err := db.Close(); err != nil {
				slog.Error("fail to close DB", slog.Any("error", err))
			}
		}()

		verifier = schema.NewChecker(db)
	}

	return verifier.Verify(ctx, cfg.Database(), cfg.Tables())
}

// Run mysqldump for the job and return the sql it printed.
func (handler *JobHandler) dump(ctx context.Context) (string, error) {
	builder, err := handler.Job.Builder()
	if err != nil {
		return "", err
	}

	cfg := builder.Build()

	if handler.Job.Verify {
		if err := handler.verify(ctx, cfg); err != nil {
			return "", fmt.Errorf("failed to verify dump target: %w", err)
		}
	}

	return handler.mysqldump.Dump(ctx, cfg)
}

// Save database dump to different storages.
func (handler *JobHandler) save(content string) error {
	job := handler.Job
	storages := handler.getStorages()
	numberOfStorages := len(storages)

	if numberOfStorages == 0 {
		slog.Warn("no storage is configured, the dump is discarded", slog.String("job", job.Name))
		return nil
	}

	var (
		mu   sync.Mutex
		errs error
	)

	appendErr := func(err error) {
		mu.Lock()
		errs = errors.Join(errs, err)
		mu.Unlock()
	}

	// Use pipe to pass content from the database dump to different writer.
	readers, pipes := newStoragePipes(numberOfStorages, job.Gzip)

	go func() {
		_, err := io.Copy(pipes.writer(), strings.NewReader(content))
		if err != nil {
			appendErr(fmt.Errorf("failed to write dump to storages: %w", err))
		}

		if err := pipes.close(err); err != nil {
			slog.Error("can not close storage pipes", slog.Any("error", err))
		}
	}()

	var wg sync.WaitGroup
	wg.Add(numberOfStorages)
	for i, s := range storages {
		go func(i int, s storage.Storage) {
			defer wg.Done()

			if err := s.Save(readers[i], storage.PathGenerator(job.Gzip, job.Unique)); err != nil {
				appendErr(err)
			}

			// Drain whatever the storage did not read, otherwise the writer blocks forever.
			if _, err := io.Copy(io.Discard, readers[i]); err != nil {
				slog.Debug("failed to drain storage pipe", slog.Any("error", err))
			}
		}(i, s)
	}

	wg.Wait()

	return errs
}

// Get all storage structs based on job configuration.
func (handler *JobHandler) getStorages() []storage.Storage {
	var storages []storage.Storage

	for _, s := range handler.Job.Storage.Local {
		storages = append(storages, s)
	}

	for _, s := range handler.Job.Storage.S3 {
		storages = append(storages, s)
	}

	for _, s := range handler.Job.Storage.Sftp {
		storages = append(storages, s)
	}

	for _, s := range handler.Job.Storage.GDrive {
		storages = append(storages, s)
	}

	for _, s := range handler.Job.Storage.Dropbox {
		storages = append(storages, s)
	}

	return storages
}

// Do the job.
func (handler *JobHandler) Do(ctx context.Context) *jobresult.JobResult {
	start := time.Now()
	result := &jobresult.JobResult{
		JobName: handler.Job.Name,
	}

	defer func() {
		result.Elapsed = time.Since(start)
	}()

	content, err := handler.dump(ctx)
	if err != nil {
		result.Error = fmt.Errorf("failed to dump database: %w", err)
		return result
	}

	result.Size = len(content)

	if err := handler.save(content); err != nil {
		result.Error = fmt.Errorf("failed to store dump file: %w", err)
	}

	return result
}
