package handler

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/comoco/mysqldump/config"
	"github.com/comoco/mysqldump/jobresult"
	"github.com/comoco/mysqldump/notifier/console"
)

type Notifier interface {
	Notify(results []*jobresult.JobResult) error
}

type DumpHandler struct {
	Dump *config.Dump
	out  io.Writer
	opts []JobHandlerOption
}

func NewDumpHandler(dump *config.Dump) *DumpHandler {
	return &DumpHandler{
		Dump: dump,
		out:  os.Stdout,
	}
}

// WithOutput sets where the console notifier prints job results.
func (d *DumpHandler) WithOutput(out io.Writer) *DumpHandler {
	d.out = out
	return d
}

// WithJobOptions applies opts to every job handler.
func (d *DumpHandler) WithJobOptions(opts ...JobHandlerOption) *DumpHandler {
	d.opts = append(d.opts, opts...)
	return d
}

// Do runs every job concurrently, notifies the results and returns the
// joined errors of failed jobs and notifiers.
func (d *DumpHandler) Do(ctx context.Context) error {
	var wg sync.WaitGroup

	results := make([]*jobresult.JobResult, len(d.Dump.Jobs))

	for i, job := range d.Dump.Jobs {
		wg.Add(1)
		go func(i int, job *config.Job) {
			defer wg.Done()
			results[i] = NewJobHandler(job, d.opts...).Do(ctx)
		}(i, job)
	}

	wg.Wait()

	var dumpErr error
	for _, result := range results {
		if result.Error != nil {
			dumpErr = errors.Join(dumpErr, result.Error)
		}
	}

	if err := d.notify(results); err != nil {
		dumpErr = errors.Join(dumpErr, err)
	}

	return dumpErr
}

func (d *DumpHandler) notify(results []*jobresult.JobResult) error {
	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)

	for _, notifier := range d.getNotifiers() {
		wg.Add(1)
		go func(notifier Notifier) {
			defer wg.Done()

			if err := notifier.Notify(results); err != nil {
				mu.Lock()
				errs = errors.Join(errs, err)
				mu.Unlock()
			}
		}(notifier)
	}

	wg.Wait()
	return errs
}

func (d *DumpHandler) getNotifiers() []Notifier {
	notifiers := []Notifier{console.NewWithWriter(d.out)}

	for _, slack := range d.Dump.Notifier.Slack {
		notifiers = append(notifiers, slack)
	}

	return notifiers
}
