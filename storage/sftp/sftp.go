package sftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/comoco/mysqldump/dumper/dialer"
	"github.com/comoco/mysqldump/storage"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	sftpdialer "github.com/pkg/sftp"
)

const (
	BaseDelay = 5 * time.Second
	MaxDelay  = 1 * time.Minute
)

var ErrNotRetryable = errors.New("error not retryable")

type Result struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Written int64  `json:"written"`
}

// Sftp uploads a dump to a remote path. Interrupted uploads of seekable
// readers resume from the last written byte.
type Sftp struct {
	mu          sync.Mutex
	written     int64
	attempts    int
	MaxAttempts int    `yaml:"maxattempts"` // 0 means retry until it succeeds
	Path        string `yaml:"path"`
	SshHost     string `yaml:"sshhost"`
	SshUser     string `yaml:"sshuser"`
	SshKey      string `yaml:"sshkey"`
	Progress    bool   `yaml:"progress"`
	Result      Result `yaml:"-"`

	sleep func(time.Duration)
}

func NewSftp(maxAttempts int, path, sshHost, sshUser, sshKey string) *Sftp {
	return &Sftp{
		MaxAttempts: maxAttempts,
		Path:        path,
		SshHost:     sshHost,
		SshUser:     sshUser,
		SshKey:      sshKey,
	}
}

func (sf *Sftp) reset() {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	sf.Result = Result{}
	sf.attempts = 0
	sf.written = 0
}

func (sf *Sftp) attempt() {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.attempts++
}

func createProgressBar(maxBytes int64) *progressbar.ProgressBar {
	return progressbar.NewOptions64(maxBytes,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(25),
		progressbar.OptionSetDescription("[cyan][reset] uploading dump via SFTP..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func (sf *Sftp) destination(reader io.Reader, offset int64) io.Writer {
	if !sf.Progress {
		return io.Discard
	}

	maxBytes := int64(-1)
	if file, ok := reader.(*os.File); ok {
		if info, err := file.Stat(); err == nil {
			maxBytes = info.Size()
		}
	}

	bar := createProgressBar(maxBytes)
	if offset > 0 {
		bar.Add64(offset)
	}

	return bar
}

func (sf *Sftp) write(reader io.Reader, path string, offset int64) error {
	// Resuming needs to rewind the reader, only seekers can do that.
	if offset > 0 {
		seeker, ok := reader.(io.Seeker)
		if !ok {
			return fmt.Errorf("can not resume upload of a non seekable dump: %w", ErrNotRetryable)
		}

		if _, err := seeker.Seek(offset, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek to offset %d: %v, %w", offset, err, ErrNotRetryable)
		}
	}

	progress := sf.destination(reader, offset)

	conn, err := dialer.NewSsh(sf.SshHost, sf.SshKey, sf.SshUser).CreateSshClient(context.Background())
	if err != nil {
		return fmt.Errorf("fail to create ssh connection, error: %v", err)
	}

	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("fail to close ssh connection", slog.Any("error", err))
		}
	}()

	client, err := sftpdialer.NewClient(conn)
	if err != nil {
		return err
	}

	defer func() {
		if err := client.Close(); err != nil {
			slog.Error("fail to close sftp connection", slog.Any("error", err))
		}
	}()

	var file *sftpdialer.File

	if offset > 0 {
		if file, err = client.OpenFile(path, os.O_WRONLY|os.O_APPEND); err != nil {
			return fmt.Errorf("fail to open remote file via SFTP, error: %v", err)
		}
	} else {
		if file, err = client.Create(path); err != nil {
			return fmt.Errorf("fail to create remote file via SFTP, error: %v", err)
		}
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("fail to close sftp file", slog.Any("error", err))
		}
	}()

	n, err := io.Copy(io.MultiWriter(file, progress), reader)

	sf.mu.Lock()
	sf.written += n
	sf.mu.Unlock()

	return err
}

// maxBackoffShift keeps BaseDelay<<shift well inside int64 while still
// reaching MaxDelay.
const maxBackoffShift = 4

func (sf *Sftp) backoff() time.Duration {
	shift := min(max(sf.attempts, 0), maxBackoffShift)
	return min(BaseDelay*time.Duration(1<<shift), MaxDelay)
}

func (sf *Sftp) Save(reader io.Reader, pathGenerator storage.PathGeneratorFunc) error {
	sf.reset()
	path := pathGenerator(sf.Path)

	sleep := sf.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	for {
		sf.attempt()
		err := sf.write(reader, path, sf.written)

		if err == nil {
			sf.Result = Result{OK: true, Written: sf.written}
			return nil
		}

		if errors.Is(err, ErrNotRetryable) {
			sf.Result = Result{Written: sf.written, Error: err.Error()}
			return err
		}

		if sf.MaxAttempts > 0 && sf.attempts >= sf.MaxAttempts {
			sf.Result = Result{Written: sf.written, Error: "reached max retries"}
			return fmt.Errorf("failed after %d attempts: %v", sf.MaxAttempts, err)
		}

		delay := sf.backoff()
		slog.Info("retrying sftp upload", slog.Int("attempt", sf.attempts), slog.Duration("delay", delay), slog.Any("error", err))
		sleep(delay)
	}
}
