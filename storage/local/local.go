package local

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/comoco/mysqldump/storage"
)

type Local struct {
	Path string `yaml:"path"`
}

func (local *Local) Save(reader io.Reader, pathGenerator storage.PathGeneratorFunc) error {
	path := pathGenerator(local.Path)

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create local dump dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create local dump file: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close local dump file", slog.Any("error", err), slog.String("path", path))
		}
	}()

	_, err = io.Copy(file, reader)

	if err != nil {
		return fmt.Errorf("failed to copy dump to the dest file: %w", err)
	}

	return nil
}
