package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
)

// FSStorage implements ObjectStorage on the local filesystem.
type FSStorage struct {
	basePath string
	logger   observability.Logger
	metrics  observability.Metrics
}

// NewFSStorage creates the base directory if needed.
func NewFSStorage(basePath string, logger observability.Logger, metrics observability.Metrics) (*FSStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create archive base path: %w", err)
	}
	logger.Info(context.Background(), "Filesystem archive initialized", observability.Fields{
		"base_path": basePath,
	})
	return &FSStorage{basePath: basePath, logger: logger, metrics: metrics}, nil
}

func (s *FSStorage) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	start := time.Now()
	objectPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(objectPath), 0755); err != nil {
		s.metrics.RecordError("archive_put", "mkdir")
		return fmt.Errorf("create archive directory: %w", err)
	}

	f, err := os.Create(objectPath)
	if err != nil {
		s.metrics.RecordError("archive_put", "create")
		return fmt.Errorf("create archive object: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		s.metrics.RecordError("archive_put", "write")
		return fmt.Errorf("write archive object: %w", err)
	}

	s.metrics.RecordSuccess("archive_put")
	s.metrics.RecordDuration("archive_put", time.Since(start).Seconds())
	s.logger.Debug(ctx, "Object archived", observability.Fields{
		"key":   key,
		"bytes": written,
	})
	return nil
}
