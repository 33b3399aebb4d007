// Package storage provides the object storage port used to archive
// downloaded datasheets, with filesystem and S3 adapters.
package storage

import (
	"context"
	"io"

	"github.com/br00k-3/Datasheet-Grabber/internal/config"
	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
)

// ObjectStorage stores archived artifacts under a key.
type ObjectStorage interface {
	// Put stores the object read from r under key.
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
}

// NewFromConfig builds the archive backend selected by the configuration.
// Returns nil when archiving is disabled.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger observability.Logger, metrics observability.Metrics) (ObjectStorage, error) {
	if !cfg.ArchiveEnabled {
		return nil, nil
	}
	switch cfg.ArchiveBackend {
	case "s3":
		return NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, logger, metrics)
	default:
		return NewFSStorage(cfg.ArchiveFSPath, logger, metrics)
	}
}
