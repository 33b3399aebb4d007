package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
)

// S3Storage implements ObjectStorage against an S3 bucket.
type S3Storage struct {
	client  *s3.Client
	bucket  string
	logger  observability.Logger
	metrics observability.Metrics
}

// NewS3Storage loads the default AWS credential chain and targets bucket.
func NewS3Storage(ctx context.Context, bucket, region string, logger observability.Logger, metrics observability.Metrics) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	logger.Info(ctx, "S3 archive initialized", observability.Fields{
		"bucket": bucket,
		"region": region,
	})

	return &S3Storage{
		client:  s3.NewFromConfig(awsCfg),
		bucket:  bucket,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func (s *S3Storage) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	start := time.Now()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        r,
		ContentType: &contentType,
	})
	if err != nil {
		s.metrics.RecordError("archive_put", "s3")
		return fmt.Errorf("put s3 object %s: %w", key, err)
	}

	s.metrics.RecordSuccess("archive_put")
	s.metrics.RecordDuration("archive_put", time.Since(start).Seconds())
	s.logger.Debug(ctx, "Object archived to S3", observability.Fields{
		"bucket": s.bucket,
		"key":    key,
	})
	return nil
}
