package audit

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tracklet/tracklet/pkg/observability"
)

// S3Client is the slice of the S3 API the archiver needs
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver ships aged audit events to S3 as gzipped NDJSON and then removes
// them from the database trail
type Archiver struct {
	sink      *DBSink
	client    S3Client
	bucket    string
	keyPrefix string
	retention time.Duration
	logger    *observability.Logger

	now func() time.Time
}

// ArchiverOptions configures the archiver
type ArchiverOptions struct {
	Bucket    string
	KeyPrefix string
	Retention time.Duration
}

// NewArchiver creates an archiver over the database sink
func NewArchiver(sink *DBSink, client S3Client, opts ArchiverOptions, logger *observability.Logger) (*Archiver, error) {
	if sink == nil {
		return nil, fmt.Errorf("database sink is required")
	}
	if client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if opts.Retention <= 0 {
		opts.Retention = 90 * 24 * time.Hour
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "audit"
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Archiver{
		sink:      sink,
		client:    client,
		bucket:    opts.Bucket,
		keyPrefix: opts.KeyPrefix,
		retention: opts.Retention,
		logger:    logger.WithComponent("audit_archiver"),
		now:       time.Now,
	}, nil
}

// Run archives every event older than the retention window. Events are
// deleted only after the upload succeeds.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().UTC().Add(-a.retention)

	events, err := a.sink.EventsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to load aged events: %w", err)
	}
	if len(events) == 0 {
		a.logger.Debug("no audit events to archive", "cutoff", cutoff)
		return nil
	}

	data, err := exportNDJSON(events)
	if err != nil {
		return fmt.Errorf("failed to serialize archive: %w", err)
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("failed to compress archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	key := fmt.Sprintf("%s/%s/audit-%s.ndjson.gz",
		a.keyPrefix,
		cutoff.Format("2006/01"),
		a.now().UTC().Format("20060102T150405Z"),
	)

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(a.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(compressed.Bytes()),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive to s3://%s/%s: %w", a.bucket, key, err)
	}

	deleted, err := a.sink.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive uploaded but trail cleanup failed: %w", err)
	}

	a.logger.Info("archived audit events",
		"count", len(events),
		"deleted", deleted,
		"bucket", a.bucket,
		"key", key,
	)
	return nil
}
