// Package storage keeps copies of raw uploads in S3.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ignite/copyloop/internal/pkg/logger"
)

// PutObjectAPI is the subset of the S3 client used by the archiver.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ArchiveConfig configures an S3Archiver.
type S3ArchiveConfig struct {
	Bucket   string
	Prefix   string
	Region   string
	Compress bool
}

// S3Archiver stores uploads under Prefix + key in one bucket.
type S3Archiver struct {
	client   PutObjectAPI
	bucket   string
	prefix   string
	compress bool
}

// NewS3Archiver wraps an existing client.
func NewS3Archiver(client PutObjectAPI, cfg S3ArchiveConfig) *S3Archiver {
	return &S3Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, compress: cfg.Compress}
}

// NewS3ArchiverFromConfig loads the default AWS credential chain.
func NewS3ArchiverFromConfig(ctx context.Context, cfg S3ArchiveConfig) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	logger.Info("s3 archiver initialized", "bucket", cfg.Bucket, "prefix", cfg.Prefix, "region", region, "compress", cfg.Compress)
	return NewS3Archiver(s3.NewFromConfig(awsCfg), cfg), nil
}

// Archive uploads body as text/csv. With compression on, the object key
// gets a .gz suffix and the body is gzipped in memory first.
func (a *S3Archiver) Archive(ctx context.Context, key string, body io.Reader) error {
	key = a.prefix + key
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("text/csv"),
		Metadata: map[string]string{
			"archived_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if a.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := io.Copy(zw, body); err != nil {
			return fmt.Errorf("compress upload: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress upload: %w", err)
		}
		key += ".gz"
		input.Key = aws.String(key)
		input.Body = bytes.NewReader(buf.Bytes())
		input.ContentEncoding = aws.String("gzip")
	}

	if _, err := a.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	logger.Debug("upload archived", "bucket", a.bucket, "key", key)
	return nil
}
