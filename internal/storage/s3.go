package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Mirror copies exports to remote object storage.
type Mirror interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
}

// S3Options configures the S3 mirror.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Mirror uploads exports to an S3 bucket.
type S3Mirror struct {
	client *s3.Client
	bucket string
	log    *zap.Logger
}

// NewS3Mirror builds a client from opts. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Mirror(ctx context.Context, opts S3Options, log *zap.Logger) (*S3Mirror, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 mirror: bucket is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &S3Mirror{client: client, bucket: opts.Bucket, log: log}, nil
}

// Upload puts one object.
func (m *S3Mirror) Upload(ctx context.Context, key string, body io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String("text/csv"),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		m.log.Error("Failed to upload export to S3",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("uploading %s: %w", key, err)
	}

	m.log.Info("Export uploaded to S3",
		zap.String("bucket", m.bucket),
		zap.String("key", key),
		zap.Int64("size", size))
	return nil
}

// Delete removes one object.
func (m *S3Mirror) Delete(ctx context.Context, key string) error {
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}
