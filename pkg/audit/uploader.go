package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eduledger/institute/pkg/observability"
)

// ObjectPutter is the subset of the S3 client the uploader needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config configures the audit artifact upload
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // Optional, for MinIO or other S3-compatible stores
	Prefix    string
	AccessKey string
	SecretKey string
}

// S3Uploader copies audit files into a bucket
type S3Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
	tracer trace.Tracer
}

// NewS3Uploader builds an uploader from the default AWS credential chain,
// or from static keys when both are set.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("audit bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3UploaderWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3UploaderWithClient wraps an existing client
func NewS3UploaderWithClient(client ObjectPutter, bucket, prefix string) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		tracer: observability.Tracer("github.com/eduledger/institute/pkg/audit"),
	}
}

// Key returns the object key for a file of the given run
func (u *S3Uploader) Key(runID, file string) string {
	prefix := u.prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + path.Join(runID, filepath.Base(file))
}

// UploadFile uploads one file and returns its key
func (u *S3Uploader) UploadFile(ctx context.Context, runID, file string) (string, error) {
	key := u.Key(runID, file)
	ctx, span := u.tracer.Start(ctx, "S3.PutObject", trace.WithAttributes(
		attribute.String("s3.bucket", u.bucket),
		attribute.String("s3.key", key),
	))
	defer span.End()

	data, err := os.ReadFile(file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read audit file")
		return "", fmt.Errorf("failed to read audit file: %w", err)
	}
	span.SetAttributes(attribute.Int("content.size", len(data)))

	hash := sha256.Sum256(data)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
		Metadata: map[string]string{
			"checksum-sha256": hex.EncodeToString(hash[:]),
			"run-id":          runID,
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload to s3")
		return "", fmt.Errorf("failed to upload %s to s3: %w", key, err)
	}

	span.SetStatus(codes.Ok, "uploaded")
	return key, nil
}

// UploadRun uploads every file and returns the keys written. It stops at
// the first failure.
func (u *S3Uploader) UploadRun(ctx context.Context, runID string, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, f := range files {
		key, err := u.UploadFile(ctx, runID, f)
		if err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
