package blobstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/drivesync/internal/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config addresses an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// S3 stores payloads with PutObject/DeleteObject. Path-style addressing is
// used so MinIO and other S3-compatible servers work unchanged.
type S3 struct {
	client   s3API
	endpoint string
	bucket   string
}

var _ Store = (*S3)(nil)

func NewS3(ctx context.Context, c S3Config) (*S3, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(c.Endpoint)
		o.UsePathStyle = true
	})

	return &S3{client: client, endpoint: c.Endpoint, bucket: c.Bucket}, nil
}

func (s *S3) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "s3.put_object",
		trace.WithAttributes(
			attribute.String("object_key", path),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: put %s: %w", common.ErrBlobStore, path, err)
	}
	return objectURL(s.endpoint, s.bucket, path), nil
}

func (s *S3) Delete(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "s3.delete_object", trace.WithAttributes(attribute.String("object_key", path)))
	defer span.End()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: delete %s: %w", common.ErrBlobStore, path, err)
	}
	return nil
}

func (s *S3) PathFromURL(rawURL string) (string, error) {
	return objectPath(s.endpoint, s.bucket, rawURL)
}
