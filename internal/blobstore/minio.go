package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// MinioConfig addresses a MinIO server. Endpoint is host:port.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Minio struct {
	client minioAPI
	bucket string
	base   string
}

var _ Store = (*Minio)(nil)

// NewMinio connects and creates the bucket if it does not exist yet.
func NewMinio(ctx context.Context, c MinioConfig, log logging.Logger) (*Minio, error) {
	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	m := &Minio{client: client, bucket: c.Bucket, base: scheme + "://" + c.Endpoint}
	if err := m.ensureBucket(ctx, logging.OrNop(log)); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Minio) ensureBucket(ctx context.Context, log logging.Logger) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	log.Info(ctx, "bucket created", "bucket", m.bucket)
	return nil
}

func (m *Minio) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	ctx, span := tracer.Start(ctx, "minio.put_object",
		trace.WithAttributes(
			attribute.String("object_key", path),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	_, err := m.client.PutObject(ctx, m.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("%w: put %s: %w", common.ErrBlobStore, path, err)
	}
	return objectURL(m.base, m.bucket, path), nil
}

func (m *Minio) Delete(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "minio.remove_object", trace.WithAttributes(attribute.String("object_key", path)))
	defer span.End()

	if err := m.client.RemoveObject(ctx, m.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: delete %s: %w", common.ErrBlobStore, path, err)
	}
	return nil
}

func (m *Minio) PathFromURL(rawURL string) (string, error) {
	return objectPath(m.base, m.bucket, rawURL)
}
