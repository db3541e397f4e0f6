package blobstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/drivesync/internal/common"
	"github.com/dmitrijs2005/drivesync/internal/logging"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectURL_RoundTripsEscapedNames(t *testing.T) {
	path := "users/u1/1714557600000_my photo#1.png"
	u := objectURL("http://127.0.0.1:9000/", "drive", path)
	assert.Equal(t, "http://127.0.0.1:9000/drive/users/u1/1714557600000_my%20photo%231.png", u)

	got, err := objectPath("http://127.0.0.1:9000", "drive", u)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestObjectPath_Foreign(t *testing.T) {
	_, err := objectPath("http://a", "b", "http://elsewhere/b/x")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = objectPath("http://a", "b", "http://a/b/")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestMemory_PutDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	u, err := m.Put(ctx, "users/u1/1_a.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)

	p, err := m.PathFromURL(u)
	require.NoError(t, err)
	assert.Equal(t, "users/u1/1_a.txt", p)

	data, ct, ok := m.Get(p)
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "text/plain", ct)

	require.NoError(t, m.Delete(ctx, p))
	require.NoError(t, m.Delete(ctx, p))
	assert.Equal(t, 0, m.Len())

	_, err = m.Put(ctx, "", nil, "")
	assert.ErrorIs(t, err, common.ErrBlobStore)
}

type fakeS3 struct {
	putKey, delKey string
	putType        string
	putErr, delErr error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putKey = aws.ToString(in.Key)
	f.putType = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, f.putErr
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.delKey = aws.ToString(in.Key)
	return &s3.DeleteObjectOutput{}, f.delErr
}

func TestNewS3_AppliesConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	fake := &fakeS3{}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(&opts)
		}
		return fake
	}

	s, err := NewS3(context.Background(), S3Config{
		Endpoint: "http://127.0.0.1:9000", Region: "us-east-1", Bucket: "drive",
		AccessKey: "minioadmin", SecretKey: "minioadmin",
	})
	require.NoError(t, err)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)

	u, err := s.Put(context.Background(), "users/u1/5_x.png", []byte{1, 2}, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/drive/users/u1/5_x.png", u)
	assert.Equal(t, "users/u1/5_x.png", fake.putKey)
	assert.Equal(t, "image/png", fake.putType)

	p, err := s.PathFromURL(u)
	require.NoError(t, err)
	require.NoError(t, s.Delete(context.Background(), p))
	assert.Equal(t, "users/u1/5_x.png", fake.delKey)
}

func TestNewS3_LoadError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}
	_, err := NewS3(context.Background(), S3Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no creds")
}

func TestS3_ErrorsWrapBlobStore(t *testing.T) {
	putErr, delErr := errors.New("503"), errors.New("403")
	fake := &fakeS3{putErr: putErr, delErr: delErr}
	s := &S3{client: fake, endpoint: "http://h", bucket: "b"}

	_, err := s.Put(context.Background(), "p", nil, "")
	assert.ErrorIs(t, err, common.ErrBlobStore)
	assert.ErrorIs(t, err, putErr)

	err = s.Delete(context.Background(), "p")
	assert.ErrorIs(t, err, common.ErrBlobStore)
	assert.ErrorIs(t, err, delErr)
}

type fakeMinio struct {
	exists  bool
	made    bool
	objects map[string][]byte
	putErr  error
	delErr  error
}

func (f *fakeMinio) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.exists, nil
}

func (f *fakeMinio) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.made = true
	return nil
}

func (f *fakeMinio) PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	b, _ := io.ReadAll(r)
	f.objects[name] = b
	return minio.UploadInfo{Key: name, Size: size}, nil
}

func (f *fakeMinio) RemoveObject(ctx context.Context, bucket, name string, opts minio.RemoveObjectOptions) error {
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.objects, name)
	return nil
}

func TestMinio_EnsureBucketAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeMinio{objects: map[string][]byte{}}
	m := &Minio{client: fake, bucket: "drive", base: "http://localhost:9000"}

	require.NoError(t, m.ensureBucket(ctx, nopLogger()))
	assert.True(t, fake.made)

	u, err := m.Put(ctx, "users/u1/7_v.mp4", []byte("vid"), "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/drive/users/u1/7_v.mp4", u)
	assert.Equal(t, []byte("vid"), fake.objects["users/u1/7_v.mp4"])

	p, err := m.PathFromURL(u)
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, p))
	assert.Empty(t, fake.objects)

	fake.putErr = errors.New("disk full")
	_, err = m.Put(ctx, "x", nil, "")
	assert.ErrorIs(t, err, common.ErrBlobStore)
	assert.ErrorIs(t, err, fake.putErr)

	fake.delErr = errors.New("access denied")
	err = m.Delete(ctx, "x")
	assert.ErrorIs(t, err, common.ErrBlobStore)
	assert.ErrorIs(t, err, fake.delErr)
}

func nopLogger() logging.Logger { return logging.Nop{} }
