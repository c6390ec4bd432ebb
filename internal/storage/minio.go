package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultPartSize is the multipart chunk size used when MinioOptions.PartSize is zero.
// Uploads of unknown length buffer one part in memory, so this bounds memory per upload.
const DefaultPartSize = 16 << 20

// MinioOptions configures a MinioStorage.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips the bucket location lookup when set.
	Region   string
	PartSize uint64
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
// Objects stay private: files are only reachable through the service's own
// /file endpoint.
type MinioStorage struct {
	client   *minio.Client
	bucket   string
	partSize uint64
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists and returns
// a ready-to-use MinioStorage.
func NewMinioStorage(ctx context.Context, opts MinioOptions) (*MinioStorage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", opts.Bucket, err)
		}
	}

	partSize := opts.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	return &MinioStorage{client: client, bucket: opts.Bucket, partSize: partSize}, nil
}

// Save streams reader to MinIO under key. With size -1 the body is sent as a
// multipart upload in parts of partSize, one part buffered at a time.
func (s *MinioStorage) Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, reader, size, s.putOptions(contentType))
	if err != nil {
		return 0, fmt.Errorf("put object %q: %w", key, err)
	}
	return info.Size, nil
}

// Open fetches the object metadata and returns a streaming reader for it.
func (s *MinioStorage) Open(ctx context.Context, key string) (*Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	// GetObject is lazy; Stat performs the request.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, s.mapErr(key, err)
	}
	return &Object{ReadCloser: obj, Size: info.Size, ModTime: info.LastModified}, nil
}

// Delete removes the object at key from the bucket.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// Ping verifies the bucket is still reachable.
func (s *MinioStorage) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	return nil
}

func (s *MinioStorage) putOptions(contentType string) minio.PutObjectOptions {
	return minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    s.partSize,
	}
}

func (s *MinioStorage) mapErr(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "AccessDenied":
		return ErrNotFound
	}
	return fmt.Errorf("get object %q: %w", key, err)
}
