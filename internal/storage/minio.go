package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotFound = errors.New("object not found")

// MinIOStorage stores document files in one bucket and addresses them by
// public URL ({PublicURL}/{bucket}/{key}).
type MinIOStorage struct {
	client *minio.Client
	bucket string
	base   string
}

// NewMinIOStorage creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStorage(cfg *MinIOConfig) (*MinIOStorage, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOStorage{client: mc, bucket: cfg.Bucket, base: strings.TrimRight(cfg.publicBase(), "/")}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// UploadFile stores data under key and returns its public URL. The object
// is durable once this returns without error.
func (s *MinIOStorage) UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("minio put %s: %w", key, err)
	}
	return s.base + "/" + s.bucket + "/" + key, nil
}

// DownloadFileAsBuffer reads the whole object addressed by a URL returned
// from UploadFile. A bare object key is accepted too.
func (s *MinIOStorage) DownloadFileAsBuffer(ctx context.Context, fileURL string) ([]byte, error) {
	key, err := KeyFromURL(s.base, s.bucket, fileURL)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	if _, err := obj.Stat(); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	return io.ReadAll(obj)
}

// KeyFromURL strips the public base and bucket from fileURL.
func KeyFromURL(base, bucket, fileURL string) (string, error) {
	key := fileURL
	if strings.Contains(fileURL, "://") {
		prefix := strings.TrimRight(base, "/") + "/" + bucket + "/"
		if !strings.HasPrefix(fileURL, prefix) {
			return "", fmt.Errorf("url %q is outside bucket %s", fileURL, bucket)
		}
		key = strings.TrimPrefix(fileURL, prefix)
	}
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", fmt.Errorf("empty object key in %q", fileURL)
	}
	return key, nil
}
