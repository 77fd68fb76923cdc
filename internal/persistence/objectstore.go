package persistence

import (
	"bytes"
	"context"
	"errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spec-kit/reporting-service/internal/config"
)

// ObjectStore wraps the MinIO client for report artifact uploads.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore connects to the configured MinIO endpoint.
func NewObjectStore(cfg config.StorageConfig, logger *zap.Logger) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("object store client ready", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// Bucket returns the configured bucket name.
func (s *ObjectStore) Bucket() string {
	if s == nil {
		return ""
	}
	return s.bucket
}

// Put uploads an object and returns its size as stored.
func (s *ObjectStore) Put(ctx context.Context, key string, data []byte, contentType string) (int64, error) {
	if s == nil || s.client == nil {
		return 0, errors.New("object store not configured")
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errors.New("object store not configured")
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}
