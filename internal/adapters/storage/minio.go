package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/dkeye/Interview/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioStore puts recordings into an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioStore(ctx context.Context, cfg config.MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio storage needs endpoint and bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *MinioStore) Save(ctx context.Context, name, contentType string, r io.Reader, size int64) (string, error) {
	object := path.Join(s.prefix, name)
	info, err := s.client.PutObject(ctx, s.bucket, object, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", object, err)
	}
	log.Info().Str("module", "storage").Str("bucket", s.bucket).Str("object", object).Int64("bytes", info.Size).Msg("recording stored")
	return fmt.Sprintf("s3://%s/%s", s.bucket, object), nil
}
