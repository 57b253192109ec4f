package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/ocean-insight/internal/domain/chat"
)

// S3Storage writes snapshots to an S3 compatible bucket (MinIO, R2, S3).
type S3Storage struct {
	client *minio.Client
	bucket string
	region string
	logger *slog.Logger

	bucketOnce sync.Once
	bucketErr  error
}

// NewS3Storage constructs the storage adapter. endpoint may carry a scheme;
// https selects TLS.
func NewS3Storage(endpoint, accessKey, secretKey, bucket, region string, logger *slog.Logger) (*S3Storage, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("archive bucket cannot be empty")
	}
	useSSL := !strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "http://")
	client, err := minio.New(sanitizeEndpoint(endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Storage{client: client, bucket: bucket, region: region, logger: logger.With("component", "archive.s3")}, nil
}

// ensureBucket creates the bucket once per process.
func (s *S3Storage) ensureBucket(ctx context.Context) error {
	s.bucketOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err == nil && exists {
			return
		}
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
			s.bucketErr = err
			return
		}
		s.logger.Info("archive bucket created", "bucket", s.bucket)
	})
	return s.bucketErr
}

// Put uploads a snapshot.
func (s *S3Storage) Put(ctx context.Context, key string, data []byte, mimeType string) (chat.StoredObject, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return chat.StoredObject{}, fmt.Errorf("ensure bucket %s: %w", s.bucket, err)
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:      mimeType,
		DisableMultipart: true,
	})
	if err != nil {
		return chat.StoredObject{}, err
	}
	return chat.StoredObject{Key: key, Size: info.Size, MimeType: mimeType, ETag: info.ETag}, nil
}

var _ chat.ObjectStorage = (*S3Storage)(nil)

// sanitizeEndpoint removes schemes and paths to satisfy minio.New.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
