package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/satriahrh/papantulis/server/domain/repositories"
)

const (
	defaultRegion     = "us-east-1"
	defaultBucket     = "papantulis-snapshots"
	defaultURLExpiry  = 24 * time.Hour
	snapshotMediaType = "image/png"
)

// S3Config holds configuration for the snapshot object store
// Required fields:
// - Endpoint, AccessKey, SecretKey
// Optional fields with defaults:
// - Region: default "us-east-1"
// - Bucket: default "papantulis-snapshots"
// - PublicBaseURL: when set, uploads resolve to PublicBaseURL/key instead of presigned URLs
// - URLExpiry: lifetime of presigned URLs (default: 24h)
type S3Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
	URLExpiry     time.Duration
}

// S3SnapshotStore uploads cluster snapshots to an S3 compatible bucket
type S3SnapshotStore struct {
	client        *minio.Client
	bucket        string
	region        string
	publicBaseURL string
	urlExpiry     time.Duration
	logger        *zap.Logger

	initOnce sync.Once
	initErr  error
}

var _ repositories.SnapshotUploader = (*S3SnapshotStore)(nil)

// ValidateS3Config validates the S3Config
func ValidateS3Config(config S3Config) error {
	if strings.TrimSpace(config.Endpoint) == "" {
		return fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(config.AccessKey) == "" || strings.TrimSpace(config.SecretKey) == "" {
		return fmt.Errorf("s3 access key and secret key are required")
	}
	if config.URLExpiry < 0 {
		return fmt.Errorf("url expiry must be positive, got %s", config.URLExpiry)
	}
	return nil
}

// NewS3SnapshotStore creates a new snapshot store client
func NewS3SnapshotStore(config S3Config, logger *zap.Logger) (*S3SnapshotStore, error) {
	if err := ValidateS3Config(config); err != nil {
		return nil, err
	}

	region := strings.TrimSpace(config.Region)
	if region == "" {
		region = defaultRegion
		logger.Info("Using default region", zap.String("region", region))
	}

	bucket := strings.TrimSpace(config.Bucket)
	if bucket == "" {
		bucket = defaultBucket
		logger.Info("Using default bucket", zap.String("bucket", bucket))
	}

	urlExpiry := config.URLExpiry
	if urlExpiry == 0 {
		urlExpiry = defaultURLExpiry
		logger.Info("Using default URL expiry", zap.Duration("urlExpiry", urlExpiry))
	}

	client, err := minio.New(strings.TrimSpace(config.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(config.AccessKey), strings.TrimSpace(config.SecretKey), ""),
		Secure: config.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3SnapshotStore{
		client:        client,
		bucket:        bucket,
		region:        region,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(config.PublicBaseURL), "/"),
		urlExpiry:     urlExpiry,
		logger:        logger,
	}, nil
}

func (s *S3SnapshotStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		if s.initErr == nil {
			s.logger.Info("Created snapshot bucket", zap.String("bucket", s.bucket))
		}
	})
	return s.initErr
}

// Upload stores png under key and returns a URL the board can load it from
func (s *S3SnapshotStore) Upload(ctx context.Context, key string, png []byte) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if len(png) == 0 {
		return "", fmt.Errorf("snapshot is empty")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("failed to ensure bucket: %w", err)
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(png), int64(len(png)), minio.PutObjectOptions{
		ContentType: snapshotMediaType,
	}); err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}

	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + s.bucket + "/" + key, nil
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign snapshot url: %w", err)
	}

	s.logger.Debug("Uploaded snapshot",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(png)))
	return u.String(), nil
}

// NewS3ConfigFromEnv creates a new S3Config from environment variables
func NewS3ConfigFromEnv() S3Config {
	config := S3Config{
		Endpoint:      os.Getenv("SNAPSHOT_S3_ENDPOINT"),
		Region:        os.Getenv("SNAPSHOT_S3_REGION"),
		AccessKey:     os.Getenv("SNAPSHOT_S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("SNAPSHOT_S3_SECRET_KEY"),
		Bucket:        os.Getenv("SNAPSHOT_S3_BUCKET"),
		PublicBaseURL: os.Getenv("SNAPSHOT_S3_PUBLIC_URL"),
	}
	if useSSL, err := strconv.ParseBool(os.Getenv("SNAPSHOT_S3_USE_SSL")); err == nil {
		config.UseSSL = useSSL
	}
	if expiry, err := time.ParseDuration(os.Getenv("SNAPSHOT_S3_URL_EXPIRY")); err == nil && expiry > 0 {
		config.URLExpiry = expiry
	}
	return config
}
