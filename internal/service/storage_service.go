// Package service contains the business logic layer.
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"log/slog"

	appconfig "github.com/cellarlog/cellarlog/internal/config"
)

// Object key prefixes. Backup archives and export files are the only
// artifacts cellarlog writes to object storage.
const (
	backupPrefix = "backups/"
	exportPrefix = "exports/"
)

// StorageService handles object storage operations (S3-compatible:
// Tigris, MinIO, R2, plain S3). It is disabled cleanly when no bucket
// is configured; callers check IsEnabled or rely on the no-op behavior
// of the Store* methods.
type StorageService struct {
	client  *s3.Client
	bucket  string
	enabled bool
	logger  *slog.Logger
}

// NewStorageService creates a new storage service.
func NewStorageService(cfg *appconfig.Config, logger *slog.Logger) (*StorageService, error) {
	if !cfg.StorageEnabled {
		logger.Info("storage service disabled - no bucket configured")
		return &StorageService{
			enabled: false,
			logger:  logger,
		}, nil
	}

	// Load AWS config with static credentials
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.StorageRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.StorageAccessKey,
			cfg.StorageSecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Custom endpoint for S3-compatible storage providers
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.StorageEndpoint)
		o.UsePathStyle = true // Required for some S3-compatible services
	})

	logger.Info("storage service initialized",
		"bucket", cfg.StorageBucket,
		"endpoint", cfg.StorageEndpoint,
	)

	return &StorageService{
		client:  client,
		bucket:  cfg.StorageBucket,
		enabled: true,
		logger:  logger,
	}, nil
}

// IsEnabled returns whether storage is configured and available.
func (s *StorageService) IsEnabled() bool {
	return s.enabled
}

// Bucket returns the configured bucket name.
func (s *StorageService) Bucket() string {
	return s.bucket
}

// StoreExport uploads an export file under exports/ and returns its key.
func (s *StorageService) StoreExport(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if !s.enabled {
		return "", ErrStorageDisabled
	}

	key := exportPrefix + filename
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store export: %w", err)
	}

	s.logger.Info("stored export", "key", key, "size_bytes", len(data))
	return key, nil
}

// StoreBackupArchive uploads a local backup archive under backups/ and
// returns its key.
func (s *StorageService) StoreBackupArchive(ctx context.Context, archivePath string) (string, error) {
	if !s.enabled {
		return "", ErrStorageDisabled
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	key := backupPrefix + info.Name()
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/vnd.sqlite3"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store backup archive: %w", err)
	}

	s.logger.Info("stored backup archive", "key", key, "size_bytes", info.Size())
	return key, nil
}

// GetObject downloads an object by key.
func (s *StorageService) GetObject(ctx context.Context, key string) ([]byte, error) {
	if !s.enabled {
		return nil, ErrStorageDisabled
	}

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer func() { _ = output.Body.Close() }()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

// DeleteObject deletes an object by key.
func (s *StorageService) DeleteObject(ctx context.Context, key string) error {
	if !s.enabled {
		return nil // Silently skip if storage is disabled
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}

	s.logger.Info("deleted object", "key", key)
	return nil
}

// StoredObject describes one object in the bucket.
type StoredObject struct {
	Key          string    `json:"key"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// ListBackupArchives lists uploaded backup archives, newest first.
func (s *StorageService) ListBackupArchives(ctx context.Context) ([]StoredObject, error) {
	return s.list(ctx, backupPrefix)
}

func (s *StorageService) list(ctx context.Context, prefix string) ([]StoredObject, error) {
	if !s.enabled {
		return nil, ErrStorageDisabled
	}

	var objects []StoredObject
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			o := StoredObject{Key: aws.ToString(obj.Key)}
			if obj.Size != nil {
				o.SizeBytes = *obj.Size
			}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			objects = append(objects, o)
		}
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})
	return objects, nil
}

// DeleteOldBackups deletes uploaded backup archives older than maxAge.
// Returns the number of deleted objects.
func (s *StorageService) DeleteOldBackups(ctx context.Context, maxAge time.Duration) (int, error) {
	if !s.enabled {
		return 0, nil
	}

	cutoff := time.Now().Add(-maxAge)
	objects, err := s.list(ctx, backupPrefix)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, obj := range objects {
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := s.DeleteObject(ctx, obj.Key); err != nil {
			s.logger.Warn("failed to delete old backup", "key", obj.Key, "error", err)
			continue
		}
		deleted++
	}

	s.logger.Info("backup cleanup completed", "deleted_count", deleted, "max_age", maxAge.String())
	return deleted, nil
}

// PresignDownload returns a presigned URL for downloading an object.
// The URL is valid for the given duration (default 1 hour).
func (s *StorageService) PresignDownload(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if !s.enabled {
		return "", ErrStorageDisabled
	}

	if expiry == 0 {
		expiry = 1 * time.Hour
	}

	presignClient := s3.NewPresignClient(s.client)
	presignedReq, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedReq.URL, nil
}
