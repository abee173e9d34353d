// Package archive keeps copies of exported reports in S3-compatible
// storage and hands out pre-signed download URLs for them. When no
// bucket is configured the Noop archiver is used and exports stay local.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/grantscan/internal/config"
)

// ErrNotConfigured is returned when report archiving is not configured.
var ErrNotConfigured = errors.New("report archive not configured")

// Archiver stores exported reports.
type Archiver interface {
	// Put stores data under the scope and returns the object key.
	Put(ctx context.Context, scope, filename, contentType string, data []byte) (string, error)

	// PresignedURL returns a pre-signed URL for downloading the object.
	// Returns ErrNotConfigured when archiving is not configured.
	PresignedURL(ctx context.Context, key string) (url string, expiry time.Time, err error)
}

// s3Client defines the minimal minio.Client operations used by S3Archiver.
type s3Client interface {
	PutObject(ctx context.Context, bucket, objectName, contentType string, data []byte) error
	PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error)
}

// minioClientWrapper adapts *minio.Client to s3Client.
type minioClientWrapper struct {
	client *minio.Client
}

func (w *minioClientWrapper) PutObject(ctx context.Context, bucket, objectName, contentType string, data []byte) error {
	_, err := w.client.PutObject(ctx, bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (w *minioClientWrapper) PresignedGetObject(ctx context.Context, bucket, objectName string, expiry time.Duration) (*url.URL, error) {
	return w.client.PresignedGetObject(ctx, bucket, objectName, expiry, nil)
}

// S3Archiver stores reports in S3-compatible storage.
type S3Archiver struct {
	client    s3Client
	bucket    string
	prefix    string
	urlExpiry time.Duration
}

// Put uploads data as {prefix}/{scope}/{filename}.
func (a *S3Archiver) Put(ctx context.Context, scope, filename, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := objectKey(a.prefix, scope, filename)
	if err := a.client.PutObject(ctx, a.bucket, key, contentType, data); err != nil {
		return "", fmt.Errorf("archive report to S3: %w", err)
	}
	return key, nil
}

// PresignedURL returns a pre-signed GET URL for the object.
func (a *S3Archiver) PresignedURL(ctx context.Context, key string) (string, time.Time, error) {
	presigned, err := a.client.PresignedGetObject(ctx, a.bucket, key, a.urlExpiry)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate pre-signed URL: %w", err)
	}
	expiry := time.Now().Add(a.urlExpiry)
	return presigned.String(), expiry, nil
}

// Noop is used when archiving is not configured.
// Put is a no-op and PresignedURL returns ErrNotConfigured.
type Noop struct{}

// Put is a no-op when archiving is not configured.
func (Noop) Put(ctx context.Context, scope, filename, contentType string, data []byte) (string, error) {
	return "", nil
}

// PresignedURL returns ErrNotConfigured.
func (Noop) PresignedURL(ctx context.Context, key string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

// New creates the appropriate Archiver based on configuration.
// Returns Noop when bucket is empty, S3Archiver otherwise.
func New(cfg config.ArchiveConfig) (Archiver, error) {
	if cfg.Bucket == "" {
		return Noop{}, nil
	}

	useSSL := true
	if cfg.UseSSL != nil {
		useSSL = *cfg.UseSSL
	}
	endpoint := stripScheme(cfg.Endpoint, &useSSL)

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	return &S3Archiver{
		client:    &minioClientWrapper{client: client},
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		urlExpiry: time.Duration(cfg.URLExpiry),
	}, nil
}

// stripScheme removes an http:// or https:// scheme from endpoint, which
// minio expects as a bare host. The scheme, when present, decides useSSL.
func stripScheme(endpoint string, useSSL *bool) string {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		*useSSL = true
		return strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		*useSSL = false
		return strings.TrimPrefix(endpoint, "http://")
	default:
		return endpoint
	}
}

// objectKey returns the object key of an archived report.
// Convention: {prefix}/{scope}/{filename}
func objectKey(prefix, scope, filename string) string {
	return path.Join(prefix, scope, path.Base(filename))
}
