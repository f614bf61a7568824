// Package imagestore keeps workspace and project images in S3-compatible
// object storage.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"taskdeck/api/internal/util"
)

// Store wraps a MinIO client bound to a single bucket.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// Config carries the connection settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}
	if s.publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		s.publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return s, nil
}

// Upload stores an image and returns its file id and public URL.
// The object name keeps the original extension so content type survives.
func (s *Store) Upload(ctx context.Context, fileName, contentType string, r io.Reader, size int64) (fileID, url string, err error) {
	fileID = util.NewID("img")
	objectName := fileID + strings.ToLower(path.Ext(fileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", "", fmt.Errorf("put object: %w", err)
	}
	return objectName, s.publicURL + "/" + objectName, nil
}

// Delete removes an image by its file id. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, fileID string) error {
	if fileID == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, fileID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}
