package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/24sk/anime/pkg/client/s3"
)

// S3Repo stores source uploads and generated assets. Keys follow
// uploads/{session}/... and results/{session}/... so per-session cleanup
// stays a prefix operation.
type S3Repo struct {
	StorageS3 *s3.StorageS3
}

func NewS3Repo(storageS3 *s3.StorageS3) *S3Repo {
	return &S3Repo{StorageS3: storageS3}
}

// Upload stores the object and returns its public URL.
func (s *S3Repo) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return "", fmt.Errorf("s3 client not initialized")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.StorageS3.Client.PutObject(
		ctx,
		s.StorageS3.Bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return s.PublicURL(key), nil
}

// Delete removes one object. Used for best-effort cleanup of a failed job's
// source artifact; callers treat errors as non-fatal.
func (s *S3Repo) Delete(ctx context.Context, key string) error {
	if s.StorageS3 == nil || s.StorageS3.Client == nil {
		return fmt.Errorf("s3 client not initialized")
	}
	if err := s.StorageS3.Client.RemoveObject(ctx, s.StorageS3.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3 remove object: %w", err)
	}
	return nil
}

// DeleteByURL resolves a key from one of our public URLs and deletes it.
// URLs pointing anywhere else are ignored.
func (s *S3Repo) DeleteByURL(ctx context.Context, rawURL string) error {
	key, ok := s.keyFromURL(rawURL)
	if !ok {
		return nil
	}
	return s.Delete(ctx, key)
}

func (s *S3Repo) PublicURL(key string) string {
	scheme := "http"
	if s.StorageS3.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, s.StorageS3.Endpoint, s.StorageS3.Bucket, key)
}

func (s *S3Repo) keyFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	prefix := "/" + s.StorageS3.Bucket + "/"
	if u.Host != s.StorageS3.Endpoint || !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	return strings.TrimPrefix(u.Path, prefix), true
}
