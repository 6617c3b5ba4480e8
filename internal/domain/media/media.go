// Package media validates, compresses and hosts uploaded files on an
// S3-compatible object store.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/NjengaIWJ/tetea-jamii/internal/platform/config"
	"github.com/NjengaIWJ/tetea-jamii/internal/platform/logging"
)

// File is an incoming upload, decoupled from the transport's multipart form.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// Host stores and removes media objects. Upload returns the public URL for
// the stored object.
type Host interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// ImageKey returns a fresh object key for a processed image.
func ImageKey() string {
	return "images/" + uuid.NewString()
}

// DocumentKey returns a fresh object key for an uploaded document.
func DocumentKey() string {
	return "media/" + uuid.NewString()
}

// S3Host implements Host against any S3-compatible endpoint.
type S3Host struct {
	client    *s3.Client
	bucket    string
	publicURL string
	logger    *logging.Logger
}

// NewS3Host builds a host from media configuration. A custom Endpoint points
// the client at non-AWS stores (MinIO, R2, Spaces).
func NewS3Host(ctx context.Context, cfg config.MediaConfig, logger *logging.Logger) (*S3Host, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media host requires a bucket name")
	}
	if logger == nil {
		logger = logging.Discard()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load media store config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Host{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		logger:    logger,
	}, nil
}

// Upload stores the object and returns its public URL.
func (h *S3Host) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload body: %w", err)
	}

	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store object %s: %w", key, err)
	}

	h.logger.InfoTag("media", "stored object %s (%d bytes)", key, len(data))
	return h.publicURL + "/" + key, nil
}

// Delete removes the object. Callers treat failures as best-effort cleanup.
func (h *S3Host) Delete(ctx context.Context, key string) error {
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}
