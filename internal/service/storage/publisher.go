package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"videocounter/internal/config"
	"videocounter/internal/logger"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// OutputsPrefix is the URL path under which the output directory is served.
const OutputsPrefix = "/outputs/"

// Publisher makes a processed video reachable and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// LocalPublisher serves videos that already live under the output directory.
type LocalPublisher struct {
	root string
}

// NewLocalPublisher creates a publisher rooted at the output directory.
func NewLocalPublisher(root string) *LocalPublisher {
	return &LocalPublisher{root: root}
}

// Publish maps localPath to its /outputs/ URL.
func (p *LocalPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	rel, err := filepath.Rel(p.root, localPath)
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside the output directory %s", localPath, p.root)
	}
	return OutputsPrefix + filepath.ToSlash(rel), nil
}

// MinIOPublisher uploads videos to a bucket and hands out presigned GET URLs.
type MinIOPublisher struct {
	client  *miniogo.Client
	bucket  string
	root    string
	expires time.Duration
	logger  *logger.Logger
}

// NewMinIOPublisher creates a client for the configured endpoint.
func NewMinIOPublisher(cfg *config.Config, logger *logger.Logger) (*MinIOPublisher, error) {
	client, err := miniogo.New(cfg.MinIOEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
		Secure: cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	expires := time.Duration(cfg.MinIOPresignMinutes) * time.Minute
	if expires <= 0 {
		expires = time.Hour
	}

	return &MinIOPublisher{
		client:  client,
		bucket:  cfg.MinIOBucket,
		root:    cfg.OutputDirectory,
		expires: expires,
		logger:  logger,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (p *MinIOPublisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", p.bucket, err)
		}
		p.logger.Info("Created bucket %s", p.bucket)
	}
	return nil
}

// Publish uploads localPath and returns a presigned URL for it.
func (p *MinIOPublisher) Publish(ctx context.Context, localPath string) (string, error) {
	key := ObjectKey(p.root, localPath)

	info, err := p.client.FPutObject(ctx, p.bucket, key, localPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	p.logger.Info("Uploaded %s to bucket %s (%d bytes)", key, p.bucket, info.Size)

	u, err := p.client.PresignedGetObject(ctx, p.bucket, key, p.expires, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// ObjectKey derives the bucket key from the path relative to root,
// falling back to the base name for paths outside it.
func ObjectKey(root, localPath string) string {
	rel, err := filepath.Rel(root, localPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Base(localPath)
	}
	return filepath.ToSlash(rel)
}
