package storage

import (
	"context"
	"fmt"

	"github.com/PsiTechC/apex/internal/config"
	"github.com/PsiTechC/apex/internal/ports"
)

// NewFromConfig creates a BlobStore implementation based on the storage
// config type.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig, baseURL string) (ports.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "filesystem":
		return NewFileSystemStore(cfg.Dir, baseURL)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
