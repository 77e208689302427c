package storage

import (
	"context"
	"fmt"

	"github.com/smart-audit/backend/internal/config"
)

// NewDocumentStore creates a DocumentStore instance based on the configuration.
// Parameters:
//   - cfg: storage configuration including backend selection.
// Returns:
//   - DocumentStore: initialized store implementation.
//   - error: non-nil if the store cannot be created.
func NewDocumentStore(cfg *config.StorageConfig) (DocumentStore, error) {
	switch cfg.Backend {
	case "s3":
		store, err := NewS3Store(&S3Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	case "", "local":
		return NewLocalStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
