// Package storage selects the blob store that exported artifacts are written to.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/icon"
	"github.com/JakeFAU/iconshelf/internal/storage/gcs"
	"github.com/JakeFAU/iconshelf/internal/storage/local"
	"github.com/JakeFAU/iconshelf/internal/storage/memory"
)

// Supported backends.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Store reads and writes artifacts.
type Store interface {
	icon.BlobStore
	icon.BlobReader
}

// Config selects and configures a backend.
type Config struct {
	Backend   string
	BaseDir   string
	GCSBucket string
}

// Open builds the configured backend. The returned closer releases any client
// connections and is never nil.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, io.Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case "", BackendMemory:
		logger.Info("using in-memory artifact store")
		return memory.NewBlobStore(), nopCloser{}, nil
	case BackendLocal:
		store, err := local.New(afero.NewOsFs(), local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local store: %w", err)
		}
		logger.Info("using local artifact store", zap.String("base_dir", cfg.BaseDir))
		return store, nopCloser{}, nil
	case BackendGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("close gcs client", zap.Error(closeErr))
			}
			return nil, nil, fmt.Errorf("gcs store: %w", err)
		}
		logger.Info("using gcs artifact store", zap.String("bucket", cfg.GCSBucket))
		return store, client, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
