package icon

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// AssetFetcher retrieves the raw vector bytes of an icon.
type AssetFetcher interface {
	FetchAsset(ctx context.Context, rec Record) ([]byte, error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// BlobReader opens artifacts previously written to a BlobStore.
type BlobReader interface {
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
	HashReader(r io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces export job IDs.
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}
