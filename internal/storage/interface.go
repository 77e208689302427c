package storage

import (
	"context"
	"io"
)

// DocumentStore defines where uploaded documents are kept between intake and
// processing. Save returns the storage path recorded on the job; Exists and
// Read accept that same path back.
type DocumentStore interface {
	// Save stores a document under the given key and returns its storage path
	Save(ctx context.Context, key string, reader io.Reader, size int64) (string, error)

	// Read returns the full document bytes at a storage path
	Read(ctx context.Context, path string) ([]byte, error)

	// Exists checks whether a document is still present at a storage path
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes a document; used to roll back a failed submission
	Delete(ctx context.Context, path string) error
}
