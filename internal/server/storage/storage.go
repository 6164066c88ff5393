// Package storage defines the key-addressed blob stores the sync service
// persists into, plus filesystem and S3-compatible implementations.
//
// Keys are opaque to the stores. Missing keys are reported as
// common.ErrNotFound; any other failure should be treated as transient by
// callers.
package storage

import "context"

// DocumentStore persists project documents keyed by project id.
type DocumentStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)

	// List returns every known key, for index rebuilds.
	List(ctx context.Context) ([]string, error)
}

// AssetStore persists immutable binary images (slip scans, bill photos).
type AssetStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}
