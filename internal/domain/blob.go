package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// SnapshotArchiver writes completed snapshots to cold storage and returns
// the object path.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, snap Snapshot) (string, error)
}
