package domain

import (
	"context"
	"io"
	"time"
)

// ObjectInfo is the listing entry for one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// BlobWriter stores objects. PutLarge streams bodies too big for a single
// request.
type BlobWriter interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	PutLarge(ctx context.Context, key string, body io.Reader, contentType string) error
}

// BlobReader fetches objects. Get returns ErrNotFound for missing keys.
type BlobReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Archiver moves engine output to cold storage.
type Archiver interface {
	ArchiveBacktest(ctx context.Context, report BacktestReport) (string, error)
	ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error)
}
