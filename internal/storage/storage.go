// Package storage persists generated report artifacts.
package storage

import (
	"context"
	"io"
)

// ObjectStore stores report artifacts under opaque keys and hands back a URL
// usable by clients to download them.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader, size int64) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Type() string
}
