package storage

import (
	"context"
	"io"
)

// Store keeps binary objects for attachments and voice clips.
// Put returns a stable reference usable with URL and Remove.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Remove(ctx context.Context, ref string) error
	URL(ctx context.Context, ref string) (string, error)
}

var S Store
