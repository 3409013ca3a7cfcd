// Package media abstracts where the uploaded video files live. The API
// writes a file once at ingestion; the publishing core reads it to stream
// it to a platform and deletes it after a fully successful publish.
package media

import (
	"context"
	"io"
)

// Store provides access to uploaded media files.
type Store interface {
	WriteFile(ctx context.Context, ref string, r io.Reader) error
	ReadFile(ctx context.Context, ref string) ([]byte, error)
	DeleteFile(ctx context.Context, ref string) error
	Size(ctx context.Context, ref string) (int64, error)
}
