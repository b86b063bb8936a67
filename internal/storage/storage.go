// internal/storage/storage.go
package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage is the only interface the upload handler depends on.
// main.go picks the implementation; handler and service code never change.
type Storage interface {
	Upload(ctx context.Context, file io.Reader, filename string, contentType string) (Object, error)
}

// Object describes a stored upload. Path is only set when the bytes live on
// the local disk, so a prober can read them without going through URL.
type Object struct {
	Key  string
	URL  string
	Path string
	Size int64
}

// objectKey replaces the client filename with a UUID, keeping the extension.
// This prevents path traversal, collisions between users and leaking
// original filenames.
func objectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	return uuid.New().String() + ext
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
