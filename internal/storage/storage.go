// Package storage owns the temporary file namespace used while cutting and
// the optional S3 delivery of finished outputs.
package storage

import (
	"context"
	"io"
)

// Storage defines temporary and persistent file storage for cut outputs.
// Temporary names are unique per call so concurrent cuts never collide.
type Storage interface {
	// SaveTemp saves data to a new temporary file and returns its path.
	// The name parameter is used as a hint for the filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// TempPath reserves a new, empty temporary file ending in ext and returns
	// its path, for an external tool to overwrite.
	TempPath(ctx context.Context, name, ext string) (path string, err error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the object URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
