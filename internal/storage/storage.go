// Package storage provides temporary and persistent file storage capabilities.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and S3 storage. Files that belong to one
// job live together in a per-job workspace directory so they can be removed
// or expired as a unit.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage defines the interface for temporary and persistent file storage.
// Implementations must handle per-job workspaces during processing and
// optionally support S3 uploads for final video delivery.
type Storage interface {
	// Workspace returns the directory path that holds all files of a job.
	// The directory may not exist yet.
	Workspace(jobID string) string

	// EnsureWorkspace creates the workspace directory for a job if needed
	// and returns its path.
	EnsureWorkspace(ctx context.Context, jobID string) (string, error)

	// SaveInWorkspace writes data to the named file inside a job's
	// workspace, creating the workspace if needed, and returns the file
	// path. Only the base of filename is used.
	SaveInWorkspace(ctx context.Context, jobID, filename string, data io.Reader) (path string, err error)

	// RemoveWorkspace deletes a job's workspace and everything in it.
	RemoveWorkspace(ctx context.Context, jobID string) error

	// CleanupExpired removes workspaces whose last modification is older
	// than maxAge, skipping the listed job IDs. It returns the IDs of the
	// removed workspaces.
	CleanupExpired(ctx context.Context, maxAge time.Duration, skip []string) (removed []string, err error)

	// SaveTemp saves data to a temporary file outside any workspace and
	// returns the file path. The name parameter is used as a hint for the
	// filename.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// LoadTemp reads a stored file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// UploadToS3 uploads data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
