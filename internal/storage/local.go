package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrS3NotConfigured is returned when S3 operations are attempted
// without proper configuration.
var ErrS3NotConfigured = errors.New("S3 storage is not configured")

// workspaceSubdir is the subtree of the temp directory that holds per-job
// workspaces. Only entries below it are subject to expiry.
const workspaceSubdir = "jobs"

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// LocalStorage implements the Storage interface using local disk.
// It stores job workspaces and temporary files in a configurable directory
// and does not support S3 operations unless wrapped with S3Storage.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter specifies where files are stored.
// If tempDir is empty, os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "slidecast")
	}

	if err := os.MkdirAll(filepath.Join(tempDir, workspaceSubdir), 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// Workspace returns the directory path that holds all files of a job.
func (s *LocalStorage) Workspace(jobID string) string {
	return filepath.Join(s.tempDir, workspaceSubdir, filepath.Base(jobID))
}

// EnsureWorkspace creates the workspace directory for a job if needed and
// returns its path.
func (s *LocalStorage) EnsureWorkspace(ctx context.Context, jobID string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	dir := s.Workspace(jobID)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return dir, nil
}

// SaveInWorkspace writes data to the named file inside a job's workspace
// and returns the file path. Only the base of filename is used, so callers
// cannot escape the workspace.
func (s *LocalStorage) SaveInWorkspace(ctx context.Context, jobID, filename string, data io.Reader) (string, error) {
	dir, err := s.EnsureWorkspace(ctx, jobID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, filepath.Base(filename))
	f, err := os.Create(path) // #nosec G304 - path is confined to the workspace
	if err != nil {
		return "", fmt.Errorf("create workspace file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write workspace file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close workspace file: %w", err)
	}

	return path, nil
}

// RemoveWorkspace deletes a job's workspace and everything in it.
func (s *LocalStorage) RemoveWorkspace(ctx context.Context, jobID string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := os.RemoveAll(s.Workspace(jobID)); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// CleanupExpired removes workspaces whose last modification is older than
// maxAge, skipping the listed job IDs. It returns the IDs of the removed
// workspaces and continues past individual failures, returning the first
// error encountered.
func (s *LocalStorage) CleanupExpired(ctx context.Context, maxAge time.Duration, skip []string) ([]string, error) {
	skipSet := make(map[string]bool, len(skip))
	for _, id := range skip {
		skipSet[id] = true
	}

	entries, err := os.ReadDir(filepath.Join(s.tempDir, workspaceSubdir))
	if err != nil {
		return nil, fmt.Errorf("read workspace directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var (
		removed  []string
		firstErr error
	)
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return removed, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if skipSet[entry.Name()] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.RemoveAll(s.Workspace(entry.Name())); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove workspace %s: %w", entry.Name(), err)
			}
			continue
		}
		removed = append(removed, entry.Name())
	}

	return removed, firstErr
}

// SaveTemp saves data to a temporary file and returns the file path.
// The name is used as a base for the filename with a unique suffix.
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.CreateTemp(s.tempDir, name+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// LoadTemp reads a stored file and returns a reader.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the specified temporary files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// UploadToS3 is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) UploadToS3(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}
