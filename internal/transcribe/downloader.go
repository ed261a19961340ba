package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrNoDownload is returned when yt-dlp exits cleanly but produced no file.
var ErrNoDownload = errors.New("yt-dlp: no file was downloaded")

// downloadBasename is the fixed stem yt-dlp writes to; the extension is
// chosen by the extractor.
const downloadBasename = "clip"

// Compile-time check that YtDlpDownloader implements Downloader.
var _ Downloader = (*YtDlpDownloader)(nil)

// YtDlpDownloader fetches social video audio tracks with the yt-dlp CLI.
type YtDlpDownloader struct {
	// binPath is the path to the yt-dlp binary. Defaults to "yt-dlp".
	binPath string
}

// NewYtDlpDownloader creates a new YtDlpDownloader.
// If binPath is empty, it defaults to "yt-dlp" (found via PATH).
func NewYtDlpDownloader(binPath string) *YtDlpDownloader {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &YtDlpDownloader{binPath: binPath}
}

// DownloadAudio extracts the audio track of the given URL as MP3 into
// outputDir and returns the path of the downloaded file.
func (d *YtDlpDownloader) DownloadAudio(ctx context.Context, url, outputDir string) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	template := filepath.Join(outputDir, downloadBasename+".%(ext)s")
	args := []string{
		"--no-playlist",
		"--extract-audio",
		"--audio-format", "mp3",
		"--output", template,
		url,
	}

	// #nosec G204 - binPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, d.binPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("yt-dlp cancelled: %w", ctx.Err())
		}
		return "", &DownloadError{
			URL:    url,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	matches, err := filepath.Glob(filepath.Join(outputDir, downloadBasename+".*"))
	if err != nil {
		return "", fmt.Errorf("list downloaded files: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNoDownload
	}
	return matches[0], nil
}

// DownloadError represents an error from running yt-dlp, including the
// stderr output.
type DownloadError struct {
	URL    string
	Stderr string
	Err    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("yt-dlp error for %s: %v\nstderr: %s", e.URL, e.Err, e.Stderr)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
