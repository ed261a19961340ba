package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"slidecast-api/internal/audio"
	"slidecast-api/internal/plan"
	"slidecast-api/internal/progress"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrNoVideoPaths is returned when no video paths are provided for joining.
	ErrNoVideoPaths = errors.New("no video paths provided")
	// ErrInvalidDuration is returned when duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoSegments is returned when a render plan contains no segments.
	ErrNoSegments = errors.New("render plan has no segments")
	// ErrNoImages is returned when an image segment contains no images.
	ErrNoImages = errors.New("segment has no images")
)

// separatorColor is the solid fill used for separator clips.
const separatorColor = "0x00FF00"

// defaultRenderWorkers bounds how many segments render concurrently.
const defaultRenderWorkers = 2

// Compile-time check that FFmpegRenderer implements Renderer.
var _ Renderer = (*FFmpegRenderer)(nil)

// FFmpegRenderer implements Renderer using the ffmpeg CLI.
type FFmpegRenderer struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// workers bounds concurrent segment renders.
	workers int
}

// RendererOption configures an FFmpegRenderer.
type RendererOption func(*FFmpegRenderer)

// WithWorkers sets how many segments may render concurrently.
// Values below 1 are ignored.
func WithWorkers(n int) RendererOption {
	return func(r *FFmpegRenderer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// NewFFmpegRenderer creates a new FFmpegRenderer.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegRenderer(ffmpegPath string, opts ...RendererOption) *FFmpegRenderer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	r := &FFmpegRenderer{
		ffmpegPath: ffmpegPath,
		workers:    defaultRenderWorkers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render executes a render plan: segments render concurrently, separators
// once, the pieces are concatenated, and the audio bed is muxed underneath
// when the plan carries audio. Progress lands on updates; segment-scoped
// reports carry the index of the segment that just finished.
func (r *FFmpegRenderer) Render(ctx context.Context, p *plan.RenderPlan, workDir, outputPath string, updates chan<- progress.Update) error {
	if len(p.Segments) == 0 {
		return ErrNoSegments
	}
	if p.Output.Width <= 0 || p.Output.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, p.Output.Width, p.Output.Height)
	}
	progress.Send(updates, "preparing render", 5)

	segmentPaths := make([]string, len(p.Segments))

	// All separators share one rendered clip.
	if hasSeparator(p) {
		sepPath := filepath.Join(workDir, "separator.mp4")
		if err := r.RenderSeparator(ctx, p.SeparatorSeconds, p.Output, sepPath); err != nil {
			return fmt.Errorf("render separator: %w", err)
		}
		for i, seg := range p.Segments {
			if seg.Kind == plan.SegmentSeparator {
				segmentPaths[i] = sepPath
				progress.SendSegment(updates, "rendering segments", 10, i)
			}
		}
	}

	imageSegments := len(p.ImageSegments())
	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, seg := range p.Segments {
		if seg.Kind != plan.SegmentImages {
			continue
		}
		g.Go(func() error {
			out := filepath.Join(workDir, fmt.Sprintf("segment_%03d.mp4", i))
			if err := r.RenderImageSequence(gctx, seg, p.Output, out); err != nil {
				return fmt.Errorf("render segment %d: %w", i, err)
			}
			segmentPaths[i] = out

			// Send under the lock so percentages arrive in order.
			mu.Lock()
			completed++
			progress.SendSegment(updates, "rendering segments", 10+completed*65/imageSegments, i)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	progress.Send(updates, "joining segments", 85)
	joined := outputPath
	if p.HasAudio {
		joined = filepath.Join(workDir, "slideshow_silent.mp4")
	}
	if err := r.JoinVideos(ctx, segmentPaths, joined); err != nil {
		return fmt.Errorf("join segments: %w", err)
	}

	if p.HasAudio {
		progress.Send(updates, "muxing audio", 95)
		if err := r.MuxAudioBed(ctx, joined, p, outputPath); err != nil {
			return fmt.Errorf("mux audio: %w", err)
		}
	}

	progress.Send(updates, "render complete", 100)
	return nil
}

// hasSeparator reports whether the plan contains at least one separator.
func hasSeparator(p *plan.RenderPlan) bool {
	for _, seg := range p.Segments {
		if seg.Kind == plan.SegmentSeparator {
			return true
		}
	}
	return false
}

// RenderImageSequence renders one image segment: every image is cropped to
// fill the output frame, shown for the planned per-image duration, and the
// stills are concatenated into a single H.264 clip.
func (r *FFmpegRenderer) RenderImageSequence(ctx context.Context, seg plan.Segment, out plan.OutputSpec, outputPath string) error {
	if len(seg.Images) == 0 {
		return ErrNoImages
	}
	if out.Width <= 0 || out.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, out.Width, out.Height)
	}
	if seg.PerImageSeconds <= 0 {
		return fmt.Errorf("%w: got %.6f", ErrInvalidDuration, seg.PerImageSeconds)
	}

	args := []string{"-y"}
	for _, img := range seg.Images {
		args = append(args, "-loop", "1", "-t", formatSeconds(seg.PerImageSeconds), "-i", img.Path)
	}
	args = append(args,
		"-filter_complex", buildSegmentFilter(len(seg.Images), out),
		"-map", "[vout]",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		outputPath,
	)
	return r.runFFmpeg(ctx, args)
}

// buildSegmentFilter produces the filter_complex expression for an image
// segment: each input is cropped to fill the frame, then all inputs are
// concatenated in order.
func buildSegmentFilter(n int, out plan.OutputSpec) string {
	parts := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		parts = append(parts, fmt.Sprintf("[%d:v]%s[v%d]", i, cropFillFilter(out), i))
	}

	var concatInputs strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&concatInputs, "[v%d]", i)
	}
	parts = append(parts, fmt.Sprintf("%sconcat=n=%d:v=1:a=0[vout]", concatInputs.String(), n))

	return strings.Join(parts, ";")
}

// cropFillFilter scales a frame up to cover the output dimensions and
// center-crops the overflow, so the result always fills the frame with no
// letterbox bars. Sources with a mismatched aspect ratio lose their edges
// symmetrically.
func cropFillFilter(out plan.OutputSpec) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%d",
		out.Width, out.Height, out.Width, out.Height, out.FPS)
}

// RenderSeparator renders a solid chroma-green clip of the given duration.
func (r *FFmpegRenderer) RenderSeparator(ctx context.Context, seconds float64, out plan.OutputSpec, outputPath string) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: got %.6f", ErrInvalidDuration, seconds)
	}
	if out.Width <= 0 || out.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, out.Width, out.Height)
	}

	source := fmt.Sprintf("color=c=%s:s=%dx%d:r=%d:d=%s",
		separatorColor, out.Width, out.Height, out.FPS, formatSeconds(seconds))
	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", source,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		outputPath,
	}
	return r.runFFmpeg(ctx, args)
}

// MuxAudioBed lays the plan's audio bed under a silent video. In single mode
// the source track is mapped directly; in multi mode the bed repeats the
// track once per image segment with silenced gaps during separators. The
// output is clamped to the shorter of video and bed.
func (r *FFmpegRenderer) MuxAudioBed(ctx context.Context, videoPath string, p *plan.RenderPlan, outputPath string) error {
	bed := audio.BuildBed(len(p.ImageSegments()), p.SeparatorSeconds)

	args := []string{
		"-y",
		"-i", videoPath,
		"-i", p.AudioPath,
	}
	if bed.IsPassthrough() {
		args = append(args, "-map", "0:v", "-map", "1:a")
	} else {
		args = append(args,
			"-filter_complex", bed.FilterGraph(1),
			"-map", "0:v",
			"-map", "[aout]",
		)
	}
	args = append(args,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		outputPath,
	)
	return r.runFFmpeg(ctx, args)
}

// JoinVideos concatenates multiple video files into a single output file.
// It first attempts a fast copy (no re-encoding) and falls back to re-encoding
// with libx264/aac if the copy fails.
func (r *FFmpegRenderer) JoinVideos(ctx context.Context, videoPaths []string, output string) error {
	if len(videoPaths) == 0 {
		return ErrNoVideoPaths
	}

	if len(videoPaths) == 1 {
		// Single video: just copy the file
		return r.copyFile(videoPaths[0], output)
	}

	// Create a temporary file list for the concat demuxer
	listFile, err := r.createConcatList(videoPaths)
	if err != nil {
		return fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	// Try fast copy first (no re-encoding)
	err = r.joinWithCopy(ctx, listFile, output)
	if err == nil {
		return nil
	}

	// Fast copy failed, fall back to re-encoding
	return r.joinWithReencode(ctx, listFile, output)
}

// joinWithCopy attempts to concatenate videos using stream copy (no re-encoding).
func (r *FFmpegRenderer) joinWithCopy(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",           // Overwrite output file
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", listFile, // Input file list
		"-c", "copy", // Copy streams without re-encoding
		output, // Output file
	}
	return r.runFFmpeg(ctx, args)
}

// joinWithReencode concatenates videos by re-encoding with libx264/aac.
func (r *FFmpegRenderer) joinWithReencode(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",           // Overwrite output file
		"-f", "concat", // Use concat demuxer
		"-safe", "0", // Allow absolute paths
		"-i", listFile, // Input file list
		"-c:v", "libx264", // Video codec
		"-preset", "fast", // Encoding speed preset
		"-crf", "23", // Quality (lower = better, 23 is default)
		"-c:a", "aac", // Audio codec
		"-b:a", "128k", // Audio bitrate
		output, // Output file
	}
	return r.runFFmpeg(ctx, args)
}

// createConcatList creates a temporary file containing the list of video files
// in the format required by ffmpeg's concat demuxer.
func (r *FFmpegRenderer) createConcatList(videoPaths []string) (string, error) {
	f, err := os.CreateTemp("", "ffmpeg-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range videoPaths {
		// Convert to absolute path for safety
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		// Escape single quotes in path
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

// copyFile copies a file from src to dst.
func (r *FFmpegRenderer) copyFile(src, dst string) error {
	input, err := os.ReadFile(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	if err := os.WriteFile(dst, input, 0600); err != nil {
		return fmt.Errorf("write destination file: %w", err)
	}
	return nil
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (r *FFmpegRenderer) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, r.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// formatSeconds renders a duration argument with enough precision that
// per-image timings survive the trip through ffmpeg.
func formatSeconds(s float64) string {
	return fmt.Sprintf("%.6f", s)
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
