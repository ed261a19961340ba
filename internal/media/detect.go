package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"golang.org/x/image/draw"
)

// Detection defaults tuned for separator clips rendered by this service.
const (
	DefaultDetectThreshold = 0.8
	DefaultSampleInterval  = 2 * time.Second
)

var (
	// ErrInvalidThreshold is returned when the detection threshold is outside (0, 1].
	ErrInvalidThreshold = errors.New("invalid threshold: must be in (0, 1]")
	// ErrInvalidInterval is returned when the sample interval is not positive.
	ErrInvalidInterval = errors.New("invalid sample interval: must be positive")
)

// DetectOpts configures separator detection.
type DetectOpts struct {
	// Threshold is the minimum fraction of green pixels for a sampled frame
	// to count as part of a separator.
	Threshold float64
	// SampleInterval is the spacing between sampled frames. Detection
	// resolution is bounded by it.
	SampleInterval time.Duration
}

// DefaultDetectOpts returns the detection defaults.
func DefaultDetectOpts() DetectOpts {
	return DetectOpts{
		Threshold:      DefaultDetectThreshold,
		SampleInterval: DefaultSampleInterval,
	}
}

// TimeRange is a stretch of a video in seconds from its start.
type TimeRange struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SeparatorDetector locates the solid-green stretches that multi-group
// renders place between image groups.
type SeparatorDetector struct{}

// NewSeparatorDetector creates a new SeparatorDetector.
func NewSeparatorDetector() *SeparatorDetector {
	return &SeparatorDetector{}
}

// Detect samples one frame per interval, measures how much of each frame is
// chroma green, and merges consecutive hits into time ranges.
func (d *SeparatorDetector) Detect(ctx context.Context, videoPath string, opts DetectOpts) ([]TimeRange, error) {
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("%w: got %.3f", ErrInvalidThreshold, opts.Threshold)
	}
	if opts.SampleInterval <= 0 {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidInterval, opts.SampleInterval)
	}

	info, err := Probe(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	frameDir, err := os.MkdirTemp("", "separator-detect-*")
	if err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(frameDir) }()

	interval := opts.SampleInterval.Seconds()
	var (
		hits  []bool
		times []float64
	)
	for i := 0; ; i++ {
		at := float64(i) * interval
		if at >= info.DurationSeconds {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("detection cancelled: %w", ctx.Err())
		default:
		}

		framePath := filepath.Join(frameDir, fmt.Sprintf("frame_%06d.png", i))
		if err := extractFrame(videoPath, at, framePath); err != nil {
			return nil, err
		}
		ratio, err := greenRatioFromFile(framePath)
		if err != nil {
			return nil, err
		}
		hits = append(hits, ratio >= opts.Threshold)
		times = append(times, at)
	}

	return mergeRanges(hits, times, interval, info.DurationSeconds), nil
}

// extractFrame grabs a single frame at the given offset as a PNG.
func extractFrame(videoPath string, atSeconds float64, outPath string) error {
	err := ffmpeg.Input(videoPath, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", atSeconds)}).
		Output(outPath, ffmpeg.KwArgs{"vframes": 1}).
		OverWriteOutput().
		Run()
	if err != nil {
		return fmt.Errorf("extract frame at %.3fs: %w", atSeconds, err)
	}
	return nil
}

func greenRatioFromFile(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open frame: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("decode frame: %w", err)
	}
	return greenRatio(img), nil
}

// greenRatio reports the fraction of pixels that read as chroma green. The
// frame is downscaled first so the scan cost stays flat regardless of the
// source resolution.
func greenRatio(img image.Image) float64 {
	const sampleW, sampleH = 64, 36

	small := image.NewRGBA(image.Rect(0, 0, sampleW, sampleH))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	green := 0
	for y := 0; y < sampleH; y++ {
		for x := 0; x < sampleW; x++ {
			r, g, b, _ := small.At(x, y).RGBA()
			if isChromaGreen(r, g, b) {
				green++
			}
		}
	}
	return float64(green) / float64(sampleW*sampleH)
}

// isChromaGreen matches pixels close to the 0x00FF00 separator fill while
// tolerating encoder noise.
func isChromaGreen(r, g, b uint32) bool {
	return g > 0x8000 && r < g/2 && b < g/2
}

// mergeRanges folds consecutive sampled hits into ranges. Each hit covers
// [t, t+interval) clamped to the video duration.
func mergeRanges(hits []bool, times []float64, interval, duration float64) []TimeRange {
	ranges := make([]TimeRange, 0)
	for i, hit := range hits {
		if !hit {
			continue
		}
		start := times[i]
		end := math.Min(start+interval, duration)
		if n := len(ranges); n > 0 && start <= ranges[n-1].End+1e-9 {
			ranges[n-1].End = end
			continue
		}
		ranges = append(ranges, TimeRange{Start: start, End: end})
	}
	return ranges
}
