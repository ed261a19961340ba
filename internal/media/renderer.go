// Package media provides the ffmpeg-backed rendering pipeline that turns
// render plans into MP4 files, plus probing and separator detection.
package media

import (
	"context"

	"slidecast-api/internal/plan"
	"slidecast-api/internal/progress"
)

// Renderer defines the interface for assembling slideshow videos.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Renderer interface {
	// Render executes a render plan. Intermediate files are written under
	// workDir and the finished video lands at outputPath. Progress reports
	// are sent on updates as rendering advances; sends never block.
	Render(ctx context.Context, p *plan.RenderPlan, workDir, outputPath string, updates chan<- progress.Update) error

	// ProbeDuration returns the duration in seconds of a media file.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}
