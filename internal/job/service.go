package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"slidecast-api/internal/media"
	"slidecast-api/internal/metrics"
	"slidecast-api/internal/plan"
	"slidecast-api/internal/progress"
	"slidecast-api/internal/storage"
)

// defaultOutputName is the filename the finished video is served under when
// the request does not name one.
const defaultOutputName = "output.mp4"

// Upload is a file received from a client, streamed into the job workspace.
type Upload struct {
	// Filename is the client-supplied name. Only its base is ever used.
	Filename string
	// Data is the file content.
	Data io.Reader
}

// AssembleInput carries a slideshow assembly request.
type AssembleInput struct {
	// Images are the slideshow frames, in the order they were uploaded.
	Images []Upload
	// Audio is the optional soundtrack.
	Audio *Upload
	// Mode selects single or multi segment layout. Empty means multi.
	Mode plan.Mode
	// AspectRatio names the output format. Empty means the service default.
	AspectRatio string
	// FPS is the output frame rate. Zero means plan.DefaultFPS.
	FPS int
	// SeparatorSeconds is the separator length for multi mode. Zero means
	// the service default.
	SeparatorSeconds float64
	// OutputName is the filename of the finished video. Empty means
	// output.mp4.
	OutputName string
	// PushToS3 uploads the finished video to S3 when enabled.
	PushToS3 bool
}

// AssembleService orchestrates the slideshow assembly workflow. It stores
// uploads in the job workspace, lays out a render plan, drives the renderer
// and mirrors its progress reports onto the job for pollers.
type AssembleService struct {
	repo     Repository
	store    storage.Storage
	renderer media.Renderer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	defaultAspectRatio  string
	defaultSeparator    float64
	defaultImageSeconds float64
}

// NewAssembleService creates a new AssembleService.
// If logger is nil, slog.Default() is used.
func NewAssembleService(repo Repository, store storage.Storage, renderer media.Renderer, logger *slog.Logger) *AssembleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssembleService{
		repo:                repo,
		store:               store,
		renderer:            renderer,
		logger:              logger,
		defaultAspectRatio:  plan.DefaultAspectRatio,
		defaultSeparator:    plan.DefaultSeparatorSeconds,
		defaultImageSeconds: plan.DefaultImageSeconds,
	}
}

// SetMetrics wires the Prometheus collectors. Without it the service runs
// unmetered.
func (s *AssembleService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetDefaultAspectRatio overrides the aspect ratio applied when a request
// does not name one.
func (s *AssembleService) SetDefaultAspectRatio(name string) {
	if name != "" {
		s.defaultAspectRatio = name
	}
}

// SetDefaultSeparator overrides the separator length applied when a multi
// mode request does not give one.
func (s *AssembleService) SetDefaultSeparator(seconds float64) {
	if seconds > 0 {
		s.defaultSeparator = seconds
	}
}

// SetDefaultImageSeconds overrides the display time per image for jobs
// without an audio track.
func (s *AssembleService) SetDefaultImageSeconds(seconds float64) {
	if seconds > 0 {
		s.defaultImageSeconds = seconds
	}
}

// CreateJob validates the request, stores the uploads in a fresh workspace
// and enqueues an assembly job. Validation failures surface as
// plan.InvalidInputError so handlers can map them to 400 responses.
func (s *AssembleService) CreateJob(ctx context.Context, input AssembleInput) (*Job, error) {
	if err := s.normalize(&input); err != nil {
		return nil, err
	}

	j := New(KindAssemble)
	j.Mode = input.Mode
	j.AspectRatio = input.AspectRatio
	j.FPS = input.FPS
	j.SeparatorSeconds = input.SeparatorSeconds
	j.OutputName = input.OutputName
	j.PushToS3 = input.PushToS3
	j.WorkspaceDir = s.store.Workspace(j.ID)

	s.logger.Info("creating assembly job",
		slog.String("job_id", j.ID),
		slog.Int("images", len(input.Images)),
		slog.Bool("has_audio", input.Audio != nil),
		slog.String("mode", string(input.Mode)),
		slog.String("aspect_ratio", input.AspectRatio),
		slog.Bool("push_to_s3", input.PushToS3),
	)

	if err := s.saveUploads(ctx, j, input); err != nil {
		if rmErr := s.store.RemoveWorkspace(ctx, j.ID); rmErr != nil {
			s.logger.Warn("failed to clean up workspace",
				slog.String("job_id", j.ID),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, err
	}

	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncJobsCreated(string(KindAssemble))
	}

	return j, nil
}

// normalize validates the request and fills in defaults in place.
func (s *AssembleService) normalize(input *AssembleInput) error {
	if len(input.Images) == 0 {
		return &plan.InvalidInputError{Reason: "at least one image is required"}
	}
	for _, img := range input.Images {
		if !media.IsSupportedImage(img.Filename) {
			return &plan.InvalidInputError{
				Reason: fmt.Sprintf("unsupported image format %q", filepath.Base(img.Filename)),
			}
		}
	}
	if input.Audio != nil && !media.IsSupportedAudio(input.Audio.Filename) {
		return &plan.InvalidInputError{
			Reason: fmt.Sprintf("unsupported audio format %q", filepath.Base(input.Audio.Filename)),
		}
	}

	if input.Mode == "" {
		input.Mode = plan.ModeMulti
	}
	switch input.Mode {
	case plan.ModeSingle, plan.ModeMulti:
	default:
		return &plan.InvalidInputError{Reason: fmt.Sprintf("unsupported mode %q", input.Mode)}
	}

	if input.AspectRatio == "" {
		input.AspectRatio = s.defaultAspectRatio
	}
	if input.FPS == 0 {
		input.FPS = plan.DefaultFPS
	}
	if _, err := plan.NewOutputSpec(input.AspectRatio, input.FPS); err != nil {
		return err
	}

	if input.SeparatorSeconds == 0 {
		input.SeparatorSeconds = s.defaultSeparator
	}
	if input.Mode == plan.ModeMulti && input.SeparatorSeconds <= 0 {
		return &plan.InvalidInputError{
			Reason: fmt.Sprintf("separator duration must be positive, got %.3f", input.SeparatorSeconds),
		}
	}

	if input.OutputName == "" {
		input.OutputName = defaultOutputName
	}
	input.OutputName = filepath.Base(input.OutputName)

	return nil
}

// saveUploads streams the incoming files into the job workspace. Stored image
// names are prefixed with the upload index so the order survives on disk
// while grouping still sees the original names.
func (s *AssembleService) saveUploads(ctx context.Context, j *Job, input AssembleInput) error {
	images := make([]plan.ImageFile, 0, len(input.Images))
	for i, img := range input.Images {
		name := filepath.Base(img.Filename)
		stored := fmt.Sprintf("image_%03d_%s", i, name)
		path, err := s.store.SaveInWorkspace(ctx, j.ID, stored, img.Data)
		if err != nil {
			return fmt.Errorf("save image %q: %w", name, err)
		}
		images = append(images, plan.ImageFile{Path: path, Name: name})
	}
	j.Images = images

	if input.Audio != nil {
		name := filepath.Base(input.Audio.Filename)
		stored := "audio" + strings.ToLower(filepath.Ext(name))
		path, err := s.store.SaveInWorkspace(ctx, j.ID, stored, input.Audio.Data)
		if err != nil {
			return fmt.Errorf("save audio %q: %w", name, err)
		}
		j.AudioPath = path
		j.HasAudio = true
	}

	return nil
}

// GetJob retrieves a job by ID.
func (s *AssembleService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Process executes the assembly workflow for an existing job: probe the
// audio, lay out the plan, render, and optionally push the result to S3.
// It is meant to run in the background; pollers read progress off the job.
func (s *AssembleService) Process(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := j.Start(); err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	j.UpdateProgress(0, "planning slideshow")
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}

	if err := s.process(ctx, j); err != nil {
		s.failJob(ctx, j, err)
		return err
	}

	if err := j.Complete(); err != nil {
		s.failJob(ctx, j, err)
		return err
	}
	j.UpdateProgress(100, "complete")
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save completed job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	if s.metrics != nil {
		s.metrics.IncJobsCompleted(string(KindAssemble))
	}

	s.logger.Info("assembly job completed",
		slog.String("job_id", j.ID),
		slog.String("video_path", j.OutputVideoPath),
	)
	return nil
}

// process is the fallible middle of the workflow. The caller owns the final
// state transition.
func (s *AssembleService) process(ctx context.Context, j *Job) error {
	var audioSeconds float64
	if j.HasAudio {
		seconds, err := s.renderer.ProbeDuration(ctx, j.AudioPath)
		if err != nil {
			return fmt.Errorf("probe audio: %w", err)
		}
		audioSeconds = seconds
	}

	spec, err := plan.NewOutputSpec(j.AspectRatio, j.FPS)
	if err != nil {
		return err
	}
	p, err := plan.BuildRenderPlan(plan.PlanRequest{
		Files:            j.Images,
		AudioPath:        j.AudioPath,
		AudioSeconds:     audioSeconds,
		HasAudio:         j.HasAudio,
		Mode:             j.Mode,
		SeparatorSeconds: j.SeparatorSeconds,
		ImageSeconds:     s.defaultImageSeconds,
		Output:           spec,
	})
	if err != nil {
		return err
	}

	workDir, err := s.store.EnsureWorkspace(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("ensure workspace: %w", err)
	}
	if err := plan.WriteManifest(filepath.Join(workDir, plan.ManifestFilename), p); err != nil {
		return fmt.Errorf("write plan manifest: %w", err)
	}

	j.SetSegments(segmentStates(p))
	if err := s.repo.Save(ctx, j); err != nil {
		return err
	}

	s.logger.Info("render plan ready",
		slog.String("job_id", j.ID),
		slog.String("mode", string(p.Mode)),
		slog.Int("segments", len(p.Segments)),
		slog.Float64("total_seconds", p.TotalSeconds()),
	)

	outputPath := filepath.Join(workDir, j.OutputName)
	if err := s.render(ctx, j, p, workDir, outputPath); err != nil {
		return err
	}

	videoURL := ""
	if j.PushToS3 {
		videoURL, err = s.uploadVideo(ctx, j.ID, outputPath)
		if err != nil {
			return err
		}
	}
	j.SetOutput(outputPath, videoURL)

	return s.repo.Save(ctx, j)
}

// render drives the renderer while a consumer goroutine mirrors its progress
// reports onto the job. The updates channel is buffered and the renderer
// never blocks on it, so slow saves cost reports, not render time.
func (s *AssembleService) render(ctx context.Context, j *Job, p *plan.RenderPlan, workDir, outputPath string) error {
	updates := make(chan progress.Update, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range updates {
			j.UpdateProgress(u.Percent, u.Stage)
			if u.Segment >= 0 {
				j.CompleteSegment(u.Segment)
			}
			// Progress must persist even when the render is being cancelled.
			if err := s.repo.Save(context.WithoutCancel(ctx), j); err != nil {
				s.logger.Warn("failed to save job progress",
					slog.String("job_id", j.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}()

	started := time.Now()
	err := s.renderer.Render(ctx, p, workDir, outputPath, updates)
	close(updates)
	<-done
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	// Dropped reports must not leave segments dangling after a successful
	// render.
	for i := range j.Segments {
		j.CompleteSegment(i)
	}
	if s.metrics != nil {
		s.metrics.ObserveRenderDuration(time.Since(started).Seconds())
	}
	return nil
}

// uploadVideo pushes the finished render to S3 under a stable per-job key.
func (s *AssembleService) uploadVideo(ctx context.Context, jobID, videoPath string) (string, error) {
	f, err := os.Open(videoPath) // #nosec G304 - videoPath is inside the job workspace
	if err != nil {
		return "", fmt.Errorf("open rendered video: %w", err)
	}
	defer func() { _ = f.Close() }()

	key := fmt.Sprintf("videos/%s.mp4", jobID)
	url, err := s.store.UploadToS3(ctx, key, f)
	if err != nil {
		return "", fmt.Errorf("upload video to s3: %w", err)
	}

	s.logger.Info("video uploaded",
		slog.String("job_id", jobID),
		slog.String("url", url),
	)
	return url, nil
}

// DeleteVideo removes a job's workspace, rendered video included, and clears
// the output from the job record.
func (s *AssembleService) DeleteVideo(ctx context.Context, id string) error {
	j, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.RemoveWorkspace(ctx, j.ID); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	j.ClearOutput()
	return s.repo.Save(ctx, j)
}

// failJob moves the job to FAILED and persists it. Persistence problems are
// logged, not returned; the processing error is what matters to the caller.
func (s *AssembleService) failJob(ctx context.Context, j *Job, procErr error) {
	s.logger.Error("assembly job failed",
		slog.String("job_id", j.ID),
		slog.String("error", procErr.Error()),
	)
	if err := j.Fail(procErr.Error()); err != nil {
		s.logger.Warn("failed to mark job failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.repo.Save(context.WithoutCancel(ctx), j); err != nil {
		s.logger.Error("failed to save failed job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
	if s.metrics != nil {
		s.metrics.IncJobsFailed(string(KindAssemble))
	}
}

// segmentStates seeds per-segment tracking from a freshly built plan.
func segmentStates(p *plan.RenderPlan) []SegmentState {
	states := make([]SegmentState, len(p.Segments))
	for i, seg := range p.Segments {
		states[i] = SegmentState{
			Index:    i,
			Kind:     seg.Kind,
			GroupKey: seg.GroupKey,
			Status:   SegmentPending,
		}
	}
	return states
}
