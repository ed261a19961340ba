package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"slidecast-api/internal/metrics"
	"slidecast-api/internal/storage"
	"slidecast-api/internal/transcribe"
)

// ErrInvalidSourceURL is returned when a transcription request carries a URL
// that is not absolute http or https.
var ErrInvalidSourceURL = errors.New("source url must be absolute http or https")

// TranscribeService orchestrates clip transcription: download the audio with
// yt-dlp, send it to the speech-to-text API and store the transcript on the
// job. Progress moves through fixed milestones rather than a continuous
// scale: 10 while downloading, 50 while transcribing, 90 while extracting
// the text and 100 when done.
type TranscribeService struct {
	repo        Repository
	store       storage.Storage
	downloader  transcribe.Downloader
	transcriber transcribe.Transcriber
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// NewTranscribeService creates a new TranscribeService.
// If logger is nil, slog.Default() is used.
func NewTranscribeService(repo Repository, store storage.Storage, downloader transcribe.Downloader, transcriber transcribe.Transcriber, logger *slog.Logger) *TranscribeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscribeService{
		repo:        repo,
		store:       store,
		downloader:  downloader,
		transcriber: transcriber,
		logger:      logger,
	}
}

// SetMetrics wires the Prometheus collectors. Without it the service runs
// unmetered.
func (s *TranscribeService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// CreateJob validates the clip URL and enqueues a transcription job.
func (s *TranscribeService) CreateJob(ctx context.Context, sourceURL string) (*Job, error) {
	parsed, err := url.Parse(sourceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSourceURL, sourceURL)
	}

	j := New(KindTranscribe)
	j.SourceURL = sourceURL
	j.WorkspaceDir = s.store.Workspace(j.ID)

	s.logger.Info("creating transcription job",
		slog.String("job_id", j.ID),
		slog.String("source_url", sourceURL),
	)

	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncJobsCreated(string(KindTranscribe))
	}

	return j, nil
}

// GetJob retrieves a job by ID.
func (s *TranscribeService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Process executes the transcription workflow for an existing job. It is
// meant to run in the background; pollers read progress off the job.
func (s *TranscribeService) Process(ctx context.Context, jobID string) error {
	j, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if err := j.Start(); err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}

	if err := s.setStage(ctx, j, 10, "downloading audio"); err != nil {
		return err
	}
	workDir, err := s.store.EnsureWorkspace(ctx, j.ID)
	if err != nil {
		err = fmt.Errorf("ensure workspace: %w", err)
		s.failJob(ctx, j, err)
		return err
	}
	audioPath, err := s.downloader.DownloadAudio(ctx, j.SourceURL, workDir)
	if err != nil {
		err = fmt.Errorf("download audio: %w", err)
		s.failJob(ctx, j, err)
		return err
	}

	if err := s.setStage(ctx, j, 50, "transcribing audio"); err != nil {
		return err
	}
	result, err := s.transcriber.TranscribeFile(ctx, audioPath)
	if err != nil {
		err = fmt.Errorf("transcribe audio: %w", err)
		s.failJob(ctx, j, err)
		return err
	}

	if err := s.setStage(ctx, j, 90, "extracting transcript"); err != nil {
		return err
	}
	j.SetTranscript(result.Text)

	if err := j.Complete(); err != nil {
		s.failJob(ctx, j, err)
		return err
	}
	j.UpdateProgress(100, "transcription complete")
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save completed job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	if s.metrics != nil {
		s.metrics.IncJobsCompleted(string(KindTranscribe))
	}

	s.logger.Info("transcription job completed",
		slog.String("job_id", j.ID),
		slog.Int("transcript_chars", len(result.Text)),
	)
	return nil
}

// setStage records a progress milestone on the job and persists it.
func (s *TranscribeService) setStage(ctx context.Context, j *Job, percent int, stage string) error {
	j.UpdateProgress(percent, stage)
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Error("failed to save job progress",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}

// failJob moves the job to FAILED and persists it. Persistence problems are
// logged, not returned; the processing error is what matters to the caller.
func (s *TranscribeService) failJob(ctx context.Context, j *Job, procErr error) {
	s.logger.Error("transcription job failed",
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
		s.metrics.IncJobsFailed(string(KindTranscribe))
	}
}
