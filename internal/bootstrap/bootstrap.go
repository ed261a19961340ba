// Package bootstrap provides dependency initialization for the slidecast API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"slidecast-api/internal/config"
	"slidecast-api/internal/janitor"
	"slidecast-api/internal/job"
	"slidecast-api/internal/media"
	"slidecast-api/internal/metrics"
	"slidecast-api/internal/storage"
	"slidecast-api/internal/transcribe"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Assemble *job.AssembleService
	// Transcribe is nil when no Deepgram API key is configured.
	Transcribe *job.TranscribeService
	Janitor    *janitor.Janitor
	Metrics    *metrics.Metrics
	Repo       job.Repository
	Store      storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize job repository and renderer
	repo := job.NewMemoryRepository()
	renderer := media.NewFFmpegRenderer(cfg.FFmpegPath, media.WithWorkers(cfg.RenderWorkers))

	m := metrics.New()

	// Initialize AssembleService
	assemble := job.NewAssembleService(repo, store, renderer, logger)
	assemble.SetMetrics(m)
	assemble.SetDefaultAspectRatio(cfg.DefaultAspectRatio)
	assemble.SetDefaultSeparator(cfg.DefaultSeparatorSec)
	assemble.SetDefaultImageSeconds(cfg.DefaultImageSec)

	// Initialize TranscribeService when a Deepgram key is configured
	var transcribeSvc *job.TranscribeService
	if cfg.TranscriptionEnabled() {
		client, err := transcribe.NewClient(
			transcribe.WithAPIKey(cfg.DeepgramAPIKey),
			transcribe.WithModel(cfg.DeepgramModel),
			transcribe.WithLanguage(cfg.DeepgramLanguage),
		)
		if err != nil {
			return nil, fmt.Errorf("create Deepgram client: %w", err)
		}
		downloader := transcribe.NewYtDlpDownloader(cfg.YtDlpPath)
		transcribeSvc = job.NewTranscribeService(repo, store, downloader, client, logger)
		transcribeSvc.SetMetrics(m)
		logger.Info("transcription enabled",
			slog.String("model", cfg.DeepgramModel),
			slog.String("language", cfg.DeepgramLanguage),
		)
	} else {
		logger.Info("transcription disabled, DEEPGRAM_API_KEY not set")
	}

	return &Dependencies{
		Assemble:   assemble,
		Transcribe: transcribeSvc,
		Janitor:    janitor.New(repo, store, cfg.WorkspaceTTL, logger),
		Metrics:    m,
		Repo:       repo,
		Store:      store,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
