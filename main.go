// Package main provides the entry point for the slidecast API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"slidecast-api/internal/config"
	"slidecast-api/internal/janitor"
	"slidecast-api/internal/job"
	"slidecast-api/internal/media"
	"slidecast-api/internal/metrics"
	"slidecast-api/internal/server"
	"slidecast-api/internal/storage"
	"slidecast-api/internal/transcribe"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present, then configuration from environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting slidecast API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.Int("render_workers", cfg.RenderWorkers),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
		slog.Bool("transcription_enabled", cfg.TranscriptionEnabled()),
	)

	// Initialize storage
	var store storage.Storage
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
			return fmt.Errorf("create S3 storage: %w", err)
		}
		store = s3Store
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
	} else {
		localStore, err := storage.NewLocalStorage(cfg.TempDir)
		if err != nil {
			return fmt.Errorf("create local storage: %w", err)
		}
		store = localStore
		logger.Info("local storage configured",
			slog.String("temp_dir", cfg.TempDir),
		)
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
			return fmt.Errorf("create Deepgram client: %w", err)
		}
		downloader := transcribe.NewYtDlpDownloader(cfg.YtDlpPath)
		transcribeSvc = job.NewTranscribeService(repo, store, downloader, client, logger)
		transcribeSvc.SetMetrics(m)
	}

	// Start the workspace janitor
	jan := janitor.New(repo, store, cfg.WorkspaceTTL, logger)
	if err := jan.Start(cfg.CleanupSchedule); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	defer jan.Stop()

	// Initialize HTTP handlers and router
	handlerOpts := []server.HandlerOption{
		server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
	}
	if transcribeSvc != nil {
		handlerOpts = append(handlerOpts, server.WithTranscription(transcribeSvc))
	}
	handlers := server.NewHandlers(assemble, store, logger, handlerOpts...)

	routerCfg := server.DefaultConfig()
	routerCfg.Metrics = m
	routerCfg.UpdateGauges = func() {
		if n, err := repo.CountActive(context.Background()); err == nil {
			m.SetActiveJobs(n)
		}
	}
	router := server.NewRouter(handlers, logger, routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // Allow for long renders
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
