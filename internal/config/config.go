// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-envconfig"

	"slidecast-api/internal/plan"
)

// Static errors for configuration validation.
var (
	// ErrNonPositiveValue is returned when a numeric setting is zero or negative.
	ErrNonPositiveValue = errors.New("config: value must be positive")
	// ErrUnknownAspectRatio is returned when DEFAULT_ASPECT_RATIO does not name a preset.
	ErrUnknownAspectRatio = errors.New("config: DEFAULT_ASPECT_RATIO is not a known preset")
	// ErrBadCleanupSchedule is returned when CLEANUP_SCHEDULE is not a valid cron expression.
	ErrBadCleanupSchedule = errors.New("config: CLEANUP_SCHEDULE is not a valid cron expression")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/slidecast" json:"temp_dir"`

	// External tool paths. Empty means resolve from PATH.
	FFmpegPath string `env:"FFMPEG_PATH" json:"ffmpeg_path,omitempty"`
	YtDlpPath  string `env:"YTDLP_PATH" json:"ytdlp_path,omitempty"`

	// Rendering defaults
	DefaultAspectRatio  string  `env:"DEFAULT_ASPECT_RATIO, default=9:16" json:"default_aspect_ratio"`
	DefaultFPS          int     `env:"DEFAULT_FPS, default=30" json:"default_fps"`
	DefaultSeparatorSec float64 `env:"DEFAULT_SEPARATOR_SEC, default=5.0" json:"default_separator_sec"`
	DefaultImageSec     float64 `env:"DEFAULT_IMAGE_SEC, default=3.0" json:"default_image_sec"`
	RenderWorkers       int     `env:"RENDER_WORKERS, default=2" json:"render_workers"`

	// Upload limits
	MaxUploadMB int64 `env:"MAX_UPLOAD_MB, default=500" json:"max_upload_mb"`

	// Workspace cleanup
	WorkspaceTTL    time.Duration `env:"WORKSPACE_TTL, default=1h" json:"workspace_ttl"`
	CleanupSchedule string        `env:"CLEANUP_SCHEDULE, default=0 * * * *" json:"cleanup_schedule"`

	// Optional Deepgram settings. Transcription stays disabled without a key.
	DeepgramAPIKey   string `env:"DEEPGRAM_API_KEY" json:"-"` // Masked in JSON
	DeepgramModel    string `env:"DEEPGRAM_MODEL, default=nova-2" json:"deepgram_model"`
	DeepgramLanguage string `env:"DEEPGRAM_LANGUAGE, default=pt" json:"deepgram_language"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"` // For S3-compatible stores
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`               // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"`           // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// TranscriptionEnabled returns true if a Deepgram API key is provided.
func (c *Config) TranscriptionEnabled() bool {
	return c.DeepgramAPIKey != ""
}

// MaxUploadBytes returns the request body limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result. It returns an error if a variable cannot be
// parsed or fails validation.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges that envconfig parsing cannot express.
func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("%w: PORT=%d", ErrNonPositiveValue, c.Port)
	}
	if c.DefaultFPS <= 0 {
		return fmt.Errorf("%w: DEFAULT_FPS=%d", ErrNonPositiveValue, c.DefaultFPS)
	}
	if c.DefaultSeparatorSec <= 0 {
		return fmt.Errorf("%w: DEFAULT_SEPARATOR_SEC=%g", ErrNonPositiveValue, c.DefaultSeparatorSec)
	}
	if c.DefaultImageSec <= 0 {
		return fmt.Errorf("%w: DEFAULT_IMAGE_SEC=%g", ErrNonPositiveValue, c.DefaultImageSec)
	}
	if c.RenderWorkers <= 0 {
		return fmt.Errorf("%w: RENDER_WORKERS=%d", ErrNonPositiveValue, c.RenderWorkers)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: MAX_UPLOAD_MB=%d", ErrNonPositiveValue, c.MaxUploadMB)
	}
	if c.WorkspaceTTL <= 0 {
		return fmt.Errorf("%w: WORKSPACE_TTL=%s", ErrNonPositiveValue, c.WorkspaceTTL)
	}
	if _, _, err := plan.ResolveAspectRatio(c.DefaultAspectRatio); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownAspectRatio, c.DefaultAspectRatio)
	}
	if _, err := cron.ParseStandard(c.CleanupSchedule); err != nil {
		return fmt.Errorf("%w: %q", ErrBadCleanupSchedule, c.CleanupSchedule)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, DefaultAspectRatio: %s, DefaultFPS: %d, RenderWorkers: %d, MaxUploadMB: %d, WorkspaceTTL: %s, CleanupSchedule: %s, TranscriptionEnabled: %t, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.DefaultAspectRatio,
		c.DefaultFPS,
		c.RenderWorkers,
		c.MaxUploadMB,
		c.WorkspaceTTL,
		c.CleanupSchedule,
		c.TranscriptionEnabled(),
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
