// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/jumpcut/internal/jumpcut"
	"github.com/maauso/jumpcut/internal/plan"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPort is returned when PORT is outside 1-65535.
	ErrInvalidPort = errors.New("config: PORT must be between 1 and 65535")
	// ErrInvalidThreshold is returned when SILENCE_THRESHOLD_DB is outside -120..0.
	ErrInvalidThreshold = errors.New("config: SILENCE_THRESHOLD_DB must be between -120 and 0")
	// ErrInvalidMinSilence is returned when MIN_SILENCE_DURATION is not positive.
	ErrInvalidMinSilence = errors.New("config: MIN_SILENCE_DURATION must be greater than 0")
	// ErrInvalidSpeedFactor is returned when SPEED_FACTOR is outside 0.5..100.
	ErrInvalidSpeedFactor = errors.New("config: SPEED_FACTOR must be between 0.5 and 100")
	// ErrInvalidMode is returned when DEFAULT_MODE is neither remove nor speed.
	ErrInvalidMode = errors.New(`config: DEFAULT_MODE must be "remove" or "speed"`)
	// ErrInvalidConcurrency is returned when MAX_CONCURRENT_JOBS is below 1.
	ErrInvalidConcurrency = errors.New("config: MAX_CONCURRENT_JOBS must be at least 1")
	// ErrInvalidJobTimeout is returned when JOB_TIMEOUT is negative.
	ErrInvalidJobTimeout = errors.New("config: JOB_TIMEOUT must not be negative")
	// ErrInvalidMaxRequestBytes is returned when MAX_REQUEST_BYTES is negative.
	ErrInvalidMaxRequestBytes = errors.New("config: MAX_REQUEST_BYTES must not be negative")
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port            int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"allowed_origins"`
	MaxRequestBytes int64    `env:"MAX_REQUEST_BYTES, default=536870912" json:"max_request_bytes"` // 0 disables the limit

	// Storage settings
	TempDir  string `env:"TEMP_DIR, default=/tmp/jumpcut" json:"temp_dir"`
	InputDir string `env:"INPUT_DIR" json:"input_dir,omitempty"` // empty disables input_path

	// Engine settings
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Cut defaults, used when a request leaves them unset
	SilenceThresholdDB float64 `env:"SILENCE_THRESHOLD_DB, default=-30" json:"silence_threshold_db"`
	MinSilenceDuration float64 `env:"MIN_SILENCE_DURATION, default=0.5" json:"min_silence_duration"`
	SpeedFactor        float64 `env:"SPEED_FACTOR, default=2" json:"speed_factor"`
	DefaultMode        string  `env:"DEFAULT_MODE, default=remove" json:"default_mode"`

	// Job settings
	MaxConcurrentJobs int           `env:"MAX_CONCURRENT_JOBS, default=2" json:"max_concurrent_jobs"`
	JobTimeout        time.Duration `env:"JOB_TIMEOUT, default=0s" json:"job_timeout"` // 0 disables the timeout

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return LoadFrom(envconfig.OsLookuper())
}

// LoadFrom reads configuration from the given lookuper and validates it.
func LoadFrom(l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.SilenceThresholdDB < -120 || c.SilenceThresholdDB > 0 {
		return ErrInvalidThreshold
	}
	if c.MinSilenceDuration <= 0 {
		return ErrInvalidMinSilence
	}
	if c.SpeedFactor < 0.5 || c.SpeedFactor > 100 {
		return ErrInvalidSpeedFactor
	}
	if _, err := plan.ParseMode(c.DefaultMode); err != nil {
		return ErrInvalidMode
	}
	if c.MaxConcurrentJobs < 1 {
		return ErrInvalidConcurrency
	}
	if c.JobTimeout < 0 {
		return ErrInvalidJobTimeout
	}
	if c.MaxRequestBytes < 0 {
		return ErrInvalidMaxRequestBytes
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	return nil
}

// CutOptions returns the configured cut defaults.
func (c *Config) CutOptions() jumpcut.Options {
	mode, err := plan.ParseMode(c.DefaultMode)
	if err != nil {
		mode = jumpcut.DefaultMode
	}
	return jumpcut.Options{
		SilenceThresholdDB: c.SilenceThresholdDB,
		MinSilenceDuration: c.MinSilenceDuration,
		SpeedFactor:        c.SpeedFactor,
		Mode:               mode,
	}
}

// NewLogger creates a structured logger writing to stdout.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stdout)
}

// NewLoggerTo creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, MaxRequestBytes: %d, TempDir: %s, InputDir: %s, FFmpegPath: %s, FFprobePath: %s, SilenceThresholdDB: %g, MinSilenceDuration: %g, SpeedFactor: %g, DefaultMode: %s, MaxConcurrentJobs: %d, JobTimeout: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.MaxRequestBytes,
		c.TempDir,
		c.InputDir,
		c.FFmpegPath,
		c.FFprobePath,
		c.SilenceThresholdDB,
		c.MinSilenceDuration,
		c.SpeedFactor,
		c.DefaultMode,
		c.MaxConcurrentJobs,
		c.JobTimeout,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
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
