// Package bootstrap provides dependency initialization for the jumpcut
// server and CLI.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/maauso/jumpcut/internal/config"
	"github.com/maauso/jumpcut/internal/job"
	"github.com/maauso/jumpcut/internal/jumpcut"
	"github.com/maauso/jumpcut/internal/media"
	"github.com/maauso/jumpcut/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Cutter     *jumpcut.Cutter
	CutService *job.ProcessCutService
	Storage    storage.Storage
}

// NewCutter builds a Cutter over the configured ffmpeg binaries and the
// given temp storage.
func NewCutter(cfg *config.Config, store storage.Storage, logger *slog.Logger) *jumpcut.Cutter {
	engine := media.NewFFmpegEngine(cfg.FFmpegPath,
		media.WithFFprobePath(cfg.FFprobePath),
		media.WithLogger(logger),
	)
	return jumpcut.NewCutter(engine,
		jumpcut.WithStorage(store),
		jumpcut.WithLogger(logger),
	)
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	cutter := NewCutter(cfg, store, logger)

	// Initialize job repository
	repo := job.NewMemoryRepository()

	svc := job.NewProcessCutService(
		repo,
		cutter,
		store,
		logger,
		job.WithMaxConcurrentJobs(cfg.MaxConcurrentJobs),
		job.WithJobTimeout(cfg.JobTimeout),
		job.WithS3Enabled(cfg.S3Enabled()),
		job.WithInputDir(cfg.InputDir),
	)

	return &Dependencies{
		Cutter:     cutter,
		CutService: svc,
		Storage:    store,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
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
			slog.String("endpoint", cfg.S3Endpoint),
			slog.String("temp_dir", s3Store.TempDir()),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", localStore.TempDir()),
	)
	return localStore, nil
}
