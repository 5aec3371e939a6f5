package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/maauso/jumpcut/internal/bootstrap"
	"github.com/maauso/jumpcut/internal/config"
	"github.com/maauso/jumpcut/internal/jumpcut"
	"github.com/maauso/jumpcut/internal/storage"
)

// cutter is the part of jumpcut.Cutter the commands use.
type cutter interface {
	Process(ctx context.Context, req jumpcut.Request) (*jumpcut.Result, error)
	Plan(ctx context.Context, input string, opts jumpcut.Options) (*jumpcut.Result, error)
}

type cutterFactory func(cfg *config.Config, logger *slog.Logger) (cutter, error)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	ffmpegPath  string
	ffprobePath string
	logLevel    string
	logFormat   string
}

type commandContext struct {
	flags     *globalFlags
	newCutter cutterFactory

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *globalFlags, factory cutterFactory) *commandContext {
	if factory == nil {
		factory = defaultCutter
	}
	return &commandContext{
		flags:     flags,
		newCutter: factory,
	}
}

// ensureConfig loads the environment configuration once and applies the
// persistent flag overrides.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		if v := strings.TrimSpace(c.flags.ffmpegPath); v != "" {
			cfg.FFmpegPath = v
		}
		if v := strings.TrimSpace(c.flags.ffprobePath); v != "" {
			cfg.FFprobePath = v
		}
		if v := strings.TrimSpace(c.flags.logLevel); v != "" {
			cfg.LogLevel = v
		}
		if v := strings.TrimSpace(c.flags.logFormat); v != "" {
			cfg.LogFormat = v
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func defaultCutter(cfg *config.Config, logger *slog.Logger) (cutter, error) {
	store, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewCutter(cfg, store, logger), nil
}
