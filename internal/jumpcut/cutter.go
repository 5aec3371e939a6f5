// Package jumpcut runs the silence cut pipeline: detect silence, probe the
// input, plan the kept and retimed segments, then render them in one engine
// pass.
package jumpcut

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/jumpcut/internal/filtergraph"
	"github.com/maauso/jumpcut/internal/media"
	"github.com/maauso/jumpcut/internal/plan"
	"github.com/maauso/jumpcut/internal/silence"
	"github.com/maauso/jumpcut/internal/storage"
)

// ErrInvalidArgument is returned for bad call-site input such as a missing
// path, an unknown mode or an unsupported output format.
var ErrInvalidArgument = errors.New("invalid argument")

// Default processing values.
const (
	DefaultSilenceThresholdDB = -30.0
	DefaultMinSilenceDuration = 0.5
	DefaultSpeedFactor        = 2.0
	DefaultMode               = plan.ModeRemove
)

// OutputFormats lists the containers ProcessToBuffer can produce.
var OutputFormats = []string{"mp4", "mov", "avi", "mp3", "wav"}

// Options controls silence detection and how silent spans are handled.
type Options struct {
	// SilenceThresholdDB is the loudness below which audio counts as silent.
	SilenceThresholdDB float64 `validate:"gte=-120,lte=0"`
	// MinSilenceDuration is the shortest span, in seconds, reported as silence.
	MinSilenceDuration float64 `validate:"gt=0"`
	// SpeedFactor is the playback rate applied to silences in speed mode.
	SpeedFactor float64 `validate:"gte=0.5,lte=100"`
	// Mode selects removing or speeding up silences.
	Mode plan.Mode `validate:"oneof=remove speed"`
	// ExtendTrailingSilence closes a silence still open at the end of the
	// input at the probed duration instead of ignoring it.
	ExtendTrailingSilence bool
}

// DefaultOptions returns the options used when the caller sets nothing.
func DefaultOptions() Options {
	return Options{
		SilenceThresholdDB: DefaultSilenceThresholdDB,
		MinSilenceDuration: DefaultMinSilenceDuration,
		SpeedFactor:        DefaultSpeedFactor,
		Mode:               DefaultMode,
	}
}

// Request is a file to file cut.
type Request struct {
	Input   string `validate:"required"`
	Output  string `validate:"required,nefield=Input"`
	Options Options
}

// BufferRequest is a cut whose output is returned in memory.
type BufferRequest struct {
	Input        string `validate:"required"`
	Options      Options
	OutputFormat string `validate:"required,oneof=mp4 mov avi mp3 wav"`
}

// Result describes what a cut did, or would do for a dry run.
type Result struct {
	// Duration is the probed input duration in seconds.
	Duration float64
	// Silences are the detected silent spans.
	Silences []silence.Interval
	// Plan is the segment plan built from Silences.
	Plan plan.Plan
	// Graph is the filter graph for Plan, nil when Passthrough is set.
	Graph *filtergraph.Graph
	// Passthrough is true when nothing needed cutting and the input was
	// copied through unchanged.
	Passthrough bool
}

// Cutter runs cuts against a media engine. It is safe for concurrent use.
type Cutter struct {
	engine    media.Engine
	store     storage.Storage
	validator *validator.Validate
	logger    *slog.Logger
}

// Option configures a Cutter.
type Option func(*Cutter)

// WithLogger sets the logger used for pipeline events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cutter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStorage sets the temp storage used by ProcessToBuffer.
func WithStorage(store storage.Storage) Option {
	return func(c *Cutter) {
		c.store = store
	}
}

// NewCutter creates a Cutter over engine.
func NewCutter(engine media.Engine, opts ...Option) *Cutter {
	c := &Cutter{
		engine:    engine,
		validator: validator.New(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process cuts req.Input into req.Output.
func (c *Cutter) Process(ctx context.Context, req Request) (*Result, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}
	if samePath(req.Input, req.Output) {
		return nil, fmt.Errorf("%w: output must differ from input", ErrInvalidArgument)
	}
	return c.process(ctx, req.Input, req.Output, req.Options)
}

// ProcessToBuffer cuts req.Input into a temporary file of the requested
// format and returns its bytes. The temporary file is removed on every path.
func (c *Cutter) ProcessToBuffer(ctx context.Context, req BufferRequest) ([]byte, error) {
	req.OutputFormat = strings.ToLower(strings.TrimPrefix(req.OutputFormat, "."))
	if err := c.validate(req); err != nil {
		return nil, err
	}
	if c.store == nil {
		return nil, errors.New("process to buffer: no temp storage configured")
	}

	tmp, err := c.store.TempPath(ctx, "jumpcut", req.OutputFormat)
	if err != nil {
		return nil, fmt.Errorf("reserve temp output: %w", err)
	}
	defer func() {
		if cerr := c.store.CleanupTemp(context.WithoutCancel(ctx), []string{tmp}); cerr != nil {
			c.logger.Warn("failed to remove temp output",
				slog.String("path", tmp),
				slog.String("error", cerr.Error()),
			)
		}
	}()

	if _, err := c.process(ctx, req.Input, tmp, req.Options); err != nil {
		return nil, err
	}

	rc, err := c.store.LoadTemp(ctx, tmp)
	if err != nil {
		return nil, fmt.Errorf("open temp output: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read temp output: %w", err)
	}
	return data, nil
}

// Plan detects silence and builds the plan and filter graph for input
// without writing anything.
func (c *Cutter) Plan(ctx context.Context, input string, opts Options) (*Result, error) {
	if input == "" {
		return nil, fmt.Errorf("%w: input path is required", ErrInvalidArgument)
	}
	if err := c.validate(opts); err != nil {
		return nil, err
	}
	return c.analyse(ctx, input, false, opts)
}

func (c *Cutter) process(ctx context.Context, input, output string, opts Options) (*Result, error) {
	started := time.Now()

	res, err := c.analyse(ctx, input, isAudioContainer(output), opts)
	if err != nil {
		return nil, err
	}

	if err := c.engine.Execute(ctx, input, res.Graph, output); err != nil {
		return nil, err
	}

	c.logger.Info("cut finished",
		slog.String("input", input),
		slog.String("output", output),
		slog.String("mode", string(opts.Mode)),
		slog.Int("silences", len(res.Silences)),
		slog.Int("segments", len(res.Plan.Segments)),
		slog.Float64("duration", res.Duration),
		slog.Float64("output_duration", res.Plan.OutputDuration()),
		slog.Bool("passthrough", res.Passthrough),
		slog.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

func (c *Cutter) analyse(ctx context.Context, input string, audioOnlyOutput bool, opts Options) (*Result, error) {
	events, err := c.engine.DetectSilence(ctx, input, opts.SilenceThresholdDB, opts.MinSilenceDuration)
	if err != nil {
		return nil, err
	}

	info, err := c.engine.Probe(ctx, input)
	if err != nil {
		return nil, err
	}

	var parseOpts []silence.Option
	if opts.ExtendTrailingSilence {
		parseOpts = append(parseOpts, silence.WithOpenEnd(info.Duration))
	}
	silences := silence.Parse(events, parseOpts...)

	p := plan.Build(silences, info.Duration, opts.Mode, opts.SpeedFactor)

	var graphOpts []filtergraph.Option
	if audioOnlyOutput || !info.HasVideo {
		graphOpts = append(graphOpts, filtergraph.WithoutVideo())
	}
	g := filtergraph.Build(p, graphOpts...)

	c.logger.Debug("cut planned",
		slog.String("input", input),
		slog.Int("events", len(events)),
		slog.Int("silences", len(silences)),
		slog.Float64("removed", p.RemovedDuration()),
		slog.Bool("video", g != nil && g.HasVideo()),
	)

	return &Result{
		Duration:    info.Duration,
		Silences:    silences,
		Plan:        p,
		Graph:       g,
		Passthrough: g == nil,
	}, nil
}

func (c *Cutter) validate(v any) error {
	err := c.validator.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "nefield":
		return "output must differ from input"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", strings.ToLower(fe.Field()), fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s must satisfy %s=%s, got %v", strings.ToLower(fe.Field()), fe.Tag(), fe.Param(), fe.Value())
	}
}

// samePath reports whether a and b name the same file, either as equal
// absolute paths or as existing files that resolve to one inode.
func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA == nil && errB == nil && absA == absB {
		return true
	}
	infoA, err := os.Stat(a)
	if err != nil {
		return false
	}
	infoB, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(infoA, infoB)
}

func isAudioContainer(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".wav":
		return true
	}
	return false
}
