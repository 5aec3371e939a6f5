package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maauso/jumpcut/internal/filtergraph"
	"github.com/maauso/jumpcut/internal/silence"
)

// Static errors for media operations. Every engine failure wraps exactly one.
var (
	// ErrDetection is returned when the silence detection pass fails.
	ErrDetection = errors.New("silence detection failed")
	// ErrProbe is returned when ffprobe cannot read the input or it has no duration.
	ErrProbe = errors.New("probe failed")
	// ErrExecution is returned when the filter or copy pass fails.
	ErrExecution = errors.New("engine execution failed")
)

// FFmpegEngine implements Engine using the ffmpeg and ffprobe CLIs.
type FFmpegEngine struct {
	ffmpegPath  string
	ffprobePath string
	logger      *slog.Logger
}

// EngineOption configures an FFmpegEngine.
type EngineOption func(*FFmpegEngine)

// WithFFprobePath sets the ffprobe binary. Defaults to "ffprobe" found via PATH.
func WithFFprobePath(path string) EngineOption {
	return func(e *FFmpegEngine) {
		if path != "" {
			e.ffprobePath = path
		}
	}
}

// WithLogger sets the logger used for engine command tracing.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *FFmpegEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewFFmpegEngine creates a new FFmpegEngine.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegEngine(ffmpegPath string, opts ...EngineOption) *FFmpegEngine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	e := &FFmpegEngine{
		ffmpegPath:  ffmpegPath,
		ffprobePath: "ffprobe",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verify interface implementation at compile time.
var _ Engine = (*FFmpegEngine)(nil)

// DetectSilence runs ffmpeg's silencedetect filter and returns its events.
func (e *FFmpegEngine) DetectSilence(ctx context.Context, input string, thresholdDB, minDuration float64) ([]silence.Event, error) {
	stderr, err := e.run(ctx, e.ffmpegPath, detectArgs(input, thresholdDB, minDuration))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetection, err)
	}

	// ffmpeg writes silencedetect output to stderr
	events, err := silence.ScanEvents(strings.NewReader(stderr))
	if err != nil {
		return nil, fmt.Errorf("%w: read log: %w", ErrDetection, err)
	}

	e.logger.Debug("silence detection finished",
		slog.String("input", input),
		slog.Int("events", len(events)),
	)
	return events, nil
}

func detectArgs(input string, thresholdDB, minDuration float64) []string {
	filter := fmt.Sprintf("silencedetect=n=%sdB:d=%s", formatNumber(thresholdDB), formatNumber(minDuration))
	return []string{
		"-hide_banner",
		"-nostdin",
		"-i", input,
		"-vn",         // Only the audio track is analysed
		"-af", filter, // Report silence_start / silence_end on stderr
		"-f", "null", // Discard the decoded output
		"-",
	}
}

// ffprobeOutput mirrors the subset of `ffprobe -of json` we read.
type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the duration and stream layout of a media file.
func (e *FFmpegEngine) Probe(ctx context.Context, input string) (Info, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type",
		"-of", "json",
		input,
	}

	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Info{}, fmt.Errorf("%w: ffprobe cancelled: %w", ErrProbe, ctx.Err())
		}
		return Info{}, fmt.Errorf("%w: %w", ErrProbe, &FFmpegError{Args: args, Stderr: stderr.String(), Err: err})
	}

	info, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return Info{}, fmt.Errorf("%w: %s: %w", ErrProbe, input, err)
	}
	return info, nil
}

// ProbeDuration returns the duration in seconds of a media file.
func (e *FFmpegEngine) ProbeDuration(ctx context.Context, input string) (float64, error) {
	info, err := e.Probe(ctx, input)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

func parseProbeOutput(data []byte) (Info, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Info{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	raw := strings.TrimSpace(out.Format.Duration)
	if raw == "" || raw == "N/A" {
		return Info{}, errors.New("no duration metadata")
	}
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Info{}, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if duration <= 0 {
		return Info{}, fmt.Errorf("invalid duration %v", duration)
	}

	info := Info{Duration: duration}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			info.HasVideo = true
		case "audio":
			info.HasAudio = true
		}
	}
	return info, nil
}

// Execute writes output from input, filtered through graph when it is set.
func (e *FFmpegEngine) Execute(ctx context.Context, input string, graph *filtergraph.Graph, output string) error {
	if _, err := e.run(ctx, e.ffmpegPath, executeArgs(input, graph, output)); err != nil {
		return fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return nil
}

func executeArgs(input string, graph *filtergraph.Graph, output string) []string {
	args := []string{
		"-y", // Overwrite output file without asking
		"-hide_banner",
		"-nostdin",
		"-i", input,
	}

	if graph == nil {
		if sameContainer(input, output) {
			// Passthrough: copy every stream without re-encoding
			args = append(args, "-map", "0", "-c", "copy")
		}
		return append(args, output)
	}

	args = append(args, "-filter_complex", graph.String())
	for _, pad := range graph.Outputs() {
		args = append(args, "-map", pad)
	}
	return append(args,
		"-shortest",
		"-avoid_negative_ts", "make_zero",
		output,
	)
}

func sameContainer(input, output string) bool {
	return strings.EqualFold(filepath.Ext(input), filepath.Ext(output))
}

// run executes a tool and returns its stderr. A failed run returns an
// *FFmpegError carrying the diagnostics.
func (e *FFmpegEngine) run(ctx context.Context, bin string, args []string) (string, error) {
	e.logger.Debug("running media engine",
		slog.String("bin", bin),
		slog.String("args", strings.Join(args, " ")),
	)

	// #nosec G204 - bin is set by the application, not user input
	cmd := exec.CommandContext(ctx, bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s cancelled: %w", filepath.Base(bin), ctx.Err())
		}
		return "", &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return stderr.String(), nil
}

// FFmpegError represents an error from running ffmpeg or ffprobe, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, lastLines(e.Stderr, 20))
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// lastLines keeps the tail of a long engine log, where the failure is reported.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
