package jumpcut

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/jumpcut/internal/filtergraph"
	"github.com/maauso/jumpcut/internal/media"
	"github.com/maauso/jumpcut/internal/plan"
	"github.com/maauso/jumpcut/internal/silence"
	"github.com/maauso/jumpcut/internal/storage"
)

// mockEngine implements media.Engine for testing.
type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) DetectSilence(ctx context.Context, input string, thresholdDB, minDuration float64) ([]silence.Event, error) {
	args := m.Called(ctx, input, thresholdDB, minDuration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]silence.Event), args.Error(1)
}

func (m *mockEngine) Probe(ctx context.Context, input string) (media.Info, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(media.Info), args.Error(1)
}

func (m *mockEngine) ProbeDuration(ctx context.Context, input string) (float64, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockEngine) Execute(ctx context.Context, input string, graph *filtergraph.Graph, output string) error {
	args := m.Called(ctx, input, graph, output)
	return args.Error(0)
}

var videoInfo = media.Info{Duration: 5, HasVideo: true, HasAudio: true}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCutter(t *testing.T) (*Cutter, *mockEngine) {
	t.Helper()
	engine := &mockEngine{}
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewCutter(engine, WithStorage(store), WithLogger(quietLogger())), engine
}

func oneSilence() []silence.Event {
	return []silence.Event{silence.Start(1), silence.End(2)}
}

func TestCutter_Process_Validation(t *testing.T) {
	speedOpts := DefaultOptions()
	speedOpts.Mode = "fast"

	loudOpts := DefaultOptions()
	loudOpts.SilenceThresholdDB = 10

	zeroOpts := DefaultOptions()
	zeroOpts.MinSilenceDuration = 0

	slowOpts := DefaultOptions()
	slowOpts.SpeedFactor = 0.1

	tests := []struct {
		name    string
		req     Request
		wantMsg string
	}{
		{"missing input", Request{Output: "out.mp4", Options: DefaultOptions()}, "input is required"},
		{"missing output", Request{Input: "in.mp4", Options: DefaultOptions()}, "output is required"},
		{"output equals input", Request{Input: "in.mp4", Output: "in.mp4", Options: DefaultOptions()}, "output must differ from input"},
		{"output equals input after cleaning", Request{Input: "in.mp4", Output: "./in.mp4", Options: DefaultOptions()}, "output must differ from input"},
		{"output equals input through parent", Request{Input: "clips/in.mp4", Output: "clips/../clips/in.mp4", Options: DefaultOptions()}, "output must differ from input"},
		{"unknown mode", Request{Input: "in.mp4", Output: "out.mp4", Options: speedOpts}, "mode must be one of"},
		{"positive threshold", Request{Input: "in.mp4", Output: "out.mp4", Options: loudOpts}, "silencethresholddb"},
		{"zero min silence", Request{Input: "in.mp4", Output: "out.mp4", Options: zeroOpts}, "minsilenceduration"},
		{"speed factor too low", Request{Input: "in.mp4", Output: "out.mp4", Options: slowOpts}, "speedfactor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, engine := newTestCutter(t)

			_, err := c.Process(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, KindInvalidArgument, Kind(err))
			engine.AssertNotCalled(t, "DetectSilence", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCutter_Process_OutputLinkedToInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.mp4")
	require.NoError(t, os.WriteFile(input, []byte("media"), 0o644))
	link := filepath.Join(dir, "link.mp4")
	require.NoError(t, os.Symlink(input, link))

	c, engine := newTestCutter(t)

	_, err := c.Process(context.Background(), Request{Input: input, Output: link, Options: DefaultOptions()})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "output must differ from input")
	engine.AssertNotCalled(t, "DetectSilence", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCutter_Process_RemoveMode(t *testing.T) {
	c, engine := newTestCutter(t)
	ctx := context.Background()

	want := filtergraph.Build(plan.Build([]silence.Interval{{Start: 1, End: 2}}, 5, plan.ModeRemove, 2))

	engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).Return(oneSilence(), nil)
	engine.On("Probe", ctx, "in.mp4").Return(videoInfo, nil)
	engine.On("Execute", ctx, "in.mp4", mock.MatchedBy(func(g *filtergraph.Graph) bool {
		return g != nil && g.String() == want.String()
	}), "out.mp4").Return(nil)

	res, err := c.Process(ctx, Request{Input: "in.mp4", Output: "out.mp4", Options: DefaultOptions()})
	require.NoError(t, err)

	assert.Equal(t, 5.0, res.Duration)
	assert.Equal(t, []silence.Interval{{Start: 1, End: 2}}, res.Silences)
	assert.Equal(t, []plan.Segment{{Start: 0, End: 1, Speed: 1}, {Start: 2, End: 5, Speed: 1}}, res.Plan.Segments)
	assert.False(t, res.Passthrough)
	assert.True(t, res.Graph.HasVideo())
	assert.InDelta(t, 4.0, res.Plan.OutputDuration(), 1e-9)
	engine.AssertExpectations(t)
}

func TestCutter_Process_SpeedMode(t *testing.T) {
	c, engine := newTestCutter(t)
	ctx := context.Background()

	opts := DefaultOptions()
	opts.Mode = plan.ModeSpeed
	opts.SpeedFactor = 2
	opts.SilenceThresholdDB = -40
	opts.MinSilenceDuration = 0.3

	engine.On("DetectSilence", ctx, "in.mp4", -40.0, 0.3).Return(oneSilence(), nil)
	engine.On("Probe", ctx, "in.mp4").Return(videoInfo, nil)
	engine.On("Execute", ctx, "in.mp4", mock.AnythingOfType("*filtergraph.Graph"), "out.mp4").Return(nil)

	res, err := c.Process(ctx, Request{Input: "in.mp4", Output: "out.mp4", Options: opts})
	require.NoError(t, err)

	assert.Equal(t, []plan.Segment{
		{Start: 0, End: 1, Speed: 1},
		{Start: 1, End: 2, Speed: 2},
		{Start: 2, End: 5, Speed: 1},
	}, res.Plan.Segments)
	assert.InDelta(t, 4.5, res.Plan.OutputDuration(), 1e-9)
	assert.Contains(t, res.Graph.String(), "setpts=PTS/2")
	assert.Contains(t, res.Graph.String(), "atempo=2")
	engine.AssertExpectations(t)
}

func TestCutter_Process_Passthrough(t *testing.T) {
	c, engine := newTestCutter(t)
	ctx := context.Background()

	engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).Return([]silence.Event{}, nil)
	engine.On("Probe", ctx, "in.mp4").Return(videoInfo, nil)
	engine.On("Execute", ctx, "in.mp4", (*filtergraph.Graph)(nil), "out.mp4").Return(nil)

	res, err := c.Process(ctx, Request{Input: "in.mp4", Output: "out.mp4", Options: DefaultOptions()})
	require.NoError(t, err)

	assert.True(t, res.Passthrough)
	assert.Nil(t, res.Graph)
	assert.Empty(t, res.Silences)
	assert.True(t, res.Plan.IsNoop())
	engine.AssertExpectations(t)
}

func TestCutter_Process_AudioOnly(t *testing.T) {
	noVideo := mock.MatchedBy(func(g *filtergraph.Graph) bool {
		return g != nil && !g.HasVideo() && len(g.Outputs()) == 1
	})

	t.Run("audio output drops video chains", func(t *testing.T) {
		c, engine := newTestCutter(t)
		ctx := context.Background()

		engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).Return(oneSilence(), nil)
		engine.On("Probe", ctx, "in.mp4").Return(videoInfo, nil)
		engine.On("Execute", ctx, "in.mp4", noVideo, "out.MP3").Return(nil)

		_, err := c.Process(ctx, Request{Input: "in.mp4", Output: "out.MP3", Options: DefaultOptions()})
		require.NoError(t, err)
		engine.AssertExpectations(t)
	})

	t.Run("audio input drops video chains", func(t *testing.T) {
		c, engine := newTestCutter(t)
		ctx := context.Background()

		engine.On("DetectSilence", ctx, "in.m4a", -30.0, 0.5).Return(oneSilence(), nil)
		engine.On("Probe", ctx, "in.m4a").Return(media.Info{Duration: 5, HasAudio: true}, nil)
		engine.On("Execute", ctx, "in.m4a", noVideo, "out.m4a").Return(nil)

		_, err := c.Process(ctx, Request{Input: "in.m4a", Output: "out.m4a", Options: DefaultOptions()})
		require.NoError(t, err)
		engine.AssertExpectations(t)
	})
}

func TestCutter_Process_TrailingSilence(t *testing.T) {
	events := []silence.Event{silence.Start(1), silence.End(2), silence.Start(4)}

	t.Run("dropped by default", func(t *testing.T) {
		c, engine := newTestCutter(t)
		ctx := context.Background()

		engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).Return(events, nil)
		engine.On("Probe", ctx, "in.mp4").Return(videoInfo, nil)
		engine.On("Execute", ctx, "in.mp4", mock.Anything, "out.mp4").Return(nil)

		res, err := c.Process(ctx, Request{Input: "in.mp4", Output: "out.mp4", Options: DefaultOptions()})
		require.NoError(t, err)
		assert.Equal(t, []silence.Interval{{Start: 1, End: 2}}, res.Silences)
	})

	t.Run("extended to the probed duration", func(t *testing.T) {
		c, engine := newTestCutter(t)
		ctx := context.Background()

		opts := DefaultOptions()
		opts.ExtendTrailingSilence = true

		engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).Return(events, nil)
		engine.On("Probe", ctx, "in.mp4").Return(videoInfo, nil)
		engine.On("Execute", ctx, "in.mp4", mock.Anything, "out.mp4").Return(nil)

		res, err := c.Process(ctx, Request{Input: "in.mp4", Output: "out.mp4", Options: opts})
		require.NoError(t, err)
		assert.Equal(t, []silence.Interval{{Start: 1, End: 2}, {Start: 4, End: 5}}, res.Silences)
		assert.Equal(t, []plan.Segment{{Start: 0, End: 1, Speed: 1}, {Start: 2, End: 4, Speed: 1}}, res.Plan.Segments)
	})
}

func TestCutter_Process_EngineErrors(t *testing.T) {
	ctx := context.Background()
	req := Request{Input: "in.mp4", Output: "out.mp4", Options: DefaultOptions()}

	t.Run("detection failure stops the pipeline", func(t *testing.T) {
		c, engine := newTestCutter(t)
		engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).
			Return(nil, fmt.Errorf("%w: exit status 1", media.ErrDetection))

		_, err := c.Process(ctx, req)
		require.Error(t, err)
		assert.ErrorIs(t, err, media.ErrDetection)
		assert.Equal(t, KindDetection, Kind(err))
		engine.AssertNotCalled(t, "Probe", mock.Anything, mock.Anything)
	})

	t.Run("probe failure stops the pipeline", func(t *testing.T) {
		c, engine := newTestCutter(t)
		engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).Return(oneSilence(), nil)
		engine.On("Probe", ctx, "in.mp4").Return(media.Info{}, fmt.Errorf("%w: no duration metadata", media.ErrProbe))

		_, err := c.Process(ctx, req)
		require.Error(t, err)
		assert.Equal(t, KindProbe, Kind(err))
		engine.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("execution failure is surfaced", func(t *testing.T) {
		c, engine := newTestCutter(t)
		engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).Return(oneSilence(), nil)
		engine.On("Probe", ctx, "in.mp4").Return(videoInfo, nil)
		engine.On("Execute", ctx, "in.mp4", mock.Anything, "out.mp4").
			Return(fmt.Errorf("%w: %w", media.ErrExecution, &media.FFmpegError{Stderr: "Invalid argument", Err: errors.New("exit status 1")}))

		_, err := c.Process(ctx, req)
		require.Error(t, err)
		assert.Equal(t, KindExecution, Kind(err))

		var ffErr *media.FFmpegError
		require.True(t, errors.As(err, &ffErr))
		assert.Equal(t, "Invalid argument", ffErr.Stderr)
	})
}

func TestCutter_ProcessToBuffer(t *testing.T) {
	writeOutput := func(data string) func(mock.Arguments) {
		return func(args mock.Arguments) {
			out := args.String(3)
			_ = os.WriteFile(out, []byte(data), 0600)
		}
	}

	t.Run("returns bytes and removes temp file", func(t *testing.T) {
		dir := t.TempDir()
		store, err := storage.NewLocalStorage(dir)
		require.NoError(t, err)
		engine := &mockEngine{}
		c := NewCutter(engine, WithStorage(store), WithLogger(quietLogger()))
		ctx := context.Background()

		engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).Return(oneSilence(), nil)
		engine.On("Probe", ctx, "in.mp4").Return(videoInfo, nil)
		engine.On("Execute", ctx, "in.mp4", mock.MatchedBy(func(g *filtergraph.Graph) bool {
			return g != nil && !g.HasVideo()
		}), mock.MatchedBy(func(out string) bool {
			return filepath.Dir(out) == dir && filepath.Ext(out) == ".wav"
		})).Run(writeOutput("cut audio")).Return(nil)

		data, err := c.ProcessToBuffer(ctx, BufferRequest{Input: "in.mp4", Options: DefaultOptions(), OutputFormat: ".WAV"})
		require.NoError(t, err)
		assert.Equal(t, "cut audio", string(data))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
		engine.AssertExpectations(t)
	})

	t.Run("removes temp file on failure", func(t *testing.T) {
		dir := t.TempDir()
		store, err := storage.NewLocalStorage(dir)
		require.NoError(t, err)
		engine := &mockEngine{}
		c := NewCutter(engine, WithStorage(store), WithLogger(quietLogger()))
		ctx := context.Background()

		engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).Return(oneSilence(), nil)
		engine.On("Probe", ctx, "in.mp4").Return(videoInfo, nil)
		engine.On("Execute", ctx, "in.mp4", mock.Anything, mock.Anything).
			Run(writeOutput("partial")).
			Return(fmt.Errorf("%w: exit status 1", media.ErrExecution))

		_, err = c.ProcessToBuffer(ctx, BufferRequest{Input: "in.mp4", Options: DefaultOptions(), OutputFormat: "mp4"})
		require.Error(t, err)
		assert.ErrorIs(t, err, media.ErrExecution)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("rejects unsupported format", func(t *testing.T) {
		c, engine := newTestCutter(t)

		_, err := c.ProcessToBuffer(context.Background(), BufferRequest{Input: "in.mp4", Options: DefaultOptions(), OutputFormat: "mkv"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Contains(t, err.Error(), "outputformat must be one of")
		engine.AssertNotCalled(t, "DetectSilence", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("requires storage", func(t *testing.T) {
		c := NewCutter(&mockEngine{}, WithLogger(quietLogger()))

		_, err := c.ProcessToBuffer(context.Background(), BufferRequest{Input: "in.mp4", Options: DefaultOptions(), OutputFormat: "mp4"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestCutter_Plan(t *testing.T) {
	c, engine := newTestCutter(t)
	ctx := context.Background()

	engine.On("DetectSilence", ctx, "in.mp4", -30.0, 0.5).Return(oneSilence(), nil)
	engine.On("Probe", ctx, "in.mp4").Return(videoInfo, nil)

	res, err := c.Plan(ctx, "in.mp4", DefaultOptions())
	require.NoError(t, err)

	require.NotNil(t, res.Graph)
	assert.True(t, res.Graph.HasVideo())
	assert.Len(t, res.Plan.Segments, 2)
	engine.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	t.Run("requires input", func(t *testing.T) {
		_, err := c.Plan(ctx, "", DefaultOptions())
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid argument", fmt.Errorf("%w: input is required", ErrInvalidArgument), KindInvalidArgument},
		{"cancelled engine run", fmt.Errorf("%w: %w", media.ErrExecution, context.Canceled), KindCancelled},
		{"deadline", fmt.Errorf("%w: %w", media.ErrDetection, context.DeadlineExceeded), KindTimedOut},
		{"probe", media.ErrProbe, KindProbe},
		{"detection", media.ErrDetection, KindDetection},
		{"execution", media.ErrExecution, KindExecution},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}
