package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/jumpcut/internal/silence"
)

func keep(start, end float64) Segment { return Segment{Start: start, End: end, Speed: 1} }

func TestParseMode(t *testing.T) {
	m, err := ParseMode("remove")
	require.NoError(t, err)
	assert.Equal(t, ModeRemove, m)

	m, err = ParseMode(" Speed ")
	require.NoError(t, err)
	assert.Equal(t, ModeSpeed, m)

	_, err = ParseMode("invalid")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestBuild_Remove(t *testing.T) {
	tests := []struct {
		name     string
		silences []silence.Interval
		duration float64
		want     []Segment
	}{
		{
			name:     "no silences keeps everything",
			duration: 10,
			want:     []Segment{keep(0, 10)},
		},
		{
			name:     "two silences",
			silences: []silence.Interval{{Start: 1, End: 2}, {Start: 4, End: 5}},
			duration: 10,
			want:     []Segment{keep(0, 1), keep(2, 4), keep(5, 10)},
		},
		{
			name:     "silence at start",
			silences: []silence.Interval{{Start: 0, End: 1.5}},
			duration: 5,
			want:     []Segment{keep(1.5, 5)},
		},
		{
			name:     "silence touching the end",
			silences: []silence.Interval{{Start: 3, End: 5}},
			duration: 5,
			want:     []Segment{keep(0, 3)},
		},
		{
			name:     "silence overrunning the end is clipped",
			silences: []silence.Interval{{Start: 3, End: 5.02}},
			duration: 5,
			want:     []Segment{keep(0, 3)},
		},
		{
			name:     "adjacent silences collapse",
			silences: []silence.Interval{{Start: 1, End: 2}, {Start: 2, End: 3}},
			duration: 6,
			want:     []Segment{keep(0, 1), keep(3, 6)},
		},
		{
			name:     "overlapping silences merge",
			silences: []silence.Interval{{Start: 1, End: 3}, {Start: 2, End: 4}},
			duration: 6,
			want:     []Segment{keep(0, 1), keep(4, 6)},
		},
		{
			name:     "nested silence does not move the cursor back",
			silences: []silence.Interval{{Start: 1, End: 5}, {Start: 2, End: 3}},
			duration: 6,
			want:     []Segment{keep(0, 1), keep(5, 6)},
		},
		{
			name:     "silence past the end is ignored",
			silences: []silence.Interval{{Start: 12, End: 13}},
			duration: 10,
			want:     []Segment{keep(0, 10)},
		},
		{
			name:     "whole clip silent",
			silences: []silence.Interval{{Start: 0, End: 10}},
			duration: 10,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Build(tt.silences, tt.duration, ModeRemove, 2)
			assert.Equal(t, ModeRemove, p.Mode)
			assert.Equal(t, tt.duration, p.Duration)
			assert.Equal(t, tt.want, p.Segments)
		})
	}
}

func TestBuild_Speed(t *testing.T) {
	p := Build([]silence.Interval{{Start: 1, End: 2}}, 5, ModeSpeed, 2)

	assert.Equal(t, []Segment{
		{Start: 0, End: 1, Speed: 1},
		{Start: 1, End: 2, Speed: 2},
		{Start: 2, End: 5, Speed: 1},
	}, p.Segments)
	assert.InDelta(t, 4.5, p.OutputDuration(), 1e-9)
	assert.InDelta(t, 0.5, p.RemovedDuration(), 1e-9)
}

func TestBuild_SpeedFullCover(t *testing.T) {
	silences := []silence.Interval{
		{Start: 0, End: 0.8},
		{Start: 2.5, End: 3.1},
		{Start: 3.0, End: 4.2},
		{Start: 7.9, End: 9.5},
	}

	p := Build(silences, 9.5, ModeSpeed, 3)

	require.NotEmpty(t, p.Segments)
	assert.Equal(t, 0.0, p.Segments[0].Start)
	assert.Equal(t, 9.5, p.Segments[len(p.Segments)-1].End)
	for i := 1; i < len(p.Segments); i++ {
		assert.Equal(t, p.Segments[i-1].End, p.Segments[i].Start, "segment %d", i)
	}
	assert.Equal(t, Segment{Start: 3.1, End: 4.2, Speed: 3}, p.Segments[3])
}

func TestBuild_SpeedAbsorbsTinyTail(t *testing.T) {
	silences := []silence.Interval{{Start: 1, End: 5 - 1e-7}}

	p := Build(silences, 5, ModeSpeed, 2)

	assert.Equal(t, []Segment{
		{Start: 0, End: 1, Speed: 1},
		{Start: 1, End: 5, Speed: 2},
	}, p.Segments)
	assert.InDelta(t, 3, p.OutputDuration(), 1e-9)

	removed := Build(silences, 5, ModeRemove, 2)
	assert.Equal(t, []Segment{{Start: 0, End: 1, Speed: 1}}, removed.Segments)
}

func TestBuild_NeverEmitsEmptySegments(t *testing.T) {
	silences := []silence.Interval{
		{Start: 0, End: 0},
		{Start: 1, End: 1.0000001},
		{Start: 1.0000001, End: 2},
		{Start: 2, End: 2},
		{Start: 5, End: 4},
		{Start: 9.9999999, End: 10},
	}

	for _, mode := range []Mode{ModeRemove, ModeSpeed} {
		p := Build(silences, 10, mode, 2)
		for i, s := range p.Segments {
			assert.Greater(t, s.End, s.Start, "%s segment %d", mode, i)
			if i > 0 {
				assert.LessOrEqual(t, p.Segments[i-1].End, s.Start, "%s segment %d", mode, i)
			}
		}
	}

	p := Build(silences, 10, ModeSpeed, 2)
	for i := 1; i < len(p.Segments); i++ {
		assert.Equal(t, p.Segments[i-1].End, p.Segments[i].Start, "segment %d", i)
	}
}

func TestBuild_RemoveRetainedDuration(t *testing.T) {
	silences := []silence.Interval{{Start: 0.5, End: 1.25}, {Start: 3, End: 3.5}, {Start: 6, End: 8}}

	p := Build(silences, 10, ModeRemove, 2)

	assert.InDelta(t, 10-silence.Total(silences), p.OutputDuration(), 1e-9)
}

func TestBuild_ZeroDuration(t *testing.T) {
	p := Build([]silence.Interval{{Start: 0, End: 1}}, 0, ModeRemove, 2)
	assert.Empty(t, p.Segments)
	assert.True(t, p.IsNoop())
}

func TestBuild_Idempotent(t *testing.T) {
	silences := []silence.Interval{{Start: 1, End: 2}, {Start: 4, End: 5}}

	a := Build(silences, 10, ModeSpeed, 1.5)
	b := Build(silences, 10, ModeSpeed, 1.5)

	assert.Equal(t, a, b)
}

func TestPlan_IsNoop(t *testing.T) {
	assert.True(t, Plan{Duration: 10}.IsNoop())
	assert.True(t, Plan{Duration: 10, Segments: []Segment{keep(0, 10)}}.IsNoop())
	assert.False(t, Plan{Duration: 10, Segments: []Segment{keep(1, 10)}}.IsNoop())
	assert.False(t, Plan{Duration: 10, Segments: []Segment{{Start: 0, End: 10, Speed: 2}}}.IsNoop())
	assert.False(t, Plan{Duration: 10, Segments: []Segment{keep(0, 4), keep(5, 10)}}.IsNoop())

	assert.True(t, Build(nil, 10, ModeRemove, 2).IsNoop())
	assert.True(t, Build(nil, 10, ModeSpeed, 2).IsNoop())
}

func TestPlan_OutputDurationOfEmptyPlan(t *testing.T) {
	assert.Equal(t, 7.0, Plan{Duration: 7}.OutputDuration())
}
