package filtergraph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/jumpcut/internal/plan"
	"github.com/maauso/jumpcut/internal/silence"
)

func TestBuild_NoopReturnsNil(t *testing.T) {
	assert.Nil(t, Build(plan.Plan{Mode: plan.ModeRemove, Duration: 10}))
	assert.Nil(t, Build(plan.Build(nil, 10, plan.ModeRemove, 2)))
	assert.Nil(t, Build(plan.Build(nil, 10, plan.ModeSpeed, 2)))
	assert.Nil(t, Build(plan.Build([]silence.Interval{{Start: 0, End: 10}}, 10, plan.ModeRemove, 2)))
}

func TestBuild_Remove(t *testing.T) {
	p := plan.Build([]silence.Interval{{Start: 1.5, End: 2.5}, {Start: 4, End: 5}}, 10, plan.ModeRemove, 2)

	g := Build(p)
	require.NotNil(t, g)

	want := "[0:v]trim=start=0:end=1.5,setpts=PTS-STARTPTS[v0];" +
		"[0:v]trim=start=2.5:end=4,setpts=PTS-STARTPTS[v1];" +
		"[0:v]trim=start=5:end=10,setpts=PTS-STARTPTS[v2];" +
		"[0:a]atrim=start=0:end=1.5,asetpts=PTS-STARTPTS[a0];" +
		"[0:a]atrim=start=2.5:end=4,asetpts=PTS-STARTPTS[a1];" +
		"[0:a]atrim=start=5:end=10,asetpts=PTS-STARTPTS[a2];" +
		"[v0][v1][v2]concat=n=3:v=1:a=0[outv];" +
		"[a0][a1][a2]concat=n=3:v=0:a=1[outa]"
	assert.Equal(t, want, g.String())
	assert.Equal(t, []string{"[outv]", "[outa]"}, g.Outputs())
	assert.True(t, g.HasVideo())
}

func TestBuild_Speed(t *testing.T) {
	p := plan.Build([]silence.Interval{{Start: 1, End: 2}}, 5, plan.ModeSpeed, 2)

	g := Build(p)
	require.NotNil(t, g)

	assert.Equal(t, []string{
		"[0:v]trim=start=0:end=1,setpts=PTS-STARTPTS[v0]",
		"[0:v]trim=start=1:end=2,setpts=PTS-STARTPTS,setpts=PTS/2[v1]",
		"[0:v]trim=start=2:end=5,setpts=PTS-STARTPTS[v2]",
	}, g.VideoChains)
	assert.Equal(t, []string{
		"[0:a]atrim=start=0:end=1,asetpts=PTS-STARTPTS[a0]",
		"[0:a]atrim=start=1:end=2,asetpts=PTS-STARTPTS,atempo=2[a1]",
		"[0:a]atrim=start=2:end=5,asetpts=PTS-STARTPTS[a2]",
	}, g.AudioChains)
	assert.Equal(t, "[v0][v1][v2]concat=n=3:v=1:a=0[outv]", g.VideoConcat)
	assert.Equal(t, "[a0][a1][a2]concat=n=3:v=0:a=1[outa]", g.AudioConcat)
}

func TestBuild_SpeedAboveTwoChainsAtempo(t *testing.T) {
	p := plan.Build([]silence.Interval{{Start: 0, End: 4}}, 6, plan.ModeSpeed, 8)

	g := Build(p)
	require.NotNil(t, g)

	assert.Equal(t, "[0:v]trim=start=0:end=4,setpts=PTS-STARTPTS,setpts=PTS/8[v0]", g.VideoChains[0])
	assert.Equal(t, "[0:a]atrim=start=0:end=4,asetpts=PTS-STARTPTS,atempo=2,atempo=2,atempo=2[a0]", g.AudioChains[0])
}

func TestBuild_WithoutVideo(t *testing.T) {
	p := plan.Build([]silence.Interval{{Start: 1, End: 2}}, 5, plan.ModeRemove, 2)

	g := Build(p, WithoutVideo())
	require.NotNil(t, g)

	assert.False(t, g.HasVideo())
	assert.Empty(t, g.VideoChains)
	assert.NotContains(t, g.String(), "[0:v]")
	assert.Equal(t,
		"[0:a]atrim=start=0:end=1,asetpts=PTS-STARTPTS[a0];"+
			"[0:a]atrim=start=2:end=5,asetpts=PTS-STARTPTS[a1];"+
			"[a0][a1]concat=n=2:v=0:a=1[outa]",
		g.String())
	assert.Equal(t, []string{"[outa]"}, g.Outputs())
}

func TestBuild_LabelsMatchSegments(t *testing.T) {
	silences := []silence.Interval{
		{Start: 0.25, End: 0.9}, {Start: 2, End: 2.75}, {Start: 3.5, End: 4},
		{Start: 5.125, End: 6}, {Start: 7, End: 7.5}, {Start: 9, End: 9.8},
	}

	for _, mode := range []plan.Mode{plan.ModeRemove, plan.ModeSpeed} {
		p := plan.Build(silences, 12, mode, 1.75)
		g := Build(p)
		require.NotNil(t, g)

		n := len(p.Segments)
		require.Len(t, g.VideoChains, n)
		require.Len(t, g.AudioChains, n)

		var vWant, aWant strings.Builder
		for i := range p.Segments {
			v := videoLabel(i)
			a := audioLabel(i)
			assert.True(t, strings.HasSuffix(g.VideoChains[i], v), "%s video chain %d", mode, i)
			assert.True(t, strings.HasSuffix(g.AudioChains[i], a), "%s audio chain %d", mode, i)
			assert.Equal(t, 1, strings.Count(g.VideoConcat, v))
			assert.Equal(t, 1, strings.Count(g.AudioConcat, a))
			vWant.WriteString(v)
			aWant.WriteString(a)
		}
		assert.True(t, strings.HasPrefix(g.VideoConcat, vWant.String()+"concat=n="))
		assert.True(t, strings.HasPrefix(g.AudioConcat, aWant.String()+"concat=n="))
		assert.Contains(t, g.VideoConcat, "concat=n="+itoa(n)+":")
		assert.Contains(t, g.AudioConcat, "concat=n="+itoa(n)+":")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	p := plan.Build([]silence.Interval{{Start: 0.1, End: 0.30000000000000004}, {Start: 1.7, End: 2.9}}, 3.3, plan.ModeSpeed, 2.5)

	assert.Equal(t, Build(p).String(), Build(p).String())
	assert.Contains(t, Build(p).String(), "trim=start=0.1:end=0.30000000000000004")
}

func TestTempoStages(t *testing.T) {
	tests := []struct {
		factor float64
		want   []float64
	}{
		{1.5, []float64{1.5}},
		{2, []float64{2}},
		{3, []float64{2, 1.5}},
		{4, []float64{2, 2}},
		{10, []float64{2, 2, 2, 1.25}},
		{0.75, []float64{0.75}},
		{0.25, []float64{0.5}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TempoStages(tt.factor), "factor %v", tt.factor)
	}
}

func itoa(n int) string {
	return formatSeconds(float64(n))
}
