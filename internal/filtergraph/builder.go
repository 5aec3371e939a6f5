// Package filtergraph compiles a segment plan into an ffmpeg -filter_complex
// graph that trims, retimes and concatenates the segments in one pass.
package filtergraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maauso/jumpcut/internal/plan"
)

// Output pad names of the final concat filters.
const (
	VideoOut = "outv"
	AudioOut = "outa"
)

// atempo accepts factors in [0.5, 100] but degrades above 2, so larger
// factors are built from a chain of atempo=2 stages.
const (
	atempoMin   = 0.5
	atempoStage = 2.0
)

// Graph is the filter graph for one plan. Chains are indexed by segment.
type Graph struct {
	VideoChains []string
	AudioChains []string
	VideoConcat string
	AudioConcat string
	VideoOut    string
	AudioOut    string
}

// HasVideo reports whether the graph produces a video stream.
func (g *Graph) HasVideo() bool {
	return g.VideoOut != ""
}

// String renders the graph as a -filter_complex argument.
func (g *Graph) String() string {
	parts := make([]string, 0, len(g.VideoChains)+len(g.AudioChains)+2)
	parts = append(parts, g.VideoChains...)
	parts = append(parts, g.AudioChains...)
	if g.HasVideo() {
		parts = append(parts, g.VideoConcat)
	}
	parts = append(parts, g.AudioConcat)
	return strings.Join(parts, ";")
}

// Outputs returns the labelled pads to pass to -map, video first.
func (g *Graph) Outputs() []string {
	var pads []string
	if g.HasVideo() {
		pads = append(pads, "["+g.VideoOut+"]")
	}
	return append(pads, "["+g.AudioOut+"]")
}

type buildOptions struct {
	withoutVideo bool
}

// Option configures Build.
type Option func(*buildOptions)

// WithoutVideo builds an audio-only graph, for inputs without a video
// stream or audio-only output containers.
func WithoutVideo() Option {
	return func(o *buildOptions) {
		o.withoutVideo = true
	}
}

// Build compiles p into a graph. It returns nil when p is a no-op, meaning
// the input should be copied through unfiltered.
func Build(p plan.Plan, opts ...Option) *Graph {
	if p.IsNoop() {
		return nil
	}

	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	n := len(p.Segments)
	g := &Graph{
		AudioChains: make([]string, n),
		AudioOut:    AudioOut,
	}
	if !o.withoutVideo {
		g.VideoChains = make([]string, n)
		g.VideoOut = VideoOut
	}

	var vLabels, aLabels strings.Builder
	for i, seg := range p.Segments {
		if !o.withoutVideo {
			g.VideoChains[i] = videoChain(i, seg)
			vLabels.WriteString(videoLabel(i))
		}
		g.AudioChains[i] = audioChain(i, seg)
		aLabels.WriteString(audioLabel(i))
	}

	if !o.withoutVideo {
		g.VideoConcat = fmt.Sprintf("%sconcat=n=%d:v=1:a=0[%s]", vLabels.String(), n, VideoOut)
	}
	g.AudioConcat = fmt.Sprintf("%sconcat=n=%d:v=0:a=1[%s]", aLabels.String(), n, AudioOut)

	return g
}

func videoLabel(i int) string { return "[v" + strconv.Itoa(i) + "]" }

func audioLabel(i int) string { return "[a" + strconv.Itoa(i) + "]" }

func videoChain(i int, seg plan.Segment) string {
	var b strings.Builder
	b.WriteString("[0:v]trim=start=")
	b.WriteString(formatSeconds(seg.Start))
	b.WriteString(":end=")
	b.WriteString(formatSeconds(seg.End))
	b.WriteString(",setpts=PTS-STARTPTS")
	if seg.Retimed() {
		b.WriteString(",setpts=PTS/")
		b.WriteString(formatSeconds(seg.Speed))
	}
	b.WriteString(videoLabel(i))
	return b.String()
}

func audioChain(i int, seg plan.Segment) string {
	var b strings.Builder
	b.WriteString("[0:a]atrim=start=")
	b.WriteString(formatSeconds(seg.Start))
	b.WriteString(":end=")
	b.WriteString(formatSeconds(seg.End))
	b.WriteString(",asetpts=PTS-STARTPTS")
	if seg.Retimed() {
		for _, f := range TempoStages(seg.Speed) {
			b.WriteString(",atempo=")
			b.WriteString(formatSeconds(f))
		}
	}
	b.WriteString(audioLabel(i))
	return b.String()
}

// TempoStages splits a speed factor into atempo stages whose product is the
// factor, each stage at most 2. Factors below 0.5 are raised to 0.5.
func TempoStages(factor float64) []float64 {
	if factor < atempoMin {
		return []float64{atempoMin}
	}
	var stages []float64
	for factor > atempoStage {
		stages = append(stages, atempoStage)
		factor /= atempoStage
	}
	return append(stages, factor)
}

// formatSeconds renders v in its shortest exact decimal form, so a given
// plan always produces the same graph text.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
