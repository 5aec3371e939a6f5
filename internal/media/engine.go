// Package media runs the external ffmpeg and ffprobe tools that detect
// silence, probe inputs and execute filter graphs.
package media

import (
	"context"

	"github.com/maauso/jumpcut/internal/filtergraph"
	"github.com/maauso/jumpcut/internal/silence"
)

// Info describes an input as reported by ffprobe.
type Info struct {
	// Duration is the container duration in seconds.
	Duration float64
	// HasVideo is true when the input carries at least one video stream.
	HasVideo bool
	// HasAudio is true when the input carries at least one audio stream.
	HasAudio bool
}

// Engine defines the media operations the cutter depends on.
// Each call blocks until the external tool exits; cancelling ctx kills it.
type Engine interface {
	// DetectSilence runs a silencedetect pass over the input's audio and
	// returns the reported events in emission order.
	DetectSilence(ctx context.Context, input string, thresholdDB, minDuration float64) ([]silence.Event, error)

	// Probe returns the duration and stream layout of the input.
	Probe(ctx context.Context, input string) (Info, error)

	// ProbeDuration returns only the duration in seconds.
	ProbeDuration(ctx context.Context, input string) (float64, error)

	// Execute applies graph to the input and writes output. A nil graph
	// copies the input through without filtering.
	Execute(ctx context.Context, input string, graph *filtergraph.Graph, output string) error
}
