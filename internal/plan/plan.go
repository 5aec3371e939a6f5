// Package plan computes the ordered segment list that turns a clip with
// detected silences into a jump-cut edit.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maauso/jumpcut/internal/silence"
)

// Epsilon is the smallest span, in seconds, treated as non-empty.
// Anything shorter is below ffmpeg's microsecond timestamp resolution.
const Epsilon = 1e-6

// ErrInvalidMode is returned by ParseMode for unknown mode names.
var ErrInvalidMode = errors.New(`mode must be either "remove" or "speed"`)

// Mode selects what happens to silent spans.
type Mode string

const (
	// ModeRemove drops silent spans from the output.
	ModeRemove Mode = "remove"
	// ModeSpeed keeps silent spans but plays them faster.
	ModeSpeed Mode = "speed"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeRemove || m == ModeSpeed
}

// ParseMode maps a case-insensitive mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.IsValid() {
		return "", fmt.Errorf("%w: got %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Segment is a span of the source timeline and the rate it is played at.
type Segment struct {
	Start float64
	End   float64
	Speed float64
}

// Length returns the source duration of the segment.
func (s Segment) Length() float64 {
	return s.End - s.Start
}

// OutputLength returns the duration of the segment after retiming.
func (s Segment) OutputLength() float64 {
	if s.Speed <= 0 {
		return s.Length()
	}
	return s.Length() / s.Speed
}

// Retimed reports whether the segment is played at a speed other than 1.
func (s Segment) Retimed() bool {
	return s.Speed != 1
}

// Plan is the ordered segment list for one clip.
type Plan struct {
	Mode     Mode
	Duration float64
	Segments []Segment
}

// IsNoop reports whether applying the plan would reproduce the input, in
// which case the caller copies the input instead of filtering it.
func (p Plan) IsNoop() bool {
	switch len(p.Segments) {
	case 0:
		return true
	case 1:
		s := p.Segments[0]
		return !s.Retimed() && s.Start <= Epsilon && s.End >= p.Duration-Epsilon
	default:
		return false
	}
}

// OutputDuration returns the expected duration of the edited output.
// A no-op plan keeps the whole input.
func (p Plan) OutputDuration() float64 {
	if len(p.Segments) == 0 {
		return p.Duration
	}
	var total float64
	for _, s := range p.Segments {
		total += s.OutputLength()
	}
	return total
}

// RemovedDuration returns how much shorter the output is than the input.
func (p Plan) RemovedDuration() float64 {
	return p.Duration - p.OutputDuration()
}

// Build computes the plan for the given silences.
//
// In remove mode the segments are the spans between silences. In speed mode
// the segments cover the whole clip, with silences played at speedFactor.
// Silences are clipped to [0, duration] and the cursor only moves forward,
// so overlapping or nested silences merge.
func Build(silences []silence.Interval, duration float64, mode Mode, speedFactor float64) Plan {
	p := Plan{Mode: mode, Duration: duration}
	if duration <= 0 {
		return p
	}

	cursor := 0.0
	for _, s := range silences {
		start := max(s.Start, 0)
		end := min(s.End, duration)
		// Covers silences past the end, inverted input and spans already
		// consumed by an earlier silence.
		if end-max(start, cursor) <= Epsilon {
			continue
		}

		from := cursor
		if start-cursor > Epsilon {
			p.Segments = append(p.Segments, Segment{Start: cursor, End: start, Speed: 1})
			from = start
		}
		if mode == ModeSpeed {
			p.Segments = append(p.Segments, Segment{Start: from, End: end, Speed: speedFactor})
		}
		cursor = end
	}

	switch {
	case duration-cursor > Epsilon:
		p.Segments = append(p.Segments, Segment{Start: cursor, End: duration, Speed: 1})
	case mode == ModeSpeed && len(p.Segments) > 0:
		// A tail shorter than Epsilon is absorbed so speed mode still
		// covers [0, duration].
		p.Segments[len(p.Segments)-1].End = duration
	}

	return p
}
