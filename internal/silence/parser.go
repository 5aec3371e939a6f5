package silence

// Interval is a detected silent span in seconds. End is always greater than Start.
type Interval struct {
	Start float64
	End   float64
}

// Duration returns End - Start.
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

type parseOptions struct {
	openEnd    float64
	hasOpenEnd bool
}

// Option configures Parse.
type Option func(*parseOptions)

// WithOpenEnd closes a trailing silence_start that never received its
// silence_end at duration, instead of dropping it. ffmpeg omits the end
// report when the silence runs to the end of the stream.
func WithOpenEnd(duration float64) Option {
	return func(o *parseOptions) {
		o.openEnd = duration
		o.hasOpenEnd = true
	}
}

// Parse pairs start and end events into intervals.
//
// At most one start is pending at a time: a second start replaces the first,
// an end with nothing pending is ignored, and a start left pending when the
// events run out is dropped unless WithOpenEnd is given. Start times below
// zero are clamped to zero and pairs that do not move forward are skipped.
// Parse never fails.
func Parse(events []Event, opts ...Option) []Interval {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	intervals := make([]Interval, 0, len(events)/2)
	var pending float64
	hasPending := false

	for _, ev := range events {
		switch ev.Kind {
		case KindStart:
			pending = max(ev.Timestamp, 0)
			hasPending = true
		case KindEnd:
			if !hasPending {
				continue
			}
			if ev.Timestamp > pending {
				intervals = append(intervals, Interval{Start: pending, End: ev.Timestamp})
			}
			hasPending = false
		}
	}

	if hasPending && o.hasOpenEnd && o.openEnd > pending {
		intervals = append(intervals, Interval{Start: pending, End: o.openEnd})
	}

	return intervals
}

// ParseLog is Parse applied to the events found in a raw ffmpeg log.
func ParseLog(log string, opts ...Option) []Interval {
	return Parse(EventsFromLog(log), opts...)
}

// Total returns the summed duration of the intervals.
func Total(intervals []Interval) float64 {
	var sum float64
	for _, iv := range intervals {
		sum += iv.Duration()
	}
	return sum
}
