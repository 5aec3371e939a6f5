// Package silence turns ffmpeg silencedetect output into ordered silence intervals.
package silence

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies a silencedetect event.
type Kind int

const (
	// KindStart marks the beginning of a silent stretch.
	KindStart Kind = iota + 1
	// KindEnd marks the end of a silent stretch.
	KindEnd
)

// String returns the silencedetect key for the kind.
func (k Kind) String() string {
	switch k {
	case KindStart:
		return "silence_start"
	case KindEnd:
		return "silence_end"
	default:
		return "unknown"
	}
}

// Event is a single silence_start or silence_end report, in seconds.
type Event struct {
	Kind      Kind
	Timestamp float64
}

// Start returns a KindStart event at ts.
func Start(ts float64) Event { return Event{Kind: KindStart, Timestamp: ts} }

// End returns a KindEnd event at ts.
func End(ts float64) Event { return Event{Kind: KindEnd, Timestamp: ts} }

// Example lines:
//
//	[silencedetect @ 0x7fc1f3625880] silence_start: 1.5
//	[silencedetect @ 0x7fc1f3625880] silence_end: 2.5 | silence_duration: 1
//	[silencedetect @ 0x7fc1f3625880] silence_start: 2.26757e-05
//
// Older ffmpeg releases print timestamps with %g, so small and large values
// come out in exponent form. The number must be followed by a separator or
// the end of the line.
var (
	startRe = regexp.MustCompile(`silence_start:\s*(` + number + `)(?:[\s|]|$)`)
	endRe   = regexp.MustCompile(`silence_end:\s*(` + number + `)(?:[\s|]|$)`)
)

const number = `-?[0-9]+(?:\.[0-9]*)?(?:[eE][+-]?[0-9]+)?`

// ParseLine extracts an event from one line of ffmpeg stderr.
// Lines without a silencedetect report, or with an unparsable number, yield false.
func ParseLine(line string) (Event, bool) {
	if m := startRe.FindStringSubmatch(line); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return Start(v), true
		}
		return Event{}, false
	}
	if m := endRe.FindStringSubmatch(line); len(m) > 1 {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return End(v), true
		}
	}
	return Event{}, false
}

// ScanEvents reads r line by line and returns every silencedetect event in
// emission order. Other engine output is skipped.
func ScanEvents(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	// ffmpeg progress lines are joined with \r and can get long.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		for _, line := range strings.Split(scanner.Text(), "\r") {
			if ev, ok := ParseLine(line); ok {
				events = append(events, ev)
			}
		}
	}

	return events, scanner.Err()
}

// EventsFromLog is ScanEvents over an in-memory log.
func EventsFromLog(log string) []Event {
	// A strings.Reader never fails and lines are capped well above ffmpeg's.
	events, _ := ScanEvents(strings.NewReader(log))
	return events
}
