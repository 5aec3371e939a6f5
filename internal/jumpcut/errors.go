package jumpcut

import (
	"context"
	"errors"

	"github.com/maauso/jumpcut/internal/media"
)

// Error kinds reported by Kind.
const (
	KindInvalidArgument = "INVALID_ARGUMENT"
	KindCancelled       = "CANCELLED"
	KindTimedOut        = "TIMED_OUT"
	KindProbe           = "PROBE_ERROR"
	KindDetection       = "DETECTION_ERROR"
	KindExecution       = "ENGINE_EXECUTION_ERROR"
	KindInternal        = "INTERNAL"
)

// Kind classifies an error returned by a Cutter. Cancellation wins over the
// engine step that observed it.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimedOut
	case errors.Is(err, media.ErrProbe):
		return KindProbe
	case errors.Is(err, media.ErrDetection):
		return KindDetection
	case errors.Is(err, media.ErrExecution):
		return KindExecution
	default:
		return KindInternal
	}
}
