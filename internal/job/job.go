// Package job provides the Job aggregate for silence cut jobs run by the
// HTTP service. It includes the Job entity with its state machine, the
// repository port and the ProcessCutService use case.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/jumpcut/internal/job/id"
	"github.com/maauso/jumpcut/internal/jumpcut"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusInQueue indicates the job is waiting for a free worker slot.
	StatusInQueue Status = "IN_QUEUE"
	// StatusRunning indicates the cut is in progress.
	StatusRunning Status = "RUNNING"
	// StatusCompleted indicates the cut finished and the output is available.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the cut or the upload failed.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the job was cancelled by a client.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates the job exceeded the configured job timeout.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusInQueue:   {StatusRunning, StatusCancelled, StatusTimedOut},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
	StatusTimedOut:  {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Stats summarises what a finished cut did.
type Stats struct {
	// InputDuration is the probed input duration in seconds.
	InputDuration float64
	// OutputDuration is the planned output duration in seconds.
	OutputDuration float64
	// Silences is the number of detected silent spans.
	Silences int
	// Segments is the number of planned segments.
	Segments int
	// Passthrough is true when the input was copied unchanged.
	Passthrough bool
}

// StatsFromResult builds Stats from a cut result.
func StatsFromResult(res *jumpcut.Result) Stats {
	if res == nil {
		return Stats{}
	}
	return Stats{
		InputDuration:  res.Duration,
		OutputDuration: res.Plan.OutputDuration(),
		Silences:       len(res.Silences),
		Segments:       len(res.Plan.Segments),
		Passthrough:    res.Passthrough,
	}
}

// Job represents a silence cut job aggregate.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Options are the cut options, defaults already applied.
	Options jumpcut.Options
	// InputPath is the local path of the media to cut.
	InputPath string
	// OwnsInput is true when InputPath is a temp upload the job must remove.
	OwnsInput bool
	// OutputFormat is the container of the output, such as "mp4" or "wav".
	OutputFormat string
	// OutputPath is the local path of the finished output.
	OutputPath string
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool
	// OutputURL is the S3 URL if PushToS3 was true.
	OutputURL string
	// Error contains any error message if the job failed.
	Error string
	// ErrorKind classifies Error, see jumpcut.Kind.
	ErrorKind string
	// Stats is set once the cut completes.
	Stats Stats
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when processing started.
	StartedAt time.Time
	// CompletedAt is when processing finished.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial IN_QUEUE status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial IN_QUEUE status.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusInQueue,
		Options:   jumpcut.DefaultOptions(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OwnedInput returns the input path when it is a temp upload owned by the
// job, otherwise "".
func (j *Job) OwnedInput() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if !j.OwnsInput {
		return ""
	}
	return j.InputPath
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	// Set timestamps based on state
	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from IN_QUEUE to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to COMPLETED state.
func (j *Job) Complete() error {
	return j.TransitionTo(StatusCompleted)
}

// Fail transitions the job to FAILED state with an error message and kind.
func (j *Job) Fail(kind, errMsg string) error {
	if err := j.TransitionTo(StatusFailed); err != nil {
		return err
	}
	j.mu.Lock()
	j.Error = errMsg
	j.ErrorKind = kind
	j.mu.Unlock()
	return nil
}

// Cancel transitions the job to CANCELLED state.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to TIMED_OUT state.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// SetOutput sets the output path and optional S3 URL.
func (j *Job) SetOutput(outputPath, outputURL string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = outputPath
	j.OutputURL = outputURL
	j.UpdatedAt = time.Now()
}

// ClearOutput clears the output path and URL.
func (j *Job) ClearOutput() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.OutputPath = ""
	j.OutputURL = ""
	j.UpdatedAt = time.Now()
}

// SetStats records the cut summary.
func (j *Job) SetStats(stats Stats) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stats = stats
	j.UpdatedAt = time.Now()
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusCompleted ||
		j.Status == StatusFailed ||
		j.Status == StatusCancelled ||
		j.Status == StatusTimedOut
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:           j.ID,
		Status:       j.Status,
		Options:      j.Options,
		InputPath:    j.InputPath,
		OwnsInput:    j.OwnsInput,
		OutputFormat: j.OutputFormat,
		OutputPath:   j.OutputPath,
		PushToS3:     j.PushToS3,
		OutputURL:    j.OutputURL,
		Error:        j.Error,
		ErrorKind:    j.ErrorKind,
		Stats:        j.Stats,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}
