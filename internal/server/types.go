// Package server provides the HTTP server for the jumpcut job service.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "time"

// CreateJobRequest is the HTTP request body for creating a new cut job.
// Unset cut options fall back to the server defaults.
type CreateJobRequest struct {
	// InputPath is a media file readable by the server.
	InputPath string `json:"input_path" validate:"required_without=InputBase64"`
	// InputBase64 is base64-encoded media, used when InputPath is empty.
	InputBase64 string `json:"input_base64" validate:"omitempty,base64"`
	// Mode is "remove" or "speed".
	Mode string `json:"mode" validate:"omitempty,oneof=remove speed"`
	// SilenceThresholdDB is the loudness below which audio counts as silent.
	SilenceThresholdDB *float64 `json:"silence_threshold_db" validate:"omitempty,gte=-120,lte=0"`
	// MinSilenceDuration is the shortest span, in seconds, treated as silence.
	MinSilenceDuration *float64 `json:"min_silence_duration" validate:"omitempty,gt=0"`
	// SpeedFactor is the playback rate of silent spans in speed mode.
	SpeedFactor *float64 `json:"speed_factor" validate:"omitempty,gte=0.5,lte=100"`
	// ExtendTrailingSilence closes a silence still open at the end of the input.
	ExtendTrailingSilence bool `json:"extend_trailing_silence"`
	// OutputFormat is the output container. Defaults to the input's.
	OutputFormat string `json:"output_format" validate:"omitempty,oneof=mp4 mov avi mp3 wav"`
	// PushToS3 indicates whether to upload the result to S3.
	PushToS3 bool `json:"push_to_s3"`
}

// CreateJobResponse is the HTTP response after creating a job.
type CreateJobResponse struct {
	// ID is the unique identifier for the created job.
	ID string `json:"id"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// StatsResponse summarises a finished cut.
type StatsResponse struct {
	InputDuration  float64 `json:"input_duration"`
	OutputDuration float64 `json:"output_duration"`
	Silences       int     `json:"silences"`
	Segments       int     `json:"segments"`
	Passthrough    bool    `json:"passthrough"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Mode is the cut mode.
	Mode string `json:"mode"`
	// OutputFormat is the output container.
	OutputFormat string `json:"output_format"`
	// Error contains any error message if the job failed.
	Error string `json:"error,omitempty"`
	// ErrorKind classifies Error.
	ErrorKind string `json:"error_kind,omitempty"`
	// OutputURL is the S3 URL of the output (if push_to_s3=true and completed).
	OutputURL string `json:"output_url,omitempty"`
	// Stats is set once the job completed.
	Stats       *StatsResponse `json:"stats,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ListJobsResponse is the HTTP response for listing jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
