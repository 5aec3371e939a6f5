package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/jumpcut/internal/job"
	"github.com/maauso/jumpcut/internal/job/id"
	"github.com/maauso/jumpcut/internal/jumpcut"
	"github.com/maauso/jumpcut/internal/plan"
	"github.com/maauso/jumpcut/internal/storage"
)

var knownStatuses = []job.Status{
	job.StatusInQueue,
	job.StatusRunning,
	job.StatusCompleted,
	job.StatusFailed,
	job.StatusCancelled,
	job.StatusTimedOut,
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service            *job.ProcessCutService
	validator          *validator.Validate
	logger             *slog.Logger
	defaults           jumpcut.Options
	enableAsyncProcess bool
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithAsyncProcessing enables or disables background processing.
// When disabled, CreateJob only creates the job and returns immediately
// without starting background processing.
func WithAsyncProcessing(enabled bool) HandlerOption {
	return func(h *Handlers) {
		h.enableAsyncProcess = enabled
	}
}

// WithDefaults sets the cut options used for fields a request leaves unset.
func WithDefaults(opts jumpcut.Options) HandlerOption {
	return func(h *Handlers) {
		h.defaults = opts
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.ProcessCutService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:            service,
		validator:          validator.New(),
		logger:             logger,
		defaults:           jumpcut.DefaultOptions(),
		enableAsyncProcess: true, // Default to enabled
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateJob handles POST /jobs requests.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "REQUEST_TOO_LARGE")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	input, err := h.jobInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	// Create job first (synchronously)
	createdJob, err := h.service.CreateJob(r.Context(), input)
	if err != nil {
		h.logger.Error("failed to create job",
			slog.String("error", err.Error()),
		)
		h.writeServiceError(w, err)
		return
	}

	// Start processing in background with a detached context
	// Use context.WithoutCancel to prevent cancellation when the request ends
	if h.enableAsyncProcess {
		go func(ctx context.Context, jobID string) {
			if _, processErr := h.service.ProcessExistingJob(ctx, jobID); processErr != nil {
				h.logger.Error("background processing failed",
					slog.String("job_id", jobID),
					slog.String("error", processErr.Error()),
				)
			}
		}(context.WithoutCancel(r.Context()), createdJob.ID)
	}

	h.logger.Info("job created",
		slog.String("job_id", createdJob.ID),
		slog.String("mode", string(createdJob.Options.Mode)),
		slog.Bool("upload", createdJob.OwnsInput),
	)

	writeJSON(w, http.StatusAccepted, CreateJobResponse{
		ID:     createdJob.ID,
		Status: string(createdJob.Status),
	})
}

// jobInput merges req over the handler defaults.
func (h *Handlers) jobInput(req CreateJobRequest) (job.CreateJobInput, error) {
	opts := h.defaults
	if req.Mode != "" {
		mode, err := plan.ParseMode(req.Mode)
		if err != nil {
			return job.CreateJobInput{}, err
		}
		opts.Mode = mode
	}
	if req.SilenceThresholdDB != nil {
		opts.SilenceThresholdDB = *req.SilenceThresholdDB
	}
	if req.MinSilenceDuration != nil {
		opts.MinSilenceDuration = *req.MinSilenceDuration
	}
	if req.SpeedFactor != nil {
		opts.SpeedFactor = *req.SpeedFactor
	}
	opts.ExtendTrailingSilence = req.ExtendTrailingSilence

	input := job.CreateJobInput{
		InputPath:    req.InputPath,
		OutputFormat: req.OutputFormat,
		Options:      opts,
		PushToS3:     req.PushToS3,
	}
	if req.InputPath == "" {
		// Already checked by the base64 tag, so the upload is decoded while
		// it is written to temp storage.
		input.InputData = base64.NewDecoder(base64.StdEncoding, strings.NewReader(req.InputBase64))
	}
	return input, nil
}

// ListJobs handles GET /jobs requests. An optional comma separated status
// query parameter filters the result.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []job.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := job.Status(strings.ToUpper(strings.TrimSpace(s)))
			if !slices.Contains(knownStatuses, status) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", s), "VALIDATION_ERROR")
				return
			}
			statuses = append(statuses, status)
		}
	}

	jobs, err := h.service.ListJobs(r.Context(), statuses...)
	if err != nil {
		h.logger.Error("failed to list jobs", slog.String("error", err.Error()))
		h.writeServiceError(w, err)
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.findJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(foundJob))
}

// GetJobOutput handles GET /jobs/{id}/output requests. Outputs uploaded to
// S3 are redirected to, local outputs are served as attachments.
func (h *Handlers) GetJobOutput(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.findJob(w, r)
	if !ok {
		return
	}

	if foundJob.Status != job.StatusCompleted {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("job is %s, output is only available once COMPLETED", foundJob.Status),
			"OUTPUT_NOT_READY")
		return
	}
	if foundJob.OutputURL != "" {
		http.Redirect(w, r, foundJob.OutputURL, http.StatusFound)
		return
	}

	f, err := os.Open(foundJob.OutputPath)
	if err != nil {
		h.logger.Error("failed to open output",
			slog.String("job_id", foundJob.ID),
			slog.String("path", foundJob.OutputPath),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusNotFound, "output is no longer available", "OUTPUT_NOT_FOUND")
		return
	}
	defer func() { _ = f.Close() }()

	name := foundJob.ID + "." + foundJob.OutputFormat
	w.Header().Set("Content-Type", storage.ContentType(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	http.ServeContent(w, r, name, modTime(foundJob.CompletedAt), f)
}

// DeleteJob handles DELETE /jobs/{id} requests. A queued or running job is
// cancelled and returned. A finished job is removed together with its local
// output and 204 is returned.
func (h *Handlers) DeleteJob(w http.ResponseWriter, r *http.Request) {
	foundJob, ok := h.findJob(w, r)
	if !ok {
		return
	}

	if foundJob.IsTerminal() {
		if _, err := h.service.DeleteJob(r.Context(), foundJob.ID); err != nil {
			h.logger.Warn("failed to delete job",
				slog.String("job_id", foundJob.ID),
				slog.String("error", err.Error()),
			)
			h.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	cancelled, err := h.service.CancelJob(r.Context(), foundJob.ID)
	if err != nil {
		h.logger.Warn("failed to cancel job",
			slog.String("job_id", foundJob.ID),
			slog.String("error", err.Error()),
		)
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(cancelled))
}

func (h *Handlers) findJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return nil, false
	}
	if !id.Valid(jobID) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed job ID %q", jobID), "INVALID_JOB_ID")
		return nil, false
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if !errors.Is(err, job.ErrJobNotFound) {
			h.logger.Error("failed to get job",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
		}
		h.writeServiceError(w, err)
		return nil, false
	}
	return foundJob, true
}

// writeServiceError maps a service error to a status code and error code.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrInvalidTransition), errors.Is(err, job.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error(), "INVALID_TRANSITION")
	case errors.Is(err, jumpcut.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error(), jumpcut.KindInvalidArgument)
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), jumpcut.Kind(err))
	}
}

func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:           j.ID,
		Status:       string(j.Status),
		Mode:         string(j.Options.Mode),
		OutputFormat: j.OutputFormat,
		Error:        j.Error,
		ErrorKind:    j.ErrorKind,
		OutputURL:    j.OutputURL,
		CreatedAt:    j.CreatedAt,
		StartedAt:    optionalTime(j.StartedAt),
		CompletedAt:  optionalTime(j.CompletedAt),
	}
	if j.Status == job.StatusCompleted {
		resp.Stats = &StatsResponse{
			InputDuration:  j.Stats.InputDuration,
			OutputDuration: j.Stats.OutputDuration,
			Silences:       j.Stats.Silences,
			Segments:       j.Stats.Segments,
			Passthrough:    j.Stats.Passthrough,
		}
	}
	return resp
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func modTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
