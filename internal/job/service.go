package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/maauso/jumpcut/internal/jumpcut"
	"github.com/maauso/jumpcut/internal/storage"
)

// ErrAlreadyRunning is returned when a job is handed to a second worker.
var ErrAlreadyRunning = errors.New("job is already being processed")

// Cutter runs a single file to file cut.
type Cutter interface {
	Process(ctx context.Context, req jumpcut.Request) (*jumpcut.Result, error)
}

// CreateJobInput contains the input parameters for a cut job.
type CreateJobInput struct {
	// InputPath is a media file under the service's input directory.
	// Relative paths are resolved against that directory.
	InputPath string
	// InputData is uploaded media, stored as a temp file owned by the job.
	// Used when InputPath is empty.
	InputData io.Reader
	// OutputFormat is the output container. Defaults to the input's
	// extension when supported, otherwise mp4.
	OutputFormat string
	// Options are the cut options, defaults already applied.
	Options jumpcut.Options
	// PushToS3 uploads the finished output to S3.
	PushToS3 bool
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// ProcessCutService runs cut jobs in the background. At most
// maxConcurrentJobs cuts run at once; the rest wait IN_QUEUE.
type ProcessCutService struct {
	repo      Repository
	cutter    Cutter
	store     storage.Storage
	logger    *slog.Logger
	sem       chan struct{}
	timeout   time.Duration
	s3Enabled bool
	inputDir  string

	// mu guards runs and serialises job pickup against cancellation.
	mu   sync.Mutex
	runs map[string]*run
}

// ServiceOption configures a ProcessCutService.
type ServiceOption func(*ProcessCutService)

// WithMaxConcurrentJobs limits how many cuts run in parallel. Values below 1
// are ignored.
func WithMaxConcurrentJobs(n int) ServiceOption {
	return func(s *ProcessCutService) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		}
	}
}

// WithJobTimeout bounds each job, queue wait included. Zero disables it.
func WithJobTimeout(d time.Duration) ServiceOption {
	return func(s *ProcessCutService) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithS3Enabled allows jobs to request S3 upload.
func WithS3Enabled(enabled bool) ServiceOption {
	return func(s *ProcessCutService) {
		s.s3Enabled = enabled
	}
}

// WithInputDir allows jobs to read media by path from dir and its
// subdirectories. Without it only uploaded media is accepted.
func WithInputDir(dir string) ServiceOption {
	return func(s *ProcessCutService) {
		s.inputDir = dir
	}
}

// NewProcessCutService creates a new ProcessCutService.
func NewProcessCutService(repo Repository, cutter Cutter, store storage.Storage, logger *slog.Logger, opts ...ServiceOption) *ProcessCutService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ProcessCutService{
		repo:   repo,
		cutter: cutter,
		store:  store,
		logger: logger,
		sem:    make(chan struct{}, 2),
		runs:   make(map[string]*run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateJob creates a new job in IN_QUEUE status and persists it.
func (s *ProcessCutService) CreateJob(ctx context.Context, input CreateJobInput) (*Job, error) {
	if input.PushToS3 && !s.s3Enabled {
		return nil, fmt.Errorf("%w: S3 upload requested but S3 is not configured", jumpcut.ErrInvalidArgument)
	}

	job := New()
	job.Options = input.Options
	job.PushToS3 = input.PushToS3
	job.OutputFormat = outputFormat(input.OutputFormat, input.InputPath)
	if !slices.Contains(jumpcut.OutputFormats, job.OutputFormat) {
		return nil, fmt.Errorf("%w: unsupported output format %q", jumpcut.ErrInvalidArgument, job.OutputFormat)
	}

	switch {
	case input.InputPath != "":
		path, err := s.resolveInput(input.InputPath)
		if err != nil {
			return nil, err
		}
		job.InputPath = path
	case input.InputData != nil:
		path, err := s.store.SaveTemp(ctx, job.ID+"_input", input.InputData)
		if err != nil {
			return nil, fmt.Errorf("save upload: %w", err)
		}
		job.InputPath = path
		job.OwnsInput = true
	default:
		return nil, fmt.Errorf("%w: input is required", jumpcut.ErrInvalidArgument)
	}

	s.logger.Info("creating new job",
		slog.String("job_id", job.ID),
		slog.String("mode", string(job.Options.Mode)),
		slog.String("output_format", job.OutputFormat),
		slog.Bool("push_to_s3", job.PushToS3),
	)

	if err := s.repo.Save(ctx, job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		s.removeTemp(job.OwnedInput())
		return nil, err
	}

	return job, nil
}

// resolveInput maps a requested input path to a regular file inside
// inputDir, following symlinks before the containment check.
func (s *ProcessCutService) resolveInput(requested string) (string, error) {
	if s.inputDir == "" {
		return "", fmt.Errorf("%w: input_path is disabled, upload the media instead", jumpcut.ErrInvalidArgument)
	}
	root, err := filepath.EvalSymlinks(s.inputDir)
	if err != nil {
		return "", fmt.Errorf("resolve input dir: %w", err)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve input dir: %w", err)
	}

	path := requested
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path, err = filepath.EvalSymlinks(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("%w: input %s: %w", jumpcut.ErrInvalidArgument, requested, err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: input %s is outside the input directory", jumpcut.ErrInvalidArgument, requested)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: input %s: %w", jumpcut.ErrInvalidArgument, requested, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: input %s is not a regular file", jumpcut.ErrInvalidArgument, requested)
	}
	return path, nil
}

// ProcessExistingJob runs the cut for a queued job and returns it in its
// final state. The returned error is the cause when the job did not complete.
func (s *ProcessCutService) ProcessExistingJob(ctx context.Context, jobID string) (*Job, error) {
	runCtx, cancel := s.runContext(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}

	job, err := s.pickUp(ctx, jobID, r)
	if err != nil {
		cancel()
		return nil, err
	}
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.runs, jobID)
		s.mu.Unlock()
		close(r.done)
	}()
	defer s.removeTemp(job.OwnedInput())

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-runCtx.Done():
		return s.finish(ctx, runCtx, job, runCtx.Err())
	}

	if err := job.Start(); err != nil {
		return nil, err
	}
	s.save(ctx, job)

	s.logger.Info("job started",
		slog.String("job_id", job.ID),
		slog.String("input", job.InputPath),
	)

	output, err := s.store.TempPath(runCtx, job.ID, job.OutputFormat)
	if err != nil {
		return s.finish(ctx, runCtx, job, fmt.Errorf("reserve output: %w", err))
	}

	res, err := s.cutter.Process(runCtx, jumpcut.Request{
		Input:   job.InputPath,
		Output:  output,
		Options: job.Options,
	})
	if err != nil {
		s.removeTemp(output)
		return s.finish(ctx, runCtx, job, err)
	}
	job.SetStats(StatsFromResult(res))

	var url string
	if job.PushToS3 {
		url, err = s.upload(runCtx, job, output)
		s.removeTemp(output)
		if err != nil {
			return s.finish(ctx, runCtx, job, err)
		}
		output = ""
	}

	job.SetOutput(output, url)
	if err := job.Complete(); err != nil {
		return nil, err
	}
	s.save(ctx, job)

	s.logger.Info("job completed",
		slog.String("job_id", job.ID),
		slog.Float64("input_duration", job.Stats.InputDuration),
		slog.Float64("output_duration", job.Stats.OutputDuration),
		slog.Bool("passthrough", job.Stats.Passthrough),
		slog.String("output_url", url),
	)
	return job, nil
}

// pickUp registers r for a queued job. It holds mu so CancelJob sees either
// the registered run or the job still unclaimed.
func (s *ProcessCutService) pickUp(ctx context.Context, jobID string, r *run) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[jobID]; ok {
		return nil, ErrAlreadyRunning
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.GetStatus() != StatusInQueue {
		return nil, ErrInvalidTransition
	}
	s.runs[jobID] = r
	return job, nil
}

func (s *ProcessCutService) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// finish moves job to its terminal state for cause and persists it.
func (s *ProcessCutService) finish(ctx, runCtx context.Context, job *Job, cause error) (*Job, error) {
	var terr error
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		terr = job.Timeout()
	case runCtx.Err() != nil:
		terr = job.Cancel()
	default:
		terr = job.Fail(jumpcut.Kind(cause), cause.Error())
	}
	if terr != nil {
		return nil, fmt.Errorf("%w: %w", terr, cause)
	}
	s.save(ctx, job)

	s.logger.Warn("job did not complete",
		slog.String("job_id", job.ID),
		slog.String("status", string(job.GetStatus())),
		slog.String("kind", jumpcut.Kind(cause)),
		slog.String("error", cause.Error()),
	)
	return job, cause
}

func (s *ProcessCutService) upload(ctx context.Context, job *Job, output string) (string, error) {
	rc, err := s.store.LoadTemp(ctx, output)
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = rc.Close() }()

	url, err := s.store.UploadToS3(ctx, job.ID+"."+job.OutputFormat, rc)
	if err != nil {
		return "", err
	}
	return url, nil
}

// CancelJob cancels a queued or running job and returns it once it has
// reached CANCELLED. A running cut has its engine process killed.
func (s *ProcessCutService) CancelJob(ctx context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	r, running := s.runs[jobID]
	if !running {
		defer s.mu.Unlock()

		job, err := s.repo.FindByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if err := job.Cancel(); err != nil {
			return nil, err
		}
		s.save(ctx, job)
		s.removeTemp(job.OwnedInput())

		s.logger.Info("queued job cancelled", slog.String("job_id", jobID))
		return job, nil
	}
	s.mu.Unlock()

	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.logger.Info("running job cancelled", slog.String("job_id", jobID))
	return s.repo.FindByID(ctx, jobID)
}

// DeleteJob removes a finished job together with its local output file.
// Queued and running jobs must be cancelled first.
func (s *ProcessCutService) DeleteJob(ctx context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, running := s.runs[jobID]; running {
		return nil, ErrAlreadyRunning
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.IsTerminal() {
		return nil, fmt.Errorf("%w: job is %s, cancel it first", ErrInvalidTransition, job.GetStatus())
	}

	s.removeTemp(job.OutputPath)
	s.removeTemp(job.OwnedInput())
	job.ClearOutput()
	if err := s.repo.Delete(ctx, jobID); err != nil {
		return nil, err
	}

	s.logger.Info("job deleted", slog.String("job_id", jobID))
	return job, nil
}

// GetJob retrieves a job by ID.
func (s *ProcessCutService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// ListJobs returns all jobs, oldest first, optionally filtered by status.
func (s *ProcessCutService) ListJobs(ctx context.Context, statuses ...Status) ([]*Job, error) {
	jobs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return jobs, nil
	}
	return slices.DeleteFunc(jobs, func(j *Job) bool {
		return !slices.Contains(statuses, j.GetStatus())
	}), nil
}

// Shutdown cancels every running job and waits for them to settle or for
// ctx to end.
func (s *ProcessCutService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	runs := make([]*run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.mu.Unlock()

	for _, r := range runs {
		r.cancel()
	}
	for _, r := range runs {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *ProcessCutService) save(ctx context.Context, job *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("failed to save job",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.GetStatus())),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ProcessCutService) removeTemp(path string) {
	if path == "" {
		return
	}
	if err := s.store.CleanupTemp(context.Background(), []string{path}); err != nil {
		s.logger.Warn("failed to remove temp file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func outputFormat(requested, inputPath string) string {
	if f := strings.ToLower(strings.TrimPrefix(requested, ".")); f != "" {
		return f
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(inputPath), "."))
	if slices.Contains(jumpcut.OutputFormats, ext) {
		return ext
	}
	return "mp4"
}
