package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/bootcamp/internal/logging"
	"github.com/google/uuid"
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("import not found")

// JobKind identifies what a background job does.
type JobKind string

const (
	JobCurriculumImport JobKind = "curriculum"
	JobStudentImport    JobKind = "students"
	JobCurriculumCopy   JobKind = "copy"
)

// JobPhase is the lifecycle state of a job.
type JobPhase string

const (
	PhaseStarting  JobPhase = "starting"
	PhaseRunning   JobPhase = "running"
	PhaseComplete  JobPhase = "complete"
	PhaseFailed    JobPhase = "failed"
	PhaseCancelled JobPhase = "cancelled"
)

// Done reports whether the phase is terminal.
func (p JobPhase) Done() bool {
	return p == PhaseComplete || p == PhaseFailed || p == PhaseCancelled
}

// JobProgress is streamed to subscribers while a job runs.
type JobProgress struct {
	JobID    string   `json:"jobId"`
	Kind     JobKind  `json:"kind"`
	CohortID string   `json:"cohortId,omitempty"`
	Phase    JobPhase `json:"phase"`
	Current  int      `json:"current"`
	Total    int      `json:"total"`
	Label    string   `json:"label,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Percent returns progress as 0-100.
func (p JobProgress) Percent() int {
	if p.Total <= 0 {
		if p.Phase == PhaseComplete {
			return 100
		}
		return 0
	}
	return p.Current * 100 / p.Total
}

// JobResult is the final report of a job. Exactly one of the typed
// results is set, matching Kind.
type JobResult struct {
	JobID      string                  `json:"jobId"`
	Kind       JobKind                 `json:"kind"`
	CohortID   string                  `json:"cohortId,omitempty"`
	Curriculum *CurriculumImportResult `json:"curriculum,omitempty"`
	Students   *StudentImportResult    `json:"students,omitempty"`
	Copy       *CopyPreview            `json:"copy,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Duration   time.Duration           `json:"duration"`
}

// jobFunc does the work of a job. It fills result and reports progress.
type jobFunc func(ctx context.Context, progress ProgressFunc, result *JobResult) error

type activeJob struct {
	ID       string
	Kind     JobKind
	CohortID string
	Cancel   context.CancelFunc
	Result   *JobResult
	Done     chan struct{}

	mu        sync.Mutex
	progress  JobProgress
	listeners []chan JobProgress
	closed    bool
}

func (j *activeJob) update(fn func(p *JobProgress)) {
	j.mu.Lock()
	defer j.mu.Unlock()

	fn(&j.progress)
	for _, ch := range j.listeners {
		select {
		case ch <- j.progress:
		default:
			// slow listener, drop this update
		}
	}
}

func (j *activeJob) snapshot() JobProgress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

func (j *activeJob) closeListeners() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, ch := range j.listeners {
		close(ch)
	}
	j.listeners = nil
	j.closed = true
}

// startJob reserves a limiter slot for cohortID and runs fn in the
// background. The limiter errors (ErrTooManyImports, ErrImportInProgress)
// are returned synchronously. The job keeps the request's values (actor,
// request id) but not its cancellation.
func (s *Service) startJob(ctx context.Context, kind JobKind, cohortID string, fn jobFunc) (string, error) {
	jobID := uuid.New().String()

	if err := s.limiter.Acquire(ctx, cohortID, jobID); err != nil {
		return "", err
	}

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ImportTimeout)

	job := &activeJob{
		ID:       jobID,
		Kind:     kind,
		CohortID: cohortID,
		Cancel:   cancel,
		Done:     make(chan struct{}),
		progress: JobProgress{JobID: jobID, Kind: kind, CohortID: cohortID, Phase: PhaseStarting},
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	go s.runJob(jobCtx, job, fn)

	return jobID, nil
}

func (s *Service) runJob(ctx context.Context, job *activeJob, fn jobFunc) {
	start := time.Now()
	log := logging.ForImport(ctx, job.ID, string(job.Kind), job.CohortID)
	log.Info("import started")

	result := &JobResult{JobID: job.ID, Kind: job.Kind, CohortID: job.CohortID}

	defer func() {
		if r := recover(); r != nil {
			log.Error("import panicked", "panic", r)
			result.Error = fmt.Sprintf("internal error: %v", r)
			job.update(func(p *JobProgress) {
				p.Phase = PhaseFailed
				p.Error = result.Error
			})
		}
		result.Duration = time.Since(start)
		job.Result = result

		job.Cancel()
		s.limiter.Release(job.CohortID)
		job.closeListeners()
		close(job.Done)
		s.cleanup(job.ID, s.cfg.ResultTTL)
	}()

	job.update(func(p *JobProgress) { p.Phase = PhaseRunning })

	progress := func(pr Progress) {
		job.update(func(p *JobProgress) {
			p.Current = pr.Current
			p.Total = pr.Total
			p.Label = pr.Label
		})
	}

	err := fn(ctx, progress, result)
	switch {
	case err == nil:
		job.update(func(p *JobProgress) {
			p.Phase = PhaseComplete
			p.Current = p.Total
		})
		log.Info("import completed", "duration_ms", time.Since(start).Milliseconds())
	case errors.Is(err, context.Canceled):
		result.Error = "cancelled"
		job.update(func(p *JobProgress) { p.Phase = PhaseCancelled })
		log.Warn("import cancelled")
	default:
		result.Error = err.Error()
		job.update(func(p *JobProgress) {
			p.Phase = PhaseFailed
			p.Error = err.Error()
		})
		log.Error("import failed", "error", err)
	}
}

func (s *Service) job(jobID string) (*activeJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// SubscribeProgress returns a channel of progress updates for a job. The
// current state is sent immediately and the channel is closed when the job
// ends.
func (s *Service) SubscribeProgress(jobID string) (<-chan JobProgress, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan JobProgress, 10)

	job.mu.Lock()
	defer job.mu.Unlock()

	ch <- job.progress
	if job.closed {
		close(ch)
	} else {
		job.listeners = append(job.listeners, ch)
	}
	return ch, nil
}

// GetJobProgress returns a job's current progress without blocking.
func (s *Service) GetJobProgress(jobID string) (JobProgress, error) {
	job, err := s.job(jobID)
	if err != nil {
		return JobProgress{}, err
	}
	return job.snapshot(), nil
}

// GetJobResult waits for a job to finish and returns its result.
func (s *Service) GetJobResult(ctx context.Context, jobID string) (*JobResult, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}

	select {
	case <-job.Done:
		return job.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CancelJob cancels a running job. Rows already written stay.
func (s *Service) CancelJob(jobID string) error {
	job, err := s.job(jobID)
	if err != nil {
		return err
	}
	job.Cancel()
	return nil
}

// CancelAllJobs cancels every running job. Used on shutdown after the drain
// period expires.
func (s *Service) CancelAllJobs() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		job.Cancel()
	}
}

// WaitForImports blocks until no import is running or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ImportStatus returns the limiter snapshot for the health endpoint.
func (s *Service) ImportStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

func (s *Service) cleanup(jobID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
		slog.Debug("import result expired", "import_id", jobID)
	})
}
