package core

// import_limiter.go caps how many imports run at once.
//
// Two rules apply. A semaphore bounds imports across the whole server; a new
// import waits up to maxWait for a slot and then fails with
// ErrTooManyImports. Independently, each cohort may have at most one import
// or copy writing into it; a second one is rejected immediately with
// ErrImportInProgress so sort orders are never interleaved.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyImports is returned when every import slot stays busy for the
// whole wait period.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// ErrImportInProgress is returned when the target cohort already has an
// import running.
var ErrImportInProgress = errors.New("an import is already running for this cohort")

const (
	DefaultMaxConcurrentImports = 3
	DefaultImportWaitTime       = 10 * time.Second
)

// ImportLimiter controls concurrent import processing.
type ImportLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu      sync.Mutex
	active  int
	cohorts map[string]string // cohort id -> job id
}

// NewImportLimiter creates a limiter allowing maxConcurrent imports.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultImportWaitTime
	}
	return &ImportLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
		cohorts:   make(map[string]string),
	}
}

// Acquire reserves a global slot and, when cohortID is non-empty, the
// cohort. The caller must call Release with the same cohortID.
func (l *ImportLimiter) Acquire(ctx context.Context, cohortID, jobID string) error {
	if err := l.claimCohort(cohortID, jobID); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		l.releaseCohort(cohortID)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}
}

// Release frees the slot and the cohort claimed by Acquire.
func (l *ImportLimiter) Release(cohortID string) {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	l.releaseCohort(cohortID)
	<-l.semaphore
}

func (l *ImportLimiter) claimCohort(cohortID, jobID string) error {
	if cohortID == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.cohorts[cohortID]; busy {
		return ErrImportInProgress
	}
	l.cohorts[cohortID] = jobID
	return nil
}

func (l *ImportLimiter) releaseCohort(cohortID string) {
	if cohortID == "" {
		return
	}
	l.mu.Lock()
	delete(l.cohorts, cohortID)
	l.mu.Unlock()
}

// RunningFor returns the job id currently importing into cohortID.
func (l *ImportLimiter) RunningFor(cohortID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.cohorts[cohortID]
	return id, ok
}

// ActiveCount returns the number of running imports.
func (l *ImportLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// WaitForDrain blocks until no imports are running or ctx ends.
// Used during graceful shutdown.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ImportLimiterStatus is a snapshot for the health endpoint.
type ImportLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()

	return ImportLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
