package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ServiceConfig carries the settings the Service needs. cmd/server builds
// it from config.Config.
type ServiceConfig struct {
	MaxFileSize          int64
	MaxConcurrentImports int
	ImportWaitTime       time.Duration
	ImportTimeout        time.Duration
	ResultTTL            time.Duration
	CurriculumPolicy     FailurePolicy
	BaseURL              string
	AuditEnabled         bool
}

// DefaultServiceConfig returns the settings used when none are given.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxFileSize:          5 << 20,
		MaxConcurrentImports: DefaultMaxConcurrentImports,
		ImportWaitTime:       DefaultImportWaitTime,
		ImportTimeout:        10 * time.Minute,
		ResultTTL:            5 * time.Minute,
		CurriculumPolicy:     PolicyContinue,
		BaseURL:              "http://localhost:8080",
		AuditEnabled:         true,
	}
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	d := DefaultServiceConfig()
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = d.MaxFileSize
	}
	if c.ImportTimeout <= 0 {
		c.ImportTimeout = d.ImportTimeout
	}
	if c.ResultTTL <= 0 {
		c.ResultTTL = d.ResultTTL
	}
	if c.CurriculumPolicy == "" {
		c.CurriculumPolicy = d.CurriculumPolicy
	}
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	return c
}

// Service is the portal's business layer. Handlers, the CLI and tests all
// go through it; it owns the import limiter and the background job table.
type Service struct {
	store   Store
	cfg     ServiceConfig
	limiter *ImportLimiter
	now     func() time.Time

	mu   sync.RWMutex
	jobs map[string]*activeJob
}

// NewService creates a Service over store.
func NewService(store Store, cfg ServiceConfig) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		store:   store,
		cfg:     cfg,
		limiter: NewImportLimiter(cfg.MaxConcurrentImports, cfg.ImportWaitTime),
		now:     time.Now,
		jobs:    make(map[string]*activeJob),
	}
}

// Config returns the effective settings.
func (s *Service) Config() ServiceConfig { return s.cfg }

// Ping checks the store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ErrFileTooLarge is returned for CSV input over MaxFileSize.
var ErrFileTooLarge = errors.New("file too large")

func (s *Service) checkSize(text string) error {
	if int64(len(text)) > s.cfg.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d byte limit", ErrFileTooLarge, len(text), s.cfg.MaxFileSize)
	}
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Message: "no file provided"}
	}
	return nil
}

// ---- Curriculum import ----

// CurriculumPreview is shown before a curriculum import is confirmed.
type CurriculumPreview struct {
	CohortID      string         `json:"cohortId"`
	Plan          CurriculumPlan `json:"plan"`
	Weeks         int            `json:"weeks"`
	Lessons       int            `json:"lessons"`
	Items         int            `json:"items"`
	ExistingWeeks int            `json:"existingWeeks"`
}

// PreviewCurriculumImport parses a curriculum CSV for cohortID without
// writing anything.
func (s *Service) PreviewCurriculumImport(ctx context.Context, cohortID, text string) (CurriculumPreview, error) {
	if err := s.checkSize(text); err != nil {
		return CurriculumPreview{}, err
	}
	if _, err := s.store.GetCohort(ctx, cohortID); err != nil {
		return CurriculumPreview{}, fmt.Errorf("get cohort: %w", err)
	}

	plan, err := ParseCurriculumCSV(text)
	if err != nil {
		return CurriculumPreview{}, err
	}
	existing, err := s.store.ListWeeks(ctx, cohortID)
	if err != nil {
		return CurriculumPreview{}, fmt.Errorf("list weeks: %w", err)
	}

	w, l, i := plan.Counts()
	return CurriculumPreview{
		CohortID:      cohortID,
		Plan:          plan,
		Weeks:         w,
		Lessons:       l,
		Items:         i,
		ExistingWeeks: len(existing),
	}, nil
}

// StartCurriculumImport validates the CSV synchronously, then imports it
// into cohortID in the background. It returns the job id.
func (s *Service) StartCurriculumImport(ctx context.Context, cohortID, text string) (string, error) {
	preview, err := s.PreviewCurriculumImport(ctx, cohortID, text)
	if err != nil {
		return "", err
	}
	policy := s.cfg.CurriculumPolicy

	return s.startJob(ctx, JobCurriculumImport, cohortID, func(ctx context.Context, progress ProgressFunc, result *JobResult) error {
		res, err := ImportCurriculum(ctx, s.store, cohortID, preview.Plan, policy, progress)
		result.Curriculum = &res

		s.LogAudit(ctx, AuditLogParams{
			Action:   ActionCurriculumImport,
			CohortID: cohortID,
			Summary: fmt.Sprintf("imported %d weeks, %d lessons, %d items (%d failed, %d skipped)",
				res.WeeksCreated, res.LessonsCreated, res.ItemsCreated, len(res.Failed), res.Skipped),
			Detail: map[string]any{"policy": string(policy), "failed": res.Failed},
		})
		return err
	})
}

// ---- Student import ----

// PreviewStudentImport parses a roster and flags rows whose email already
// exists (in the store or earlier in the file).
func (s *Service) PreviewStudentImport(ctx context.Context, text string) (StudentImportPreview, error) {
	if err := s.checkSize(text); err != nil {
		return StudentImportPreview{}, err
	}

	rows, err := ParseStudentCSV(text)
	if err != nil {
		return StudentImportPreview{}, err
	}
	existing, err := s.store.ListStudents(ctx)
	if err != nil {
		return StudentImportPreview{}, fmt.Errorf("list students: %w", err)
	}

	newCount, dupCount := MarkDuplicates(rows, existing)
	return StudentImportPreview{Rows: rows, New: newCount, Duplicates: dupCount}, nil
}

// StartStudentImport re-runs the preview and imports the roster in the
// background. When opts.CohortID is set the cohort must exist.
func (s *Service) StartStudentImport(ctx context.Context, text string, opts StudentImportOptions) (string, error) {
	opts.CohortID = strings.TrimSpace(opts.CohortID)
	if opts.CohortID != "" {
		if _, err := s.store.GetCohort(ctx, opts.CohortID); err != nil {
			return "", fmt.Errorf("get cohort: %w", err)
		}
	}

	preview, err := s.PreviewStudentImport(ctx, text)
	if err != nil {
		return "", err
	}

	return s.startJob(ctx, JobStudentImport, opts.CohortID, func(ctx context.Context, progress ProgressFunc, result *JobResult) error {
		res, err := ImportStudents(ctx, s.store, s.store, preview.Rows, opts, progress)
		result.Students = &res

		s.LogAudit(ctx, AuditLogParams{
			Action:   ActionStudentImport,
			CohortID: opts.CohortID,
			Summary: fmt.Sprintf("created %d students (%d skipped, %d failed, %d enroll failures)",
				res.Created, res.Skipped, len(res.Failed), len(res.EnrollFailed)),
			Detail: map[string]any{"includeDuplicates": opts.IncludeDuplicates, "failed": res.Failed, "enrollFailed": res.EnrollFailed},
		})
		return err
	})
}

// ---- Curriculum copy ----

// PreviewCurriculumCopy counts what a copy would create.
func (s *Service) PreviewCurriculumCopy(ctx context.Context, opts CopyOptions) (CopyPreview, error) {
	if err := s.checkCopy(ctx, opts); err != nil {
		return CopyPreview{}, err
	}
	return PreviewCopy(ctx, s.store, opts)
}

// StartCurriculumCopy copies curriculum between cohorts in the background.
// The target cohort is locked for the duration.
func (s *Service) StartCurriculumCopy(ctx context.Context, opts CopyOptions) (string, error) {
	if err := s.checkCopy(ctx, opts); err != nil {
		return "", err
	}

	return s.startJob(ctx, JobCurriculumCopy, opts.TargetCohortID, func(ctx context.Context, progress ProgressFunc, result *JobResult) error {
		created, err := CopyCurriculum(ctx, s.store, opts, progress)
		result.Copy = &created

		detail := map[string]any{"source": opts.SourceCohortID, "excludeRecordings": opts.ExcludeRecordings}
		if err != nil {
			detail["error"] = err.Error()
		}
		s.LogAudit(ctx, AuditLogParams{
			Action:   ActionCurriculumCopy,
			CohortID: opts.TargetCohortID,
			Summary: fmt.Sprintf("copied %d weeks, %d lessons, %d items, %d action items",
				created.Weeks, created.Lessons, created.Items, created.ActionItems),
			Detail: detail,
		})
		return err
	})
}

func (s *Service) checkCopy(ctx context.Context, opts CopyOptions) error {
	if err := ValidateStruct(opts); err != nil {
		return err
	}
	if opts.SourceCohortID == opts.TargetCohortID {
		return ErrSameCohort
	}
	if _, err := s.store.GetCohort(ctx, opts.SourceCohortID); err != nil {
		return fmt.Errorf("get source cohort: %w", err)
	}
	if _, err := s.store.GetCohort(ctx, opts.TargetCohortID); err != nil {
		return fmt.Errorf("get target cohort: %w", err)
	}
	return nil
}
