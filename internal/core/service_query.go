package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// CohortSummary is a dashboard row.
type CohortSummary struct {
	Cohort
	Weeks    int `json:"weeks"`
	Students int `json:"students"`
}

// ListCohorts returns cohorts in sort order.
func (s *Service) ListCohorts(ctx context.Context) ([]Cohort, error) {
	return s.store.ListCohorts(ctx)
}

// CohortSummaries returns every cohort with week and student counts.
func (s *Service) CohortSummaries(ctx context.Context) ([]CohortSummary, error) {
	cohorts, err := s.store.ListCohorts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cohorts: %w", err)
	}

	out := make([]CohortSummary, 0, len(cohorts))
	for _, c := range cohorts {
		weeks, err := s.store.ListWeeks(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list weeks for %s: %w", c.ID, err)
		}
		enrolled, err := s.store.ListCohortEnrollments(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list enrollments for %s: %w", c.ID, err)
		}
		out = append(out, CohortSummary{Cohort: c, Weeks: len(weeks), Students: len(enrolled)})
	}
	return out, nil
}

// GetCohort returns one cohort.
func (s *Service) GetCohort(ctx context.Context, id string) (Cohort, error) {
	return s.store.GetCohort(ctx, id)
}

// Curriculum returns a cohort's full curriculum tree.
func (s *Service) Curriculum(ctx context.Context, cohortID string) (CurriculumTree, error) {
	if _, err := s.store.GetCohort(ctx, cohortID); err != nil {
		return CurriculumTree{}, fmt.Errorf("get cohort: %w", err)
	}
	return LoadCurriculum(ctx, s.store, cohortID)
}

// StudentWithCohorts is a student plus the ids of their cohorts.
type StudentWithCohorts struct {
	Student
	CohortIDs []string `json:"cohortIds"`
}

// ListStudents returns every student with their cohort ids, newest first.
func (s *Service) ListStudents(ctx context.Context) ([]StudentWithCohorts, error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	out := make([]StudentWithCohorts, 0, len(students))
	for _, st := range students {
		enrollments, err := s.store.ListEnrollments(ctx, st.ID)
		if err != nil {
			return nil, fmt.Errorf("list enrollments for %s: %w", st.ID, err)
		}
		out = append(out, StudentWithCohorts{Student: st, CohortIDs: CohortIDs(enrollments)})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// GetStudent returns a student with their cohort ids.
func (s *Service) GetStudent(ctx context.Context, id string) (StudentWithCohorts, error) {
	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return StudentWithCohorts{}, err
	}
	enrollments, err := s.store.ListEnrollments(ctx, id)
	if err != nil {
		return StudentWithCohorts{}, fmt.Errorf("list enrollments: %w", err)
	}
	return StudentWithCohorts{Student: st, CohortIDs: CohortIDs(enrollments)}, nil
}

// CohortStudents returns the students enrolled in a cohort.
func (s *Service) CohortStudents(ctx context.Context, cohortID string) ([]Student, error) {
	enrollments, err := s.store.ListCohortEnrollments(ctx, cohortID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	out := make([]Student, 0, len(enrollments))
	for _, e := range enrollments {
		st, err := s.store.GetStudent(ctx, e.StudentID)
		if err != nil {
			return nil, fmt.Errorf("get student %s: %w", e.StudentID, err)
		}
		out = append(out, st)
	}
	return out, nil
}

// InviteView is an invite code as the admin list shows it.
type InviteView struct {
	InviteCode
	DisplayStatus InviteDisplayStatus `json:"displayStatus"`
	RemainingUses int                 `json:"remainingUses"`
	RegisterLink  string              `json:"registerLink"`
}

func (s *Service) inviteView(ic InviteCode, now time.Time) InviteView {
	return InviteView{
		InviteCode:    ic,
		DisplayStatus: ic.DisplayStatus(now),
		RemainingUses: ic.RemainingUses(),
		RegisterLink:  RegisterLink(s.cfg.BaseURL, ic.Code),
	}
}

// ListInviteCodes returns a cohort's invite codes (all cohorts when
// cohortID is empty) with their derived status.
func (s *Service) ListInviteCodes(ctx context.Context, cohortID string) ([]InviteView, error) {
	codes, err := s.store.ListInviteCodes(ctx, cohortID)
	if err != nil {
		return nil, fmt.Errorf("list invite codes: %w", err)
	}
	now := s.now()
	out := make([]InviteView, len(codes))
	for i, ic := range codes {
		out[i] = s.inviteView(ic, now)
	}
	return out, nil
}

// GetInviteCode returns one invite code with its derived status.
func (s *Service) GetInviteCode(ctx context.Context, id string) (InviteView, error) {
	ic, err := s.store.GetInviteCode(ctx, id)
	if err != nil {
		return InviteView{}, err
	}
	return s.inviteView(ic, s.now()), nil
}

// LookupInvite resolves a code typed by a learner. Codes that exist but
// cannot be redeemed return ErrInviteUnavailable, along with the code so
// the page can say why.
func (s *Service) LookupInvite(ctx context.Context, code string) (InviteView, error) {
	ic, err := s.store.GetInviteCodeByCode(ctx, NormalizeInviteCode(code))
	if err != nil {
		return InviteView{}, err
	}
	view := s.inviteView(ic, s.now())
	if view.DisplayStatus != DisplayActive {
		return view, ErrInviteUnavailable
	}
	return view, nil
}

// ResolveJoin maps a product key to the invite code configured for it.
func (s *Service) ResolveJoin(ctx context.Context, productKey string) (string, error) {
	cfg, err := s.store.GetEnrollmentConfig(ctx, productKey)
	if err != nil {
		return "", fmt.Errorf("enrollment config %q: %w", productKey, err)
	}
	ic, err := s.store.GetInviteCode(ctx, cfg.InviteCodeID)
	if err != nil {
		return "", fmt.Errorf("invite code for %q: %w", productKey, err)
	}
	return ic.Code, nil
}

// ListEnrollmentConfigs returns the product key mappings.
func (s *Service) ListEnrollmentConfigs(ctx context.Context) ([]EnrollmentConfig, error) {
	return s.store.ListEnrollmentConfigs(ctx)
}

// ListToolCredits returns a student's AI tool balances.
func (s *Service) ListToolCredits(ctx context.Context, studentID string) ([]ToolCredit, error) {
	return s.store.ListToolCredits(ctx, studentID)
}

// GetSurvey returns a student's survey, or a zero survey if none exists.
func (s *Service) GetSurvey(ctx context.Context, studentID string) (Survey, error) {
	sv, err := s.store.GetSurvey(ctx, studentID)
	if errors.Is(err, ErrNotFound) {
		return Survey{StudentID: studentID}, nil
	}
	return sv, err
}

// ListSettings returns every site setting.
func (s *Service) ListSettings(ctx context.Context) ([]Setting, error) {
	return s.store.ListSettings(ctx)
}

// Setting returns one setting value, or def when unset.
func (s *Service) Setting(ctx context.Context, key, def string) (string, error) {
	v, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// OnboardingView is what a learner sees for one cohort's onboarding.
type OnboardingView struct {
	Cohort    Cohort           `json:"cohort"`
	Student   Student          `json:"student"`
	Steps     []OnboardingStep `json:"steps"`
	Current   OnboardingStep   `json:"current"`
	Index     int              `json:"index"`
	Survey    Survey           `json:"survey"`
	Booking   BookingContent   `json:"booking"`
	Completed bool             `json:"completed"`
}

// Onboarding builds the wizard state for a student in a cohort. step picks
// the page; an unknown step falls back to the first.
func (s *Service) Onboarding(ctx context.Context, studentID, cohortID string, step OnboardingStep) (OnboardingView, error) {
	cohort, err := s.store.GetCohort(ctx, cohortID)
	if err != nil {
		return OnboardingView{}, fmt.Errorf("get cohort: %w", err)
	}
	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return OnboardingView{}, fmt.Errorf("get student: %w", err)
	}

	enrollment, err := s.enrollment(ctx, studentID, cohortID)
	if err != nil {
		return OnboardingView{}, err
	}

	survey, err := s.GetSurvey(ctx, studentID)
	if err != nil {
		return OnboardingView{}, fmt.Errorf("get survey: %w", err)
	}

	wizard := NewWizard(cohort.Onboarding)
	wizard.GotoStep(step)

	var cfg OnboardingConfig
	if cohort.Onboarding != nil {
		cfg = *cohort.Onboarding
	}
	if cfg.CalcomURL == "" {
		// The site-wide booking link stands in for cohorts without their own.
		if cfg.CalcomURL, err = s.Setting(ctx, SettingBookingURL, ""); err != nil {
			return OnboardingView{}, fmt.Errorf("booking url: %w", err)
		}
	}

	return OnboardingView{
		Cohort:    cohort,
		Student:   student,
		Steps:     wizard.Steps(),
		Current:   wizard.Current(),
		Index:     wizard.Index(),
		Survey:    survey,
		Booking:   Booking(cfg, &survey),
		Completed: enrollment.OnboardingCompletedAt != nil,
	}, nil
}

func (s *Service) enrollment(ctx context.Context, studentID, cohortID string) (Enrollment, error) {
	enrollments, err := s.store.ListEnrollments(ctx, studentID)
	if err != nil {
		return Enrollment{}, fmt.Errorf("list enrollments: %w", err)
	}
	for _, e := range enrollments {
		if e.CohortID == cohortID {
			return e, nil
		}
	}
	return Enrollment{}, fmt.Errorf("enrollment %s/%s: %w", studentID, cohortID, ErrNotFound)
}
