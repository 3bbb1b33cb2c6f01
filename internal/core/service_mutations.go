package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a cohort name into a URL slug.
func Slugify(name string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// ---- Cohorts ----

func (s *Service) validateCohort(c *Cohort) error {
	c.Name = strings.TrimSpace(c.Name)
	if strings.TrimSpace(c.Slug) == "" {
		c.Slug = Slugify(c.Name)
	}
	if c.Status == "" {
		c.Status = CohortDraft
	}
	if c.ProductKey = strings.TrimSpace(c.ProductKey); c.ProductKey != "" {
		c.ProductKey = strings.ToLower(c.ProductKey)
	}
	if err := ValidateStruct(c); err != nil {
		return err
	}
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return &ValidationError{Fields: map[string]string{"endDate": "endDate must not be before startDate"}}
	}
	return nil
}

// CreateCohort validates and stores a new cohort. A blank slug is derived
// from the name and a blank status becomes draft.
func (s *Service) CreateCohort(ctx context.Context, c Cohort) (Cohort, error) {
	if err := s.validateCohort(&c); err != nil {
		return Cohort{}, err
	}
	c.CreatedAt = s.now()

	id, err := s.store.InsertCohort(ctx, c)
	if err != nil {
		return Cohort{}, fmt.Errorf("insert cohort: %w", err)
	}
	c.ID = id
	return c, nil
}

// UpdateCohort replaces a cohort's editable fields.
func (s *Service) UpdateCohort(ctx context.Context, c Cohort) (Cohort, error) {
	if err := s.validateCohort(&c); err != nil {
		return Cohort{}, err
	}
	if err := s.store.UpdateCohort(ctx, c); err != nil {
		return Cohort{}, fmt.Errorf("update cohort: %w", err)
	}
	return c, nil
}

// DeleteCohort deletes a cohort and, by cascade, its curriculum,
// enrollments and invite codes. It refuses while an import is running into
// the cohort.
func (s *Service) DeleteCohort(ctx context.Context, id string) error {
	if _, busy := s.limiter.RunningFor(id); busy {
		return ErrImportInProgress
	}
	c, err := s.store.GetCohort(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCohort(ctx, id); err != nil {
		return fmt.Errorf("delete cohort: %w", err)
	}
	s.LogAudit(ctx, AuditLogParams{
		Action:   ActionCohortDelete,
		CohortID: id,
		Subject:  c.Slug,
		Summary:  fmt.Sprintf("deleted cohort %q", c.Name),
	})
	return nil
}

// ---- Curriculum ----

// CreateWeek appends a week to a cohort.
func (s *Service) CreateWeek(ctx context.Context, w Week) (Week, error) {
	existing, err := s.store.ListWeeks(ctx, w.CohortID)
	if err != nil {
		return Week{}, fmt.Errorf("list weeks: %w", err)
	}
	w.SortOrder = len(existing)
	if err := ValidateStruct(w); err != nil {
		return Week{}, err
	}
	id, err := s.store.InsertWeek(ctx, w)
	if err != nil {
		return Week{}, fmt.Errorf("insert week: %w", err)
	}
	w.ID = id
	return w, nil
}

// UpdateWeek saves a week's title, description and sort order.
func (s *Service) UpdateWeek(ctx context.Context, w Week) error {
	if err := ValidateStruct(w); err != nil {
		return err
	}
	return s.store.UpdateWeek(ctx, w)
}

// DeleteWeek deletes a week with its lessons, items and action items.
func (s *Service) DeleteWeek(ctx context.Context, id string) error {
	if err := s.store.DeleteWeek(ctx, id); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionDelete, Subject: "week:" + id})
	return nil
}

// CreateLesson appends a lesson to a week.
func (s *Service) CreateLesson(ctx context.Context, l Lesson) (Lesson, error) {
	existing, err := s.store.ListLessons(ctx, l.WeekID)
	if err != nil {
		return Lesson{}, fmt.Errorf("list lessons: %w", err)
	}
	l.SortOrder = len(existing)
	if err := ValidateStruct(l); err != nil {
		return Lesson{}, err
	}
	id, err := s.store.InsertLesson(ctx, l)
	if err != nil {
		return Lesson{}, fmt.Errorf("insert lesson: %w", err)
	}
	l.ID = id
	return l, nil
}

// UpdateLesson saves a lesson.
func (s *Service) UpdateLesson(ctx context.Context, l Lesson) error {
	if err := ValidateStruct(l); err != nil {
		return err
	}
	return s.store.UpdateLesson(ctx, l)
}

// DeleteLesson deletes a lesson with its items.
func (s *Service) DeleteLesson(ctx context.Context, id string) error {
	if err := s.store.DeleteLesson(ctx, id); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionDelete, Subject: "lesson:" + id})
	return nil
}

// prepareContentItem infers a missing type from the URL and normalizes
// the URL into its embeddable form.
func prepareContentItem(item *ContentItem) {
	item.EmbedURL = strings.TrimSpace(item.EmbedURL)
	if item.Type == "" {
		item.Type = InferContentType(item.EmbedURL)
	} else if ct, ok := ParseContentType(string(item.Type)); ok {
		item.Type = ct
	}
	if item.EmbedURL != "" && item.Type != ContentAITool {
		item.EmbedURL = NormalizeURL(item.EmbedURL)
	}
}

// CreateContentItem appends an item to a lesson.
func (s *Service) CreateContentItem(ctx context.Context, item ContentItem) (ContentItem, error) {
	prepareContentItem(&item)
	existing, err := s.store.ListContentItems(ctx, item.LessonID)
	if err != nil {
		return ContentItem{}, fmt.Errorf("list items: %w", err)
	}
	item.SortOrder = len(existing)
	if err := ValidateStruct(item); err != nil {
		return ContentItem{}, err
	}
	id, err := s.store.InsertContentItem(ctx, item)
	if err != nil {
		return ContentItem{}, fmt.Errorf("insert content item: %w", err)
	}
	item.ID = id
	return item, nil
}

// UpdateContentItem saves an item.
func (s *Service) UpdateContentItem(ctx context.Context, item ContentItem) (ContentItem, error) {
	prepareContentItem(&item)
	if err := ValidateStruct(item); err != nil {
		return ContentItem{}, err
	}
	if err := s.store.UpdateContentItem(ctx, item); err != nil {
		return ContentItem{}, err
	}
	return item, nil
}

// DeleteContentItem deletes an item.
func (s *Service) DeleteContentItem(ctx context.Context, id string) error {
	if err := s.store.DeleteContentItem(ctx, id); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionDelete, Subject: "content_item:" + id})
	return nil
}

// CreateActionItem appends an action item to a week.
func (s *Service) CreateActionItem(ctx context.Context, a ActionItem) (ActionItem, error) {
	existing, err := s.store.ListActionItems(ctx, a.WeekID)
	if err != nil {
		return ActionItem{}, fmt.Errorf("list action items: %w", err)
	}
	a.SortOrder = len(existing)
	if err := ValidateStruct(a); err != nil {
		return ActionItem{}, err
	}
	id, err := s.store.InsertActionItem(ctx, a)
	if err != nil {
		return ActionItem{}, fmt.Errorf("insert action item: %w", err)
	}
	a.ID = id
	return a, nil
}

// UpdateActionItem saves an action item.
func (s *Service) UpdateActionItem(ctx context.Context, a ActionItem) error {
	if err := ValidateStruct(a); err != nil {
		return err
	}
	return s.store.UpdateActionItem(ctx, a)
}

// DeleteActionItem deletes an action item.
func (s *Service) DeleteActionItem(ctx context.Context, id string) error {
	if err := s.store.DeleteActionItem(ctx, id); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionDelete, Subject: "action_item:" + id})
	return nil
}

// ---- Students ----

// CreateStudent stores a student and enrolls them in cohortIDs. Enrollment
// failures are reported with ErrEnrollmentSync; the student stays created.
func (s *Service) CreateStudent(ctx context.Context, st Student, cohortIDs []string) (StudentWithCohorts, error) {
	st.Email = strings.ToLower(strings.TrimSpace(st.Email))
	if st.AccessLevel == "" {
		st.AccessLevel = DefaultAccessLevel
	}
	if st.Status == "" {
		st.Status = DefaultStudentStatus
	}
	if err := ValidateStruct(st); err != nil {
		return StudentWithCohorts{}, err
	}
	st.CreatedAt = s.now()

	id, err := s.store.InsertStudent(ctx, st)
	if err != nil {
		return StudentWithCohorts{}, fmt.Errorf("insert student: %w", err)
	}
	st.ID = id

	synced, err := SyncEnrollments(ctx, s.store, id, nil, cohortIDs)
	out := StudentWithCohorts{Student: st, CohortIDs: synced.Enrolled}
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrEnrollmentSync, err)
	}
	return out, nil
}

// StudentPatch is a submitted student edit. Nil fields are left unchanged.
// CohortIDs, when set, is the complete desired cohort set.
type StudentPatch struct {
	Email         *string        `json:"email,omitempty"`
	Name          *string        `json:"name,omitempty"`
	Company       *string        `json:"company,omitempty"`
	PurchaseDate  *string        `json:"purchaseDate,omitempty"`
	AccessLevel   *AccessLevel   `json:"accessLevel,omitempty"`
	Status        *StudentStatus `json:"status,omitempty"`
	Notes         *string        `json:"notes,omitempty"`
	SlackInvited  *bool          `json:"slackInvited,omitempty"`
	CalendarAdded *bool          `json:"calendarAdded,omitempty"`
	CohortIDs     *[]string      `json:"cohortIds,omitempty"`
}

// Apply writes the patch onto st and reports whether any profile field
// changed.
func (p StudentPatch) Apply(st *Student) (changed bool, err error) {
	setStr := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}

	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		setStr(&st.Email, &email)
	}
	setStr(&st.Name, p.Name)
	setStr(&st.Company, p.Company)
	setStr(&st.Notes, p.Notes)
	setBool(&st.SlackInvited, p.SlackInvited)
	setBool(&st.CalendarAdded, p.CalendarAdded)

	if p.AccessLevel != nil && st.AccessLevel != *p.AccessLevel {
		st.AccessLevel = *p.AccessLevel
		changed = true
	}
	if p.Status != nil && st.Status != *p.Status {
		st.Status = *p.Status
		changed = true
	}

	if p.PurchaseDate != nil {
		raw := strings.TrimSpace(*p.PurchaseDate)
		switch {
		case raw == "" && st.PurchaseDate != nil:
			st.PurchaseDate = nil
			changed = true
		case raw != "":
			d, ok := ParseDate(raw)
			if !ok {
				return changed, &ValidationError{Fields: map[string]string{"purchaseDate": fmt.Sprintf("invalid date %q", raw)}}
			}
			if st.PurchaseDate == nil || !st.PurchaseDate.Equal(d) {
				st.PurchaseDate = &d
				changed = true
			}
		}
	}
	return changed, nil
}

// SaveStudentResult reports what a student save changed.
type SaveStudentResult struct {
	Student        StudentWithCohorts `json:"student"`
	ProfileChanged bool               `json:"profileChanged"`
	Sync           SyncResult         `json:"sync"`
}

// SaveStudent applies a submitted edit in two phases: the profile update,
// then the enrollment reconciliation. If the profile update fails nothing
// is synced. If the sync partly fails the profile change stays and the
// error wraps ErrEnrollmentSync.
func (s *Service) SaveStudent(ctx context.Context, id string, patch StudentPatch) (SaveStudentResult, error) {
	current, err := s.GetStudent(ctx, id)
	if err != nil {
		return SaveStudentResult{}, err
	}

	st := current.Student
	changed, err := patch.Apply(&st)
	if err != nil {
		return SaveStudentResult{}, err
	}
	result := SaveStudentResult{Student: current, ProfileChanged: changed}

	if changed {
		if err := ValidateStruct(st); err != nil {
			return SaveStudentResult{}, err
		}
		if err := s.store.UpdateStudent(ctx, st); err != nil {
			return SaveStudentResult{}, fmt.Errorf("update student: %w", err)
		}
		result.Student.Student = st
		s.LogAudit(ctx, AuditLogParams{Action: ActionStudentUpdate, Subject: st.Email})
	}

	if patch.CohortIDs == nil {
		return result, nil
	}

	synced, syncErr := SyncEnrollments(ctx, s.store, id, current.CohortIDs, *patch.CohortIDs)
	result.Sync = synced

	if after, err := s.store.ListEnrollments(ctx, id); err == nil {
		result.Student.CohortIDs = CohortIDs(after)
	}

	if len(synced.Enrolled) > 0 || len(synced.Unenrolled) > 0 || len(synced.Failed) > 0 {
		s.LogAudit(ctx, AuditLogParams{
			Action:  ActionEnrollmentSync,
			Subject: st.Email,
			Summary: fmt.Sprintf("enrolled %d, unenrolled %d, %d failed", len(synced.Enrolled), len(synced.Unenrolled), len(synced.Failed)),
			Detail:  map[string]any{"enrolled": synced.Enrolled, "unenrolled": synced.Unenrolled, "failed": synced.Failed},
		})
	}

	if syncErr != nil {
		return result, fmt.Errorf("%w: %w", ErrEnrollmentSync, syncErr)
	}
	return result, nil
}

// DeleteStudent deletes a student with their enrollments, survey and
// credits.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteStudent(ctx, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionDelete, Subject: st.Email, Summary: "deleted student"})
	return nil
}

// ---- Invite codes ----

// CreateInviteCode stores a new code. A blank code is generated; given codes
// are uppercased.
func (s *Service) CreateInviteCode(ctx context.Context, ic InviteCode) (InviteView, error) {
	ic.Code = NormalizeInviteCode(ic.Code)
	if ic.Code == "" {
		code, err := GenerateInviteCode()
		if err != nil {
			return InviteView{}, err
		}
		ic.Code = code
	}
	if ic.Status == "" {
		ic.Status = InviteActive
	}
	ic.UseCount = 0
	if err := ValidateStruct(ic); err != nil {
		return InviteView{}, err
	}
	if _, err := s.store.GetCohort(ctx, ic.CohortID); err != nil {
		return InviteView{}, fmt.Errorf("get cohort: %w", err)
	}
	ic.CreatedAt = s.now()

	id, err := s.store.InsertInviteCode(ctx, ic)
	if err != nil {
		return InviteView{}, fmt.Errorf("insert invite code: %w", err)
	}
	ic.ID = id

	s.LogAudit(ctx, AuditLogParams{Action: ActionInviteCreate, CohortID: ic.CohortID, Subject: ic.Code})
	return s.inviteView(ic, s.now()), nil
}

// UpdateInviteCode saves a code's label, limits, access level and grants.
// The use count is never written from here, and maxUses may not drop below it.
func (s *Service) UpdateInviteCode(ctx context.Context, ic InviteCode) (InviteView, error) {
	current, err := s.store.GetInviteCode(ctx, ic.ID)
	if err != nil {
		return InviteView{}, err
	}
	ic.Code = NormalizeInviteCode(ic.Code)
	if ic.Code == "" {
		ic.Code = current.Code
	}
	if ic.Status == "" {
		ic.Status = current.Status
	}
	ic.UseCount = current.UseCount
	ic.CreatedAt = current.CreatedAt
	if err := ValidateStruct(ic); err != nil {
		return InviteView{}, err
	}
	if ic.MaxUses != nil && *ic.MaxUses < ic.UseCount {
		return InviteView{}, &ValidationError{Fields: map[string]string{
			"maxUses": fmt.Sprintf("maxUses must be at least the current use count (%d)", ic.UseCount),
		}}
	}
	if err := s.store.UpdateInviteCode(ctx, ic); err != nil {
		return InviteView{}, fmt.Errorf("update invite code: %w", err)
	}
	return s.inviteView(ic, s.now()), nil
}

// ToggleInviteCode flips a code between active and disabled. Expired and
// maxed-out codes can still be toggled; their shown status stays derived.
func (s *Service) ToggleInviteCode(ctx context.Context, id string) (InviteView, error) {
	ic, err := s.store.GetInviteCode(ctx, id)
	if err != nil {
		return InviteView{}, err
	}
	ic.Status = ic.ToggledStatus()
	if err := s.store.SetInviteStatus(ctx, id, ic.Status); err != nil {
		return InviteView{}, fmt.Errorf("set invite status: %w", err)
	}
	s.LogAudit(ctx, AuditLogParams{
		Action:   ActionInviteToggle,
		CohortID: ic.CohortID,
		Subject:  ic.Code,
		Summary:  "status set to " + string(ic.Status),
	})
	return s.inviteView(ic, s.now()), nil
}

// DeleteInviteCode deletes a code.
func (s *Service) DeleteInviteCode(ctx context.Context, id string) error {
	ic, err := s.store.GetInviteCode(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteInviteCode(ctx, id); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionDelete, CohortID: ic.CohortID, Subject: "invite:" + ic.Code})
	return nil
}

// RedeemInvite registers a learner with a code: it finds or creates the
// student, enrolls them, bumps the use count and grants the code's tool
// credits, all in one store transaction.
func (s *Service) RedeemInvite(ctx context.Context, req RedeemRequest) (Redemption, error) {
	req.Code = NormalizeInviteCode(req.Code)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := ValidateStruct(req); err != nil {
		return Redemption{}, err
	}

	red, err := s.store.RedeemInvite(ctx, req, s.now())
	if err != nil {
		return Redemption{}, err
	}

	s.LogAudit(ContextWithActor(ctx, req.Email), AuditLogParams{
		Action:   ActionInviteRedeem,
		CohortID: red.CohortID,
		Subject:  req.Code,
		Detail:   map[string]any{"studentCreated": red.StudentCreated, "alreadyEnrolled": red.AlreadyEnrolled, "credits": red.CreditsGranted},
	})
	return red, nil
}

// UpsertEnrollmentConfig maps a product key to an existing invite code.
func (s *Service) UpsertEnrollmentConfig(ctx context.Context, cfg EnrollmentConfig) error {
	cfg.ProductKey = strings.ToLower(strings.TrimSpace(cfg.ProductKey))
	if err := ValidateStruct(cfg); err != nil {
		return err
	}
	if _, err := s.store.GetInviteCode(ctx, cfg.InviteCodeID); err != nil {
		return fmt.Errorf("get invite code: %w", err)
	}
	cfg.UpdatedAt = s.now()
	if err := s.store.UpsertEnrollmentConfig(ctx, cfg); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionSettingChange, Subject: "enrollment_config:" + cfg.ProductKey})
	return nil
}

// DeleteEnrollmentConfig removes a product key mapping.
func (s *Service) DeleteEnrollmentConfig(ctx context.Context, productKey string) error {
	return s.store.DeleteEnrollmentConfig(ctx, strings.ToLower(strings.TrimSpace(productKey)))
}

// ---- Enrollment, onboarding, credits, settings ----

// Enroll adds one student to one cohort.
func (s *Service) Enroll(ctx context.Context, studentID, cohortID string) error {
	if err := s.store.Enroll(ctx, studentID, cohortID); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	return nil
}

// Unenroll removes one student from one cohort.
func (s *Service) Unenroll(ctx context.Context, studentID, cohortID string) error {
	if err := s.store.Unenroll(ctx, studentID, cohortID); err != nil {
		return fmt.Errorf("unenroll: %w", err)
	}
	return nil
}

// SaveSurvey stores a student's onboarding answers.
func (s *Service) SaveSurvey(ctx context.Context, sv Survey) error {
	if strings.TrimSpace(sv.StudentID) == "" {
		return &ValidationError{Field: "studentId", Message: "required field is empty"}
	}
	if _, err := s.store.GetStudent(ctx, sv.StudentID); err != nil {
		return err
	}
	now := s.now()
	sv.UpdatedAt = now
	if sv.CompletedAt == nil {
		sv.CompletedAt = &now
	}
	return s.store.UpsertSurvey(ctx, sv)
}

// CompleteOnboarding stamps the enrollment's completion time. Completing
// twice keeps the first stamp.
func (s *Service) CompleteOnboarding(ctx context.Context, studentID, cohortID string) error {
	e, err := s.enrollment(ctx, studentID, cohortID)
	if err != nil {
		return err
	}
	if e.OnboardingCompletedAt != nil {
		return nil
	}
	return s.store.CompleteOnboarding(ctx, studentID, cohortID, s.now())
}

// GrantToolCredits adds credits to a student's balance for one tool.
func (s *Service) GrantToolCredits(ctx context.Context, studentID string, grant ToolGrant) error {
	grant.ToolSlug = strings.ToLower(strings.TrimSpace(grant.ToolSlug))
	if err := ValidateStruct(grant); err != nil {
		return err
	}
	st, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if err := s.store.GrantToolCredits(ctx, studentID, grant.ToolSlug, grant.Credits); err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	s.LogAudit(ctx, AuditLogParams{
		Action:  ActionCreditGrant,
		Subject: st.Email,
		Summary: fmt.Sprintf("granted %d %s credits", grant.Credits, grant.ToolSlug),
	})
	return nil
}

// PutSetting stores a site setting.
func (s *Service) PutSetting(ctx context.Context, key, value string) error {
	set := Setting{Key: strings.TrimSpace(key), Value: value}
	if err := ValidateStruct(set); err != nil {
		return err
	}
	if err := s.store.PutSetting(ctx, set.Key, set.Value); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionSettingChange, Subject: set.Key})
	return nil
}

// IsEnrollmentSyncError reports whether err is a partial two-phase save.
func IsEnrollmentSyncError(err error) bool {
	return errors.Is(err, ErrEnrollmentSync)
}
