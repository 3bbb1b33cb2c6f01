package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory Store for tests. failInsert, when set, is
// consulted before every curriculum insert and student insert.
type memStore struct {
	mu  sync.Mutex
	seq int

	cohorts     map[string]Cohort
	weeks       map[string]Week
	lessons     map[string]Lesson
	items       map[string]ContentItem
	actions     map[string]ActionItem
	students    map[string]Student
	enrollments []Enrollment
	invites     map[string]InviteCode
	configs     map[string]EnrollmentConfig
	surveys     map[string]Survey
	credits     map[string]int // studentID|tool
	settings    map[string]string
	audit       []AuditEntry

	failInsert func(kind, title string) error
	failEnroll func(studentID, cohortID string) error
	calls      []string
}

func newMemStore() *memStore {
	return &memStore{
		cohorts:  map[string]Cohort{},
		weeks:    map[string]Week{},
		lessons:  map[string]Lesson{},
		items:    map[string]ContentItem{},
		actions:  map[string]ActionItem{},
		students: map[string]Student{},
		invites:  map[string]InviteCode{},
		configs:  map[string]EnrollmentConfig{},
		surveys:  map[string]Survey{},
		credits:  map[string]int{},
		settings: map[string]string{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%d", prefix, m.seq)
}

func (m *memStore) record(call string) { m.calls = append(m.calls, call) }

func (m *memStore) fail(kind, title string) error {
	if m.failInsert == nil {
		return nil
	}
	return m.failInsert(kind, title)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

func (m *memStore) Ping(context.Context) error { return nil }

// ---- cohorts ----

func (m *memStore) ListCohorts(context.Context) ([]Cohort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Cohort, 0, len(m.cohorts))
	for _, c := range m.cohorts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memStore) GetCohort(_ context.Context, id string) (Cohort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cohorts[id]
	if !ok {
		return Cohort{}, notFound("cohort", id)
	}
	return c, nil
}

func (m *memStore) InsertCohort(_ context.Context, c Cohort) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.cohorts {
		if existing.Slug == c.Slug {
			return "", fmt.Errorf("cohort slug %q: %w", c.Slug, ErrDuplicate)
		}
	}
	c.ID = m.nextID("c")
	m.cohorts[c.ID] = c
	return c.ID, nil
}

func (m *memStore) UpdateCohort(_ context.Context, c Cohort) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cohorts[c.ID]; !ok {
		return notFound("cohort", c.ID)
	}
	m.cohorts[c.ID] = c
	return nil
}

func (m *memStore) DeleteCohort(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cohorts[id]; !ok {
		return notFound("cohort", id)
	}
	delete(m.cohorts, id)
	for wid, w := range m.weeks {
		if w.CohortID == id {
			m.deleteWeekLocked(wid)
		}
	}
	kept := m.enrollments[:0]
	for _, e := range m.enrollments {
		if e.CohortID != id {
			kept = append(kept, e)
		}
	}
	m.enrollments = kept
	return nil
}

// ---- curriculum ----

func (m *memStore) ListWeeks(_ context.Context, cohortID string) ([]Week, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Week
	for _, w := range m.weeks {
		if w.CohortID == cohortID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *memStore) ListLessons(_ context.Context, weekID string) ([]Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Lesson
	for _, l := range m.lessons {
		if l.WeekID == weekID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *memStore) ListContentItems(_ context.Context, lessonID string) ([]ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ContentItem
	for _, it := range m.items {
		if it.LessonID == lessonID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *memStore) ListActionItems(_ context.Context, weekID string) ([]ActionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ActionItem
	for _, a := range m.actions {
		if a.WeekID == weekID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (m *memStore) InsertWeek(_ context.Context, w Week) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("week:" + w.Title)
	if err := m.fail("week", w.Title); err != nil {
		return "", err
	}
	w.ID = m.nextID("w")
	m.weeks[w.ID] = w
	return w.ID, nil
}

func (m *memStore) InsertLesson(_ context.Context, l Lesson) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("lesson:" + l.Title)
	if err := m.fail("lesson", l.Title); err != nil {
		return "", err
	}
	if _, ok := m.weeks[l.WeekID]; !ok {
		return "", fmt.Errorf("insert lesson: violates foreign key constraint")
	}
	l.ID = m.nextID("l")
	m.lessons[l.ID] = l
	return l.ID, nil
}

func (m *memStore) InsertContentItem(_ context.Context, it ContentItem) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("item:" + it.Title)
	if err := m.fail("item", it.Title); err != nil {
		return "", err
	}
	if _, ok := m.lessons[it.LessonID]; !ok {
		return "", fmt.Errorf("insert item: violates foreign key constraint")
	}
	it.ID = m.nextID("i")
	m.items[it.ID] = it
	return it.ID, nil
}

func (m *memStore) InsertActionItem(_ context.Context, a ActionItem) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("action:" + a.Title)
	if err := m.fail("action", a.Title); err != nil {
		return "", err
	}
	a.ID = m.nextID("a")
	m.actions[a.ID] = a
	return a.ID, nil
}

func (m *memStore) UpdateWeek(_ context.Context, w Week) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.weeks[w.ID]; !ok {
		return notFound("week", w.ID)
	}
	m.weeks[w.ID] = w
	return nil
}

func (m *memStore) UpdateLesson(_ context.Context, l Lesson) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lessons[l.ID]; !ok {
		return notFound("lesson", l.ID)
	}
	m.lessons[l.ID] = l
	return nil
}

func (m *memStore) UpdateContentItem(_ context.Context, it ContentItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[it.ID]; !ok {
		return notFound("content item", it.ID)
	}
	m.items[it.ID] = it
	return nil
}

func (m *memStore) UpdateActionItem(_ context.Context, a ActionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[a.ID]; !ok {
		return notFound("action item", a.ID)
	}
	m.actions[a.ID] = a
	return nil
}

func (m *memStore) deleteWeekLocked(id string) {
	delete(m.weeks, id)
	for lid, l := range m.lessons {
		if l.WeekID == id {
			m.deleteLessonLocked(lid)
		}
	}
	for aid, a := range m.actions {
		if a.WeekID == id {
			delete(m.actions, aid)
		}
	}
}

func (m *memStore) deleteLessonLocked(id string) {
	delete(m.lessons, id)
	for iid, it := range m.items {
		if it.LessonID == id {
			delete(m.items, iid)
		}
	}
}

func (m *memStore) DeleteWeek(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.weeks[id]; !ok {
		return notFound("week", id)
	}
	m.deleteWeekLocked(id)
	return nil
}

func (m *memStore) DeleteLesson(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lessons[id]; !ok {
		return notFound("lesson", id)
	}
	m.deleteLessonLocked(id)
	return nil
}

func (m *memStore) DeleteContentItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return notFound("content item", id)
	}
	delete(m.items, id)
	return nil
}

func (m *memStore) DeleteActionItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.actions[id]; !ok {
		return notFound("action item", id)
	}
	delete(m.actions, id)
	return nil
}

// ---- students ----

func (m *memStore) ListStudents(context.Context) ([]Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetStudent(_ context.Context, id string) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return Student{}, notFound("student", id)
	}
	return s, nil
}

func (m *memStore) studentByEmailLocked(email string) (Student, bool) {
	for _, s := range m.students {
		if strings.EqualFold(s.Email, email) {
			return s, true
		}
	}
	return Student{}, false
}

func (m *memStore) GetStudentByEmail(_ context.Context, email string) (Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.studentByEmailLocked(email)
	if !ok {
		return Student{}, notFound("student", email)
	}
	return s, nil
}

func (m *memStore) InsertStudent(_ context.Context, s Student) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("student:" + s.Email)
	if err := m.fail("student", s.Email); err != nil {
		return "", err
	}
	if _, taken := m.studentByEmailLocked(s.Email); taken {
		return "", fmt.Errorf("student %s: %w", s.Email, ErrDuplicate)
	}
	s.ID = m.nextID("s")
	m.students[s.ID] = s
	return s.ID, nil
}

func (m *memStore) UpdateStudent(_ context.Context, s Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[s.ID]; !ok {
		return notFound("student", s.ID)
	}
	if other, taken := m.studentByEmailLocked(s.Email); taken && other.ID != s.ID {
		return fmt.Errorf("student %s: %w", s.Email, ErrDuplicate)
	}
	m.students[s.ID] = s
	return nil
}

func (m *memStore) DeleteStudent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.students[id]; !ok {
		return notFound("student", id)
	}
	delete(m.students, id)
	kept := m.enrollments[:0]
	for _, e := range m.enrollments {
		if e.StudentID != id {
			kept = append(kept, e)
		}
	}
	m.enrollments = kept
	return nil
}

// ---- enrollments ----

func (m *memStore) ListEnrollments(_ context.Context, studentID string) ([]Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListCohortEnrollments(_ context.Context, cohortID string) ([]Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Enrollment
	for _, e := range m.enrollments {
		if e.CohortID == cohortID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) enrolledLocked(studentID, cohortID string) int {
	for i, e := range m.enrollments {
		if e.StudentID == studentID && e.CohortID == cohortID {
			return i
		}
	}
	return -1
}

func (m *memStore) Enroll(_ context.Context, studentID, cohortID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("enroll:" + cohortID)
	if m.failEnroll != nil {
		if err := m.failEnroll(studentID, cohortID); err != nil {
			return err
		}
	}
	if _, ok := m.cohorts[cohortID]; !ok {
		return notFound("cohort", cohortID)
	}
	if m.enrolledLocked(studentID, cohortID) >= 0 {
		return fmt.Errorf("enrollment: %w", ErrDuplicate)
	}
	m.enrollments = append(m.enrollments, Enrollment{
		ID: m.nextID("e"), StudentID: studentID, CohortID: cohortID, JoinedAt: time.Now(),
	})
	return nil
}

func (m *memStore) Unenroll(_ context.Context, studentID, cohortID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("unenroll:" + cohortID)
	i := m.enrolledLocked(studentID, cohortID)
	if i < 0 {
		return notFound("enrollment", cohortID)
	}
	m.enrollments = append(m.enrollments[:i], m.enrollments[i+1:]...)
	return nil
}

func (m *memStore) CompleteOnboarding(_ context.Context, studentID, cohortID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.enrolledLocked(studentID, cohortID)
	if i < 0 {
		return notFound("enrollment", cohortID)
	}
	m.enrollments[i].OnboardingCompletedAt = &at
	return nil
}

// ---- invites ----

func (m *memStore) ListInviteCodes(_ context.Context, cohortID string) ([]InviteCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []InviteCode
	for _, ic := range m.invites {
		if cohortID == "" || ic.CohortID == cohortID {
			out = append(out, ic)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetInviteCode(_ context.Context, id string) (InviteCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ic, ok := m.invites[id]
	if !ok {
		return InviteCode{}, notFound("invite code", id)
	}
	return ic, nil
}

func (m *memStore) inviteByCodeLocked(code string) (InviteCode, bool) {
	for _, ic := range m.invites {
		if strings.EqualFold(ic.Code, code) {
			return ic, true
		}
	}
	return InviteCode{}, false
}

func (m *memStore) GetInviteCodeByCode(_ context.Context, code string) (InviteCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ic, ok := m.inviteByCodeLocked(code)
	if !ok {
		return InviteCode{}, notFound("invite code", code)
	}
	return ic, nil
}

func (m *memStore) InsertInviteCode(_ context.Context, ic InviteCode) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.inviteByCodeLocked(ic.Code); taken {
		return "", fmt.Errorf("invite code %s: %w", ic.Code, ErrDuplicate)
	}
	ic.ID = m.nextID("ic")
	m.invites[ic.ID] = ic
	return ic.ID, nil
}

func (m *memStore) UpdateInviteCode(_ context.Context, ic InviteCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[ic.ID]; !ok {
		return notFound("invite code", ic.ID)
	}
	m.invites[ic.ID] = ic
	return nil
}

func (m *memStore) SetInviteStatus(_ context.Context, id string, status InviteStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ic, ok := m.invites[id]
	if !ok {
		return notFound("invite code", id)
	}
	ic.Status = status
	m.invites[id] = ic
	return nil
}

func (m *memStore) DeleteInviteCode(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[id]; !ok {
		return notFound("invite code", id)
	}
	delete(m.invites, id)
	return nil
}

func (m *memStore) RedeemInvite(_ context.Context, req RedeemRequest, now time.Time) (Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ic, ok := m.inviteByCodeLocked(req.Code)
	if !ok {
		return Redemption{}, notFound("invite code", req.Code)
	}
	red := Redemption{CohortID: ic.CohortID}
	st, exists := m.studentByEmailLocked(req.Email)
	if exists && m.enrolledLocked(st.ID, ic.CohortID) >= 0 {
		red.StudentID = st.ID
		red.AlreadyEnrolled = true
		return red, nil
	}
	if !ic.Redeemable(now) {
		return Redemption{}, ErrInviteUnavailable
	}

	if !exists {
		level := ic.AccessLevel
		if level == "" {
			level = DefaultAccessLevel
		}
		st = Student{ID: m.nextID("s"), Email: req.Email, Name: req.Name, AccessLevel: level, Status: DefaultStudentStatus, CreatedAt: now}
		m.students[st.ID] = st
		red.StudentCreated = true
	}
	red.StudentID = st.ID

	m.enrollments = append(m.enrollments, Enrollment{
		ID: m.nextID("e"), StudentID: st.ID, CohortID: ic.CohortID, JoinedAt: now, AccessLevel: ic.AccessLevel,
	})
	ic.UseCount++
	m.invites[ic.ID] = ic
	for _, g := range ic.ToolGrants {
		m.credits[st.ID+"|"+g.ToolSlug] += g.Credits
		red.CreditsGranted += g.Credits
	}
	return red, nil
}

func (m *memStore) ListEnrollmentConfigs(context.Context) ([]EnrollmentConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EnrollmentConfig, 0, len(m.configs))
	for _, c := range m.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductKey < out[j].ProductKey })
	return out, nil
}

func (m *memStore) GetEnrollmentConfig(_ context.Context, key string) (EnrollmentConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[key]
	if !ok {
		return EnrollmentConfig{}, notFound("enrollment config", key)
	}
	return c, nil
}

func (m *memStore) UpsertEnrollmentConfig(_ context.Context, c EnrollmentConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[c.ProductKey] = c
	return nil
}

func (m *memStore) DeleteEnrollmentConfig(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, key)
	return nil
}

// ---- surveys, credits, settings, audit ----

func (m *memStore) GetSurvey(_ context.Context, studentID string) (Survey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surveys[studentID]
	if !ok {
		return Survey{}, notFound("survey", studentID)
	}
	return s, nil
}

func (m *memStore) UpsertSurvey(_ context.Context, s Survey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.surveys[s.StudentID] = s
	return nil
}

func (m *memStore) ListToolCredits(_ context.Context, studentID string) ([]ToolCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ToolCredit
	for k, v := range m.credits {
		sid, tool, _ := strings.Cut(k, "|")
		if sid == studentID {
			out = append(out, ToolCredit{StudentID: sid, ToolSlug: tool, Credits: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolSlug < out[j].ToolSlug })
	return out, nil
}

func (m *memStore) GrantToolCredits(_ context.Context, studentID, tool string, credits int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits[studentID+"|"+tool] += credits
	return nil
}

func (m *memStore) ListSettings(context.Context) ([]Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Setting, 0, len(m.settings))
	for k, v := range m.settings {
		out = append(out, Setting{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memStore) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	if !ok {
		return "", notFound("setting", key)
	}
	return v, nil
}

func (m *memStore) PutSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *memStore) InsertAuditEntry(_ context.Context, e AuditEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID("log")
	m.audit = append(m.audit, e)
	return e.ID, nil
}

func (m *memStore) ListAuditEntries(_ context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.CohortID != "" && e.CohortID != f.CohortID {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) PurgeAuditEntries(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.audit[:0]
	var purged int64
	for _, e := range m.audit {
		if e.CreatedAt.Before(before) {
			purged++
			continue
		}
		kept = append(kept, e)
	}
	m.audit = kept
	return purged, nil
}

func (m *memStore) auditActions() []AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AuditAction, len(m.audit))
	for i, e := range m.audit {
		out[i] = e.Action
	}
	return out
}

// addCohort stores a cohort directly and returns its id.
func (m *memStore) addCohort(name string) string {
	id, err := m.InsertCohort(context.Background(), Cohort{Name: name, Slug: Slugify(name), Status: CohortActive})
	if err != nil {
		panic(err)
	}
	return id
}

var _ Store = (*memStore)(nil)
