package core

//go:generate mockgen -destination=mock_enrollment_store_test.go -package=core github.com/JonMunkholm/bootcamp/internal/core EnrollmentStore

import (
	"context"
	"time"
)

// The interfaces below are implemented by internal/database against
// PostgreSQL and by the in-memory store used in tests. Get* methods return
// an error wrapping ErrNotFound when the row does not exist; Insert*
// methods return the new row's id.

// CohortStore persists cohorts.
type CohortStore interface {
	ListCohorts(ctx context.Context) ([]Cohort, error)
	GetCohort(ctx context.Context, id string) (Cohort, error)
	InsertCohort(ctx context.Context, c Cohort) (string, error)
	UpdateCohort(ctx context.Context, c Cohort) error
	DeleteCohort(ctx context.Context, id string) error
}

// CurriculumReader lists curriculum rows by parent, ordered by sort order.
type CurriculumReader interface {
	ListWeeks(ctx context.Context, cohortID string) ([]Week, error)
	ListLessons(ctx context.Context, weekID string) ([]Lesson, error)
	ListContentItems(ctx context.Context, lessonID string) ([]ContentItem, error)
	ListActionItems(ctx context.Context, weekID string) ([]ActionItem, error)
}

// CurriculumWriter creates curriculum rows one at a time.
type CurriculumWriter interface {
	InsertWeek(ctx context.Context, w Week) (string, error)
	InsertLesson(ctx context.Context, l Lesson) (string, error)
	InsertContentItem(ctx context.Context, item ContentItem) (string, error)
	InsertActionItem(ctx context.Context, a ActionItem) (string, error)
}

// CurriculumStore is the full curriculum persistence surface.
type CurriculumStore interface {
	CurriculumReader
	CurriculumWriter

	UpdateWeek(ctx context.Context, w Week) error
	UpdateLesson(ctx context.Context, l Lesson) error
	UpdateContentItem(ctx context.Context, item ContentItem) error
	UpdateActionItem(ctx context.Context, a ActionItem) error

	DeleteWeek(ctx context.Context, id string) error
	DeleteLesson(ctx context.Context, id string) error
	DeleteContentItem(ctx context.Context, id string) error
	DeleteActionItem(ctx context.Context, id string) error
}

// StudentStore persists students. Email lookups are case-insensitive and
// InsertStudent fails with ErrDuplicate for a taken email.
type StudentStore interface {
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	GetStudentByEmail(ctx context.Context, email string) (Student, error)
	InsertStudent(ctx context.Context, s Student) (string, error)
	UpdateStudent(ctx context.Context, s Student) error
	DeleteStudent(ctx context.Context, id string) error
}

// EnrollmentStore manages student <-> cohort links.
type EnrollmentStore interface {
	ListEnrollments(ctx context.Context, studentID string) ([]Enrollment, error)
	ListCohortEnrollments(ctx context.Context, cohortID string) ([]Enrollment, error)
	Enroll(ctx context.Context, studentID, cohortID string) error
	Unenroll(ctx context.Context, studentID, cohortID string) error
	CompleteOnboarding(ctx context.Context, studentID, cohortID string, at time.Time) error
}

// Redemption is the outcome of redeeming an invite code.
type Redemption struct {
	StudentID       string `json:"studentId"`
	CohortID        string `json:"cohortId"`
	StudentCreated  bool   `json:"studentCreated"`
	AlreadyEnrolled bool   `json:"alreadyEnrolled"`
	CreditsGranted  int    `json:"creditsGranted"`
}

// RedeemRequest carries the registration form for RedeemInvite.
type RedeemRequest struct {
	Code  string `json:"code" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=200"`
}

// InviteStore persists invite codes and product enrollment configs.
type InviteStore interface {
	ListInviteCodes(ctx context.Context, cohortID string) ([]InviteCode, error)
	GetInviteCode(ctx context.Context, id string) (InviteCode, error)
	GetInviteCodeByCode(ctx context.Context, code string) (InviteCode, error)
	InsertInviteCode(ctx context.Context, ic InviteCode) (string, error)
	UpdateInviteCode(ctx context.Context, ic InviteCode) error
	SetInviteStatus(ctx context.Context, id string, status InviteStatus) error
	DeleteInviteCode(ctx context.Context, id string) error

	// RedeemInvite runs the whole redemption in one transaction: the
	// use_count increment only applies while the code is active, unexpired
	// and under max_uses, otherwise ErrInviteUnavailable is returned.
	RedeemInvite(ctx context.Context, req RedeemRequest, now time.Time) (Redemption, error)

	ListEnrollmentConfigs(ctx context.Context) ([]EnrollmentConfig, error)
	GetEnrollmentConfig(ctx context.Context, productKey string) (EnrollmentConfig, error)
	UpsertEnrollmentConfig(ctx context.Context, cfg EnrollmentConfig) error
	DeleteEnrollmentConfig(ctx context.Context, productKey string) error
}

// SurveyStore persists onboarding surveys, one per student.
type SurveyStore interface {
	GetSurvey(ctx context.Context, studentID string) (Survey, error)
	UpsertSurvey(ctx context.Context, s Survey) error
}

// CreditStore persists AI tool credit balances.
type CreditStore interface {
	ListToolCredits(ctx context.Context, studentID string) ([]ToolCredit, error)
	GrantToolCredits(ctx context.Context, studentID, toolSlug string, credits int) error
}

// SettingsStore persists site settings.
type SettingsStore interface {
	ListSettings(ctx context.Context) ([]Setting, error)
	GetSetting(ctx context.Context, key string) (string, error)
	PutSetting(ctx context.Context, key, value string) error
}

// AuditStore persists audit log entries.
type AuditStore interface {
	InsertAuditEntry(ctx context.Context, e AuditEntry) (string, error)
	ListAuditEntries(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
	PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error)
}

// Store is everything the Service needs from persistence.
type Store interface {
	CohortStore
	CurriculumStore
	StudentStore
	EnrollmentStore
	InviteStore
	SurveyStore
	CreditStore
	SettingsStore
	AuditStore

	Ping(ctx context.Context) error
}
