package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

// ----------------------------------------------------------------------------
// Students
// ----------------------------------------------------------------------------

const studentColumns = `id, email, name, company, purchase_date, access_level, status, notes,
	slack_invited, calendar_added, created_at`

func scanStudent(row pgx.Row) (core.Student, error) {
	var (
		st       core.Student
		id       pgtype.UUID
		purchase pgtype.Date
	)
	err := row.Scan(&id, &st.Email, &st.Name, &st.Company, &purchase, &st.AccessLevel, &st.Status, &st.Notes,
		&st.SlackInvited, &st.CalendarAdded, &st.CreatedAt)
	st.ID = PgUUIDToString(id)
	st.PurchaseDate = PgDateToTime(purchase)
	return st, err
}

func (s *Store) ListStudents(ctx context.Context) ([]core.Student, error) {
	rows, err := s.db.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY created_at, lower(email)`)
	return collect(rows, err, scanStudent)
}

func (s *Store) GetStudent(ctx context.Context, id string) (core.Student, error) {
	st, err := scanStudent(s.db.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, ToPgUUID(id)))
	return st, mapErr(err, "student", id)
}

func (s *Store) GetStudentByEmail(ctx context.Context, email string) (core.Student, error) {
	st, err := scanStudent(s.db.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE lower(email) = lower($1)`, email))
	return st, mapErr(err, "student", email)
}

func (s *Store) InsertStudent(ctx context.Context, st core.Student) (string, error) {
	return insertStudent(ctx, s.db, st)
}

func insertStudent(ctx context.Context, db DBTX, st core.Student) (string, error) {
	return insertID(ctx, db, "student", st.Email, `
		INSERT INTO students (email, name, company, purchase_date, access_level, status, notes,
			slack_invited, calendar_added)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		st.Email, st.Name, st.Company, ToPgDate(st.PurchaseDate), string(st.AccessLevel), string(st.Status),
		st.Notes, st.SlackInvited, st.CalendarAdded)
}

func (s *Store) UpdateStudent(ctx context.Context, st core.Student) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE students SET email = $2, name = $3, company = $4, purchase_date = $5, access_level = $6,
			status = $7, notes = $8, slack_invited = $9, calendar_added = $10
		WHERE id = $1`,
		ToPgUUID(st.ID), st.Email, st.Name, st.Company, ToPgDate(st.PurchaseDate), string(st.AccessLevel),
		string(st.Status), st.Notes, st.SlackInvited, st.CalendarAdded)
	return expectRow(tag, err, "student", st.ID)
}

func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM students WHERE id = $1`, ToPgUUID(id))
	return expectRow(tag, err, "student", id)
}

// ----------------------------------------------------------------------------
// Enrollments
// ----------------------------------------------------------------------------

const enrollmentColumns = `id, student_id, cohort_id, joined_at, onboarding_completed_at, access_level`

func scanEnrollment(row pgx.Row) (core.Enrollment, error) {
	var (
		e                       core.Enrollment
		id, studentID, cohortID pgtype.UUID
		completed               pgtype.Timestamptz
		level                   pgtype.Text
	)
	err := row.Scan(&id, &studentID, &cohortID, &e.JoinedAt, &completed, &level)
	e.ID = PgUUIDToString(id)
	e.StudentID = PgUUIDToString(studentID)
	e.CohortID = PgUUIDToString(cohortID)
	e.OnboardingCompletedAt = PgTimestamptzToTime(completed)
	e.AccessLevel = core.AccessLevel(level.String)
	return e, err
}

func (s *Store) ListEnrollments(ctx context.Context, studentID string) ([]core.Enrollment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE student_id = $1 ORDER BY joined_at, id`,
		ToPgUUID(studentID))
	return collect(rows, err, scanEnrollment)
}

func (s *Store) ListCohortEnrollments(ctx context.Context, cohortID string) ([]core.Enrollment, error) {
	rows, err := s.db.Query(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE cohort_id = $1 ORDER BY joined_at, id`,
		ToPgUUID(cohortID))
	return collect(rows, err, scanEnrollment)
}

// Enroll fails with ErrDuplicate when the student is already enrolled and
// ErrNotFound when either side does not exist.
func (s *Store) Enroll(ctx context.Context, studentID, cohortID string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO enrollments (student_id, cohort_id) VALUES ($1, $2)`,
		ToPgUUID(studentID), ToPgUUID(cohortID))
	return mapErr(err, "enrollment", studentID+"/"+cohortID)
}

func (s *Store) Unenroll(ctx context.Context, studentID, cohortID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM enrollments WHERE student_id = $1 AND cohort_id = $2`,
		ToPgUUID(studentID), ToPgUUID(cohortID))
	return expectRow(tag, err, "enrollment", studentID+"/"+cohortID)
}

// CompleteOnboarding stamps the enrollment once; later calls keep the
// first time.
func (s *Store) CompleteOnboarding(ctx context.Context, studentID, cohortID string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE enrollments SET onboarding_completed_at = COALESCE(onboarding_completed_at, $3)
		WHERE student_id = $1 AND cohort_id = $2`,
		ToPgUUID(studentID), ToPgUUID(cohortID), at)
	return expectRow(tag, err, "enrollment", studentID+"/"+cohortID)
}

// ----------------------------------------------------------------------------
// Surveys
// ----------------------------------------------------------------------------

const surveyColumns = `student_id, business_name, role, industry, team_size, revenue_range, goals,
	biggest_challenge, how_heard, answers, completed_at, updated_at`

func scanSurvey(row pgx.Row) (core.Survey, error) {
	var (
		sv        core.Survey
		studentID pgtype.UUID
		completed pgtype.Timestamptz
	)
	err := row.Scan(&studentID, &sv.BusinessName, &sv.Role, &sv.Industry, &sv.TeamSize, &sv.RevenueRange,
		&sv.Goals, &sv.BiggestChallenge, &sv.HowHeard, &sv.Answers, &completed, &sv.UpdatedAt)
	sv.StudentID = PgUUIDToString(studentID)
	sv.CompletedAt = PgTimestamptzToTime(completed)
	return sv, err
}

func (s *Store) GetSurvey(ctx context.Context, studentID string) (core.Survey, error) {
	sv, err := scanSurvey(s.db.QueryRow(ctx, `SELECT `+surveyColumns+` FROM surveys WHERE student_id = $1`,
		ToPgUUID(studentID)))
	return sv, mapErr(err, "survey", studentID)
}

func (s *Store) UpsertSurvey(ctx context.Context, sv core.Survey) error {
	answers := sv.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO surveys (student_id, business_name, role, industry, team_size, revenue_range, goals,
			biggest_challenge, how_heard, answers, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (student_id) DO UPDATE SET
			business_name = EXCLUDED.business_name, role = EXCLUDED.role, industry = EXCLUDED.industry,
			team_size = EXCLUDED.team_size, revenue_range = EXCLUDED.revenue_range, goals = EXCLUDED.goals,
			biggest_challenge = EXCLUDED.biggest_challenge, how_heard = EXCLUDED.how_heard,
			answers = EXCLUDED.answers, completed_at = EXCLUDED.completed_at, updated_at = now()`,
		ToPgUUID(sv.StudentID), sv.BusinessName, sv.Role, sv.Industry, sv.TeamSize, sv.RevenueRange, sv.Goals,
		sv.BiggestChallenge, sv.HowHeard, answers, ToPgTimestamptz(sv.CompletedAt))
	return mapErr(err, "survey", sv.StudentID)
}

// ----------------------------------------------------------------------------
// Tool credits
// ----------------------------------------------------------------------------

func (s *Store) ListToolCredits(ctx context.Context, studentID string) ([]core.ToolCredit, error) {
	rows, err := s.db.Query(ctx, `
		SELECT student_id, tool_slug, credits, updated_at
		FROM tool_credits WHERE student_id = $1 ORDER BY tool_slug`, ToPgUUID(studentID))
	return collect(rows, err, func(row pgx.Row) (core.ToolCredit, error) {
		var (
			tc core.ToolCredit
			id pgtype.UUID
		)
		err := row.Scan(&id, &tc.ToolSlug, &tc.Credits, &tc.UpdatedAt)
		tc.StudentID = PgUUIDToString(id)
		return tc, err
	})
}

// GrantToolCredits adds credits to the student's balance for a tool.
func (s *Store) GrantToolCredits(ctx context.Context, studentID, toolSlug string, credits int) error {
	return grantToolCredits(ctx, s.db, studentID, toolSlug, credits)
}

func grantToolCredits(ctx context.Context, db DBTX, studentID, toolSlug string, credits int) error {
	_, err := db.Exec(ctx, `
		INSERT INTO tool_credits (student_id, tool_slug, credits, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (student_id, tool_slug) DO UPDATE SET
			credits = tool_credits.credits + EXCLUDED.credits, updated_at = now()`,
		ToPgUUID(studentID), toolSlug, credits)
	return mapErr(err, "tool credit", studentID+"/"+toolSlug)
}
