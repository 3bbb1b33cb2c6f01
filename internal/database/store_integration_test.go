package database

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

// testStore connects to TEST_DATABASE_URL and applies the schema. Tests
// using it are skipped when the variable is unset.
func testStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	store := New(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return store
}

// testCohort inserts a cohort with a unique slug and deletes it afterwards.
func testCohort(t *testing.T, store *Store) string {
	t.Helper()
	ctx := context.Background()
	slug := "test-" + uuid.NewString()[:8]
	id, err := store.InsertCohort(ctx, core.Cohort{Name: "Test " + slug, Slug: slug, Status: core.CohortActive})
	if err != nil {
		t.Fatalf("InsertCohort() error = %v", err)
	}
	t.Cleanup(func() { _ = store.DeleteCohort(context.Background(), id) })
	return id
}

func testEmail(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8] + "@example.com"
}

func TestStore_CurriculumImportAndCascade(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	cohortID := testCohort(t, store)

	plan, err := core.ParseCurriculumCSV(core.SampleCurriculumCSV)
	if err != nil {
		t.Fatal(err)
	}
	res, err := core.ImportCurriculum(ctx, store, cohortID, plan, core.PolicyContinue, nil)
	if err != nil {
		t.Fatalf("ImportCurriculum() error = %v", err)
	}
	if res.Created() != 11 {
		t.Errorf("created = %d, want 11", res.Created())
	}

	tree, err := core.LoadCurriculum(ctx, store, cohortID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Weeks) != 2 || len(tree.Weeks[0].Lessons) != 2 || len(tree.Weeks[0].Lessons[0].Items) != 3 {
		t.Fatalf("tree shape wrong: %+v", tree)
	}
	for i, w := range tree.Weeks {
		if w.SortOrder != i {
			t.Errorf("week %q sort = %d, want %d", w.Title, w.SortOrder, i)
		}
	}
	weekID := tree.Weeks[0].ID

	if err := store.DeleteCohort(ctx, cohortID); err != nil {
		t.Fatalf("DeleteCohort() error = %v", err)
	}
	lessons, err := store.ListLessons(ctx, weekID)
	if err != nil || len(lessons) != 0 {
		t.Errorf("lessons after cascade = %d (err %v), want 0", len(lessons), err)
	}
	if _, err := store.GetCohort(ctx, cohortID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetCohort() after delete error = %v, want ErrNotFound", err)
	}
}

func TestStore_StudentsAndEnrollments(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	cohortID := testCohort(t, store)

	email := testEmail("ada")
	id, err := store.InsertStudent(ctx, core.Student{
		Email: email, Name: "Ada", AccessLevel: core.DefaultAccessLevel, Status: core.DefaultStudentStatus,
	})
	if err != nil {
		t.Fatalf("InsertStudent() error = %v", err)
	}
	t.Cleanup(func() { _ = store.DeleteStudent(context.Background(), id) })

	_, err = store.InsertStudent(ctx, core.Student{
		Email: strings.ToUpper(email), AccessLevel: core.DefaultAccessLevel, Status: core.DefaultStudentStatus,
	})
	if !errors.Is(err, core.ErrDuplicate) {
		t.Errorf("duplicate email error = %v, want ErrDuplicate", err)
	}

	got, err := store.GetStudentByEmail(ctx, strings.ToUpper(email))
	if err != nil || got.ID != id {
		t.Errorf("GetStudentByEmail() = %q, %v, want %q", got.ID, err, id)
	}

	if err := store.Enroll(ctx, id, cohortID); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if err := store.Enroll(ctx, id, cohortID); !errors.Is(err, core.ErrDuplicate) {
		t.Errorf("second Enroll() error = %v, want ErrDuplicate", err)
	}

	first := time.Now().UTC().Truncate(time.Second)
	if err := store.CompleteOnboarding(ctx, id, cohortID, first); err != nil {
		t.Fatal(err)
	}
	if err := store.CompleteOnboarding(ctx, id, cohortID, first.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	enrollments, err := store.ListEnrollments(ctx, id)
	if err != nil || len(enrollments) != 1 {
		t.Fatalf("ListEnrollments() = %d, %v", len(enrollments), err)
	}
	if at := enrollments[0].OnboardingCompletedAt; at == nil || !at.Equal(first) {
		t.Errorf("onboarding completed at = %v, want %v", at, first)
	}

	if err := store.Unenroll(ctx, id, cohortID); err != nil {
		t.Fatal(err)
	}
	if err := store.Unenroll(ctx, id, cohortID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Unenroll() error = %v, want ErrNotFound", err)
	}
}

func TestStore_RedeemInvite(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	cohortID := testCohort(t, store)

	maxUses := 1
	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString()[:8], "-", ""))
	_, err := store.InsertInviteCode(ctx, core.InviteCode{
		Code: code, CohortID: cohortID, Status: core.InviteActive, MaxUses: &maxUses,
		AccessLevel: core.AccessSprintAITools,
		ToolGrants:  []core.ToolGrant{{ToolSlug: "writer", Credits: 50}},
	})
	if err != nil {
		t.Fatalf("InsertInviteCode() error = %v", err)
	}

	now := time.Now()
	email := testEmail("grace")
	red, err := store.RedeemInvite(ctx, core.RedeemRequest{Code: code, Email: email, Name: "Grace"}, now)
	if err != nil {
		t.Fatalf("RedeemInvite() error = %v", err)
	}
	t.Cleanup(func() { _ = store.DeleteStudent(context.Background(), red.StudentID) })
	if !red.StudentCreated || red.AlreadyEnrolled || red.CreditsGranted != 50 {
		t.Errorf("redemption = %+v", red)
	}

	// The code is maxed out now, but the same student redeeming again is a no-op.
	again, err := store.RedeemInvite(ctx, core.RedeemRequest{Code: code, Email: email}, now)
	if err != nil {
		t.Fatalf("re-redeem on a maxed code error = %v, want nil", err)
	}
	if !again.AlreadyEnrolled || again.StudentCreated || again.StudentID != red.StudentID || again.CreditsGranted != 0 {
		t.Errorf("re-redeem = %+v, want already enrolled no-op", again)
	}

	_, err = store.RedeemInvite(ctx, core.RedeemRequest{Code: code, Email: testEmail("alan")}, now)
	if !errors.Is(err, core.ErrInviteUnavailable) {
		t.Errorf("second student error = %v, want ErrInviteUnavailable", err)
	}

	ic, err := store.GetInviteCodeByCode(ctx, code)
	if err != nil || ic.UseCount != 1 {
		t.Errorf("use count = %d (err %v), want 1", ic.UseCount, err)
	}
	credits, _ := store.ListToolCredits(ctx, red.StudentID)
	if len(credits) != 1 || credits[0].Credits != 50 {
		t.Errorf("credits = %+v, want writer:50", credits)
	}
	st, _ := store.GetStudent(ctx, red.StudentID)
	if st.AccessLevel != core.AccessSprintAITools {
		t.Errorf("access level = %q, want %q", st.AccessLevel, core.AccessSprintAITools)
	}
}

func TestStore_AuditPurge(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	old := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.InsertAuditEntry(ctx, core.AuditEntry{
		Action: core.ActionDelete, Severity: core.SeverityHigh, Subject: "old", CreatedAt: old,
		Detail: map[string]any{"rows": 3},
	}); err != nil {
		t.Fatalf("InsertAuditEntry() error = %v", err)
	}

	entries, err := store.ListAuditEntries(ctx, core.AuditFilter{Until: old.Add(time.Second)})
	if err != nil || len(entries) == 0 {
		t.Fatalf("ListAuditEntries() = %d, %v", len(entries), err)
	}
	if entries[0].Detail["rows"] != float64(3) {
		t.Errorf("detail = %v, want rows=3", entries[0].Detail)
	}

	purged, err := store.PurgeAuditEntries(ctx, old.Add(time.Second))
	if err != nil || purged < 1 {
		t.Errorf("PurgeAuditEntries() = %d, %v, want at least 1", purged, err)
	}
}
