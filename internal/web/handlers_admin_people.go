package web

import (
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/web/views"
)

const auditPageSize = 50

func (s *Server) studentsData(r *http.Request) (views.StudentsData, error) {
	var d views.StudentsData
	var err error
	if d.Students, err = s.service.ListStudents(r.Context()); err != nil {
		return d, err
	}
	d.Cohorts, err = s.service.ListCohorts(r.Context())
	return d, err
}

func (s *Server) handleStudentsPage(w http.ResponseWriter, r *http.Request) {
	d, err := s.studentsData(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPage(w, r, nil, http.StatusOK, "Students", func(p views.Page) templ.Component {
		return views.Students(p, d)
	})
}

func (s *Server) handleAdminCreateStudent(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.badRequest(w, r, "invalid form")
		return
	}
	st := core.Student{
		Email:       formString(r, "email"),
		Name:        formString(r, "name"),
		Company:     formString(r, "company"),
		AccessLevel: core.AccessLevel(formString(r, "accessLevel")),
	}
	created, err := s.service.CreateStudent(r.Context(), st, formList(r, "cohortIds"))
	if err != nil {
		target := "/admin/students"
		if created.ID != "" {
			target += "/" + created.ID
		}
		s.flashError(w, r, nil, target, err)
		return
	}
	s.redirect(w, r, nil, "/admin/students/"+created.ID, "Student added.", "ok")
}

func (s *Server) handleAdminStudentPreview(w http.ResponseWriter, r *http.Request) {
	text, err := s.readCSVForm(w, r)
	if err != nil {
		s.flashError(w, r, nil, "/admin/students", err)
		return
	}
	preview, err := s.service.PreviewStudentImport(r.Context(), text)
	if err != nil {
		s.flashError(w, r, nil, "/admin/students", err)
		return
	}
	d, err := s.studentsData(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d.Preview = &preview
	d.ImportCSV = text
	d.CohortID = formString(r, "cohortId")
	d.IncludeDuplicates = formBool(r, "includeDuplicates")
	s.renderPage(w, r, nil, http.StatusOK, "Students", func(p views.Page) templ.Component {
		return views.Students(p, d)
	})
}

func (s *Server) handleAdminStudentImport(w http.ResponseWriter, r *http.Request) {
	text, err := s.readCSVForm(w, r)
	if err != nil {
		s.flashError(w, r, nil, "/admin/students", err)
		return
	}
	jobID, err := s.service.StartStudentImport(r.Context(), text, core.StudentImportOptions{
		CohortID:          formString(r, "cohortId"),
		IncludeDuplicates: formBool(r, "includeDuplicates"),
	})
	if err != nil {
		s.flashError(w, r, nil, "/admin/students", err)
		return
	}
	s.redirect(w, r, nil, "/admin/imports/"+jobID, "", "")
}

func (s *Server) handleStudentEditPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studentID")
	ctx := r.Context()

	var d views.StudentEditData
	var err error
	if d.Student, err = s.service.GetStudent(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Cohorts, err = s.service.ListCohorts(ctx); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Credits, err = s.service.ListToolCredits(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Survey, err = s.service.GetSurvey(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPage(w, r, nil, http.StatusOK, d.Student.Email, func(p views.Page) templ.Component {
		return views.StudentEdit(p, d)
	})
}

// studentPatchFromForm reads the edit form. Every field is submitted, so
// every field is set; the cohort list is only synced when the form says
// it carries one.
func studentPatchFromForm(r *http.Request) core.StudentPatch {
	str := func(name string) *string {
		v := formString(r, name)
		return &v
	}
	boolean := func(name string) *bool {
		v := formBool(r, name)
		return &v
	}
	access := core.AccessLevel(formString(r, "accessLevel"))
	status := core.StudentStatus(formString(r, "status"))

	patch := core.StudentPatch{
		Email:         str("email"),
		Name:          str("name"),
		Company:       str("company"),
		PurchaseDate:  str("purchaseDate"),
		AccessLevel:   &access,
		Status:        &status,
		Notes:         str("notes"),
		SlackInvited:  boolean("slackInvited"),
		CalendarAdded: boolean("calendarAdded"),
	}
	if formBool(r, "syncCohorts") {
		ids := formList(r, "cohortIds")
		if ids == nil {
			ids = []string{}
		}
		patch.CohortIDs = &ids
	}
	return patch
}

// handleAdminSaveStudent runs the two-phase save. When the profile saves
// but some enrollments fail, the page says so rather than reporting
// success or a plain error.
func (s *Server) handleAdminSaveStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studentID")
	target := "/admin/students/" + id
	if err := r.ParseForm(); err != nil {
		s.badRequest(w, r, "invalid form")
		return
	}

	res, err := s.service.SaveStudent(r.Context(), id, studentPatchFromForm(r))
	switch {
	case core.IsEnrollmentSyncError(err):
		msg := "Profile saved, but " + strconv.Itoa(len(res.Sync.Failed)) + " cohort change(s) failed. Review the cohorts and save again."
		s.redirect(w, r, nil, target, msg, "error")
	case err != nil:
		s.flashError(w, r, nil, target, err)
	case !res.ProfileChanged && len(res.Sync.Enrolled) == 0 && len(res.Sync.Unenrolled) == 0:
		s.redirect(w, r, nil, target, "No changes.", "ok")
	default:
		s.redirect(w, r, nil, target, "Student saved.", "ok")
	}
}

func (s *Server) handleAdminGrantCredits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studentID")
	target := "/admin/students/" + id
	credits, err := strconv.Atoi(formString(r, "credits"))
	if err != nil {
		s.redirect(w, r, nil, target, "Credits must be a number.", "error")
		return
	}
	grant := core.ToolGrant{ToolSlug: formString(r, "toolSlug"), Credits: credits}
	if err := s.service.GrantToolCredits(r.Context(), id, grant); err != nil {
		s.flashError(w, r, nil, target, err)
		return
	}
	s.redirect(w, r, nil, target, "Credits granted.", "ok")
}

func (s *Server) handleAdminDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studentID")
	if err := s.service.DeleteStudent(r.Context(), id); err != nil {
		s.flashError(w, r, nil, "/admin/students/"+id, err)
		return
	}
	s.redirect(w, r, nil, "/admin/students", "Student deleted.", "ok")
}

func (s *Server) handleInvitesPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d := views.InvitesData{
		CohortID: r.URL.Query().Get("cohort"),
		BaseURL:  s.service.Config().BaseURL,
	}
	var err error
	if d.Invites, err = s.service.ListInviteCodes(ctx, d.CohortID); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Cohorts, err = s.service.ListCohorts(ctx); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Configs, err = s.service.ListEnrollmentConfigs(ctx); err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPage(w, r, nil, http.StatusOK, "Invite codes", func(p views.Page) templ.Component {
		return views.Invites(p, d)
	})
}

func (s *Server) handleAdminCreateInvite(w http.ResponseWriter, r *http.Request) {
	ic, err := inviteFromForm(r)
	target := "/admin/invites?cohort=" + ic.CohortID
	if err != nil {
		s.flashError(w, r, nil, target, err)
		return
	}
	view, err := s.service.CreateInviteCode(r.Context(), ic)
	if err != nil {
		s.flashError(w, r, nil, target, err)
		return
	}
	s.redirect(w, r, nil, target, "Created code "+view.Code+".", "ok")
}

func inviteFromForm(r *http.Request) (core.InviteCode, error) {
	ic := core.InviteCode{
		CohortID:    formString(r, "cohortId"),
		Code:        formString(r, "code"),
		Label:       formString(r, "label"),
		AccessLevel: core.AccessLevel(formString(r, "accessLevel")),
	}
	var err error
	if ic.MaxUses, err = formInt(r, "maxUses"); err != nil {
		return ic, err
	}
	if ic.ExpiresAt, err = formDate(r, "expiresAt"); err != nil {
		return ic, err
	}
	if ic.ExpiresAt != nil {
		// A date means "through the end of that day".
		end := ic.ExpiresAt.AddDate(0, 0, 1).Add(-1)
		ic.ExpiresAt = &end
	}
	if ic.ToolGrants, err = parseToolGrants(formString(r, "toolGrants")); err != nil {
		return ic, err
	}
	return ic, nil
}

func (s *Server) handleAdminToggleInvite(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.ToggleInviteCode(r.Context(), chi.URLParam(r, "inviteID"))
	if err != nil {
		s.flashError(w, r, nil, "/admin/invites", err)
		return
	}
	s.redirect(w, r, nil, "/admin/invites?cohort="+view.CohortID,
		"Code "+view.Code+" is now "+string(view.Status)+".", "ok")
}

func (s *Server) handleAuditPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.AuditFilter{
		Action:   core.AuditAction(q.Get("action")),
		CohortID: q.Get("cohortId"),
		Limit:    auditPageSize,
		Offset:   queryInt(r, "offset", 0),
	}
	entries, err := s.service.AuditLog(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPage(w, r, nil, http.StatusOK, "Audit log", func(p views.Page) templ.Component {
		return views.AuditLog(p, entries, filter)
	})
}
