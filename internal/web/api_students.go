package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

// syncWarning is returned with 200 when a student saved but some
// enrollment changes did not.
type syncWarning struct {
	Warning string `json:"warning"`
	Code    string `json:"code"`
}

func newSyncWarning(err error) *syncWarning {
	msg := core.MapError(err)
	return &syncWarning{Warning: msg.Message + " " + msg.Action, Code: msg.Code}
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.service.ListStudents(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, students)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.GetStudent(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, st)
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		core.Student
		CohortIDs []string `json:"cohortIds"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.service.CreateStudent(r.Context(), req.Student, req.CohortIDs)
	switch {
	case core.IsEnrollmentSyncError(err):
		writeJSONStatus(w, http.StatusCreated, struct {
			core.StudentWithCohorts
			*syncWarning
		}{created, newSyncWarning(err)})
	case err != nil:
		s.fail(w, r, err)
	default:
		writeJSONStatus(w, http.StatusCreated, created)
	}
}

// handleSaveStudent applies a profile patch and, when cohortIds is given,
// reconciles enrollments to exactly that set. A failed reconciliation
// still answers 200 because the profile part is committed; the body
// carries the per-cohort failures and a warning.
func (s *Server) handleSaveStudent(w http.ResponseWriter, r *http.Request) {
	var patch core.StudentPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.service.SaveStudent(r.Context(), chi.URLParam(r, "studentID"), patch)
	switch {
	case core.IsEnrollmentSyncError(err):
		writeJSON(w, struct {
			core.SaveStudentResult
			*syncWarning
		}{res, newSyncWarning(err)})
	case err != nil:
		s.fail(w, r, err)
	default:
		writeJSON(w, res)
	}
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	s.deleted(w, r, s.service.DeleteStudent(r.Context(), chi.URLParam(r, "studentID")))
}

func (s *Server) handleListCredits(w http.ResponseWriter, r *http.Request) {
	credits, err := s.service.ListToolCredits(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, credits)
}

func (s *Server) handleGrantCredits(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "studentID")
	var grant core.ToolGrant
	if err := decodeJSON(w, r, &grant); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.GrantToolCredits(r.Context(), id, grant); err != nil {
		s.fail(w, r, err)
		return
	}
	credits, err := s.service.ListToolCredits(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, credits)
}

func (s *Server) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	sv, err := s.service.GetSurvey(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, sv)
}

func (s *Server) handlePutSurvey(w http.ResponseWriter, r *http.Request) {
	var sv core.Survey
	if err := decodeJSON(w, r, &sv); err != nil {
		s.fail(w, r, err)
		return
	}
	sv.StudentID = chi.URLParam(r, "studentID")
	if err := s.service.SaveSurvey(r.Context(), sv); err != nil {
		s.fail(w, r, err)
		return
	}
	saved, err := s.service.GetSurvey(r.Context(), sv.StudentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, saved)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Enroll(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "cohortID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "enrolled"})
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Unenroll(r.Context(), chi.URLParam(r, "studentID"), chi.URLParam(r, "cohortID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "unenrolled"})
}
