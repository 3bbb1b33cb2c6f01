package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

func (s *Server) handleListCohorts(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("summary") == "true" {
		summaries, err := s.service.CohortSummaries(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, summaries)
		return
	}
	cohorts, err := s.service.ListCohorts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, cohorts)
}

func (s *Server) handleCreateCohort(w http.ResponseWriter, r *http.Request) {
	var c core.Cohort
	if err := decodeJSON(w, r, &c); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.service.CreateCohort(r.Context(), c)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, created)
}

func (s *Server) handleGetCohort(w http.ResponseWriter, r *http.Request) {
	c, err := s.service.GetCohort(r.Context(), chi.URLParam(r, "cohortID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, c)
}

func (s *Server) handleUpdateCohort(w http.ResponseWriter, r *http.Request) {
	var c core.Cohort
	if err := decodeJSON(w, r, &c); err != nil {
		s.fail(w, r, err)
		return
	}
	c.ID = chi.URLParam(r, "cohortID")
	updated, err := s.service.UpdateCohort(r.Context(), c)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, updated)
}

func (s *Server) handleDeleteCohort(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteCohort(r.Context(), chi.URLParam(r, "cohortID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetCurriculum(w http.ResponseWriter, r *http.Request) {
	tree, err := s.service.Curriculum(r.Context(), chi.URLParam(r, "cohortID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, tree)
}

func (s *Server) handleCohortStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.service.CohortStudents(r.Context(), chi.URLParam(r, "cohortID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, students)
}

// handleExportCSV downloads the curriculum in the import format.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	cohort, data, err := s.service.ExportCurriculumCSV(r.Context(), chi.URLParam(r, "cohortID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-curriculum.csv"`, cohort.Slug))
	w.Write([]byte(data))
}

// handleExportPDF downloads a printable curriculum outline.
func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	cohort, data, err := s.service.ExportCurriculumPDF(r.Context(), chi.URLParam(r, "cohortID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-curriculum.pdf"`, cohort.Slug))
	w.Write(data)
}

// ---- Curriculum nodes ----

func (s *Server) handleCreateWeek(w http.ResponseWriter, r *http.Request) {
	var wk core.Week
	if err := decodeJSON(w, r, &wk); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.service.CreateWeek(r.Context(), wk)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateWeek(w http.ResponseWriter, r *http.Request) {
	var wk core.Week
	if err := decodeJSON(w, r, &wk); err != nil {
		s.fail(w, r, err)
		return
	}
	wk.ID = chi.URLParam(r, "id")
	if err := s.service.UpdateWeek(r.Context(), wk); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, wk)
}

func (s *Server) handleDeleteWeek(w http.ResponseWriter, r *http.Request) {
	s.deleted(w, r, s.service.DeleteWeek(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	var l core.Lesson
	if err := decodeJSON(w, r, &l); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.service.CreateLesson(r.Context(), l)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateLesson(w http.ResponseWriter, r *http.Request) {
	var l core.Lesson
	if err := decodeJSON(w, r, &l); err != nil {
		s.fail(w, r, err)
		return
	}
	l.ID = chi.URLParam(r, "id")
	if err := s.service.UpdateLesson(r.Context(), l); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, l)
}

func (s *Server) handleDeleteLesson(w http.ResponseWriter, r *http.Request) {
	s.deleted(w, r, s.service.DeleteLesson(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleCreateContentItem(w http.ResponseWriter, r *http.Request) {
	var item core.ContentItem
	if err := decodeJSON(w, r, &item); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.service.CreateContentItem(r.Context(), item)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateContentItem(w http.ResponseWriter, r *http.Request) {
	var item core.ContentItem
	if err := decodeJSON(w, r, &item); err != nil {
		s.fail(w, r, err)
		return
	}
	item.ID = chi.URLParam(r, "id")
	updated, err := s.service.UpdateContentItem(r.Context(), item)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, updated)
}

func (s *Server) handleDeleteContentItem(w http.ResponseWriter, r *http.Request) {
	s.deleted(w, r, s.service.DeleteContentItem(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleCreateActionItem(w http.ResponseWriter, r *http.Request) {
	var a core.ActionItem
	if err := decodeJSON(w, r, &a); err != nil {
		s.fail(w, r, err)
		return
	}
	created, err := s.service.CreateActionItem(r.Context(), a)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateActionItem(w http.ResponseWriter, r *http.Request) {
	var a core.ActionItem
	if err := decodeJSON(w, r, &a); err != nil {
		s.fail(w, r, err)
		return
	}
	a.ID = chi.URLParam(r, "id")
	if err := s.service.UpdateActionItem(r.Context(), a); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, a)
}

func (s *Server) handleDeleteActionItem(w http.ResponseWriter, r *http.Request) {
	s.deleted(w, r, s.service.DeleteActionItem(r.Context(), chi.URLParam(r, "id")))
}

// deleted writes the response of a delete call.
func (s *Server) deleted(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}
