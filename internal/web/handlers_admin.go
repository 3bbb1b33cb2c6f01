package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/logging"
	"github.com/JonMunkholm/bootcamp/internal/web/views"
)

// flashError logs err and returns the admin to target with its user
// message.
func (s *Server) flashError(w http.ResponseWriter, r *http.Request, v *visit, target string, err error) {
	msg := core.MapError(err)
	logging.FromContext(r.Context()).Warn("admin action failed",
		"path", r.URL.Path,
		"error", err.Error(),
		"code", msg.Code,
	)
	text := msg.Message
	if msg.Action != "" {
		text += " " + msg.Action
	}
	s.redirect(w, r, v, target, text, "error")
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	cohorts, err := s.service.CohortSummaries(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderPage(w, r, nil, http.StatusOK, "Cohorts", func(p views.Page) templ.Component {
		return views.Dashboard(p, cohorts)
	})
}

func (s *Server) handleAdminCreateCohort(w http.ResponseWriter, r *http.Request) {
	c, err := cohortFromForm(r)
	if err != nil {
		s.flashError(w, r, nil, "/admin", err)
		return
	}
	created, err := s.service.CreateCohort(r.Context(), c)
	if err != nil {
		s.flashError(w, r, nil, "/admin", err)
		return
	}
	s.redirect(w, r, nil, "/admin/cohorts/"+created.ID, "Cohort created.", "ok")
}

func cohortFromForm(r *http.Request) (core.Cohort, error) {
	c := core.Cohort{
		Name:        formString(r, "name"),
		Slug:        formString(r, "slug"),
		Status:      core.CohortStatus(formString(r, "status")),
		ProductKey:  formString(r, "productKey"),
		Description: formString(r, "description"),
	}
	var err error
	if c.StartDate, err = formDate(r, "startDate"); err != nil {
		return c, err
	}
	if c.EndDate, err = formDate(r, "endDate"); err != nil {
		return c, err
	}
	return c, nil
}

// cohortDetail loads everything the cohort page shows.
func (s *Server) cohortDetail(ctx context.Context, id string) (views.CohortDetail, error) {
	var d views.CohortDetail
	var err error
	if d.Cohort, err = s.service.GetCohort(ctx, id); err != nil {
		return d, err
	}
	if d.Tree, err = s.service.Curriculum(ctx, id); err != nil {
		return d, err
	}
	if d.Invites, err = s.service.ListInviteCodes(ctx, id); err != nil {
		return d, err
	}
	if d.Students, err = s.service.CohortStudents(ctx, id); err != nil {
		return d, err
	}
	if d.Cohorts, err = s.service.ListCohorts(ctx); err != nil {
		return d, err
	}
	return d, nil
}

// renderCohort shows the cohort page with optional previews filled in.
// A non-nil previewErr is shown as the flash message.
func (s *Server) renderCohort(w http.ResponseWriter, r *http.Request, fill func(*views.CohortDetail), previewErr error) {
	id := chi.URLParam(r, "cohortID")
	d, err := s.cohortDetail(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if fill != nil {
		fill(&d)
	}
	v := s.visit(r)
	status := http.StatusOK
	if previewErr != nil {
		status = statusFor(previewErr)
		msg := core.MapError(previewErr)
		v.SetFlash(msg.Message+" "+msg.Action, "error")
		logging.FromContext(r.Context()).Warn("preview failed", "cohort_id", id, "error", previewErr)
	}
	s.renderPage(w, r, v, status, d.Cohort.Name, func(p views.Page) templ.Component {
		return views.CohortPage(p, d)
	})
}

func (s *Server) handleCohortPage(w http.ResponseWriter, r *http.Request) {
	s.renderCohort(w, r, nil, nil)
}

func (s *Server) handleAdminDeleteCohort(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cohortID")
	if !formBool(r, "confirm") {
		s.redirect(w, r, nil, "/admin/cohorts/"+id, "Tick the confirmation box to delete the cohort.", "error")
		return
	}
	if err := s.service.DeleteCohort(r.Context(), id); err != nil {
		s.flashError(w, r, nil, "/admin/cohorts/"+id, err)
		return
	}
	s.redirect(w, r, nil, "/admin", "Cohort deleted.", "ok")
}

func (s *Server) handleAdminCurriculumPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cohortID")
	text, err := s.readCSVForm(w, r)
	if err != nil {
		s.renderCohort(w, r, nil, err)
		return
	}
	preview, err := s.service.PreviewCurriculumImport(r.Context(), id, text)
	if err != nil {
		s.renderCohort(w, r, nil, err)
		return
	}
	s.renderCohort(w, r, func(d *views.CohortDetail) {
		d.ImportPreview = &preview
		d.ImportCSV = text
	}, nil)
}

func (s *Server) handleAdminCurriculumImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "cohortID")
	text, err := s.readCSVForm(w, r)
	if err != nil {
		s.flashError(w, r, nil, "/admin/cohorts/"+id, err)
		return
	}
	jobID, err := s.service.StartCurriculumImport(r.Context(), id, text)
	if err != nil {
		s.flashError(w, r, nil, "/admin/cohorts/"+id, err)
		return
	}
	s.redirect(w, r, nil, "/admin/imports/"+jobID, "", "")
}

func copyOptionsFromForm(r *http.Request) core.CopyOptions {
	return core.CopyOptions{
		SourceCohortID:    formString(r, "sourceCohortId"),
		TargetCohortID:    chi.URLParam(r, "cohortID"),
		ExcludeRecordings: formBool(r, "excludeRecordings"),
	}
}

func (s *Server) handleAdminCopyPreview(w http.ResponseWriter, r *http.Request) {
	opts := copyOptionsFromForm(r)
	fill := func(d *views.CohortDetail) {
		d.CopySource = opts.SourceCohortID
		d.ExcludeRecordings = opts.ExcludeRecordings
	}
	preview, err := s.service.PreviewCurriculumCopy(r.Context(), opts)
	if err != nil {
		s.renderCohort(w, r, fill, err)
		return
	}
	s.renderCohort(w, r, func(d *views.CohortDetail) {
		fill(d)
		d.CopyPreview = &preview
	}, nil)
}

func (s *Server) handleAdminCopy(w http.ResponseWriter, r *http.Request) {
	opts := copyOptionsFromForm(r)
	jobID, err := s.service.StartCurriculumCopy(r.Context(), opts)
	if err != nil {
		s.flashError(w, r, nil, "/admin/cohorts/"+opts.TargetCohortID, err)
		return
	}
	s.redirect(w, r, nil, "/admin/imports/"+jobID, "", "")
}

// handleJobPage shows a running import with a live progress bar, or its
// result once finished.
func (s *Server) handleJobPage(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	progress, err := s.service.GetJobProgress(jobID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var result *core.JobResult
	if progress.Phase.Done() {
		// The phase turns terminal just before the result is published.
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		result, err = s.service.GetJobResult(ctx, jobID)
		cancel()
		if err != nil {
			slog.Warn("job result not ready", "import_id", jobID, "error", err)
		}
	}

	back := "/admin"
	switch {
	case progress.Kind == core.JobStudentImport:
		back = "/admin/students"
	case progress.CohortID != "":
		back = "/admin/cohorts/" + progress.CohortID
	}
	s.renderPage(w, r, nil, http.StatusOK, "Import", func(p views.Page) templ.Component {
		return views.Job(p, progress, result, back)
	})
}
