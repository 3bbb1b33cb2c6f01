package web

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/web/views"
)

// learner returns the signed-in student with their cohorts. A student
// deleted since sign-in is signed out and sent back to registration.
func (s *Server) learner(w http.ResponseWriter, r *http.Request, v *visit) (core.StudentWithCohorts, bool) {
	id, _, _ := v.Student()
	st, err := s.service.GetStudent(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		v.ClearStudent()
		s.redirect(w, r, v, "/bootcamp/register", "Please register again.", "error")
		return st, false
	}
	if err != nil {
		s.fail(w, r, err)
		return st, false
	}
	return st, true
}

func (s *Server) handleOnboarding(w http.ResponseWriter, r *http.Request) {
	cohortID := chi.URLParam(r, "cohortID")
	v := s.visit(r)
	studentID, _, _ := v.Student()

	step := core.OnboardingStep(r.URL.Query().Get("step"))
	if step == "" {
		step = v.OnboardingStep(cohortID)
	}

	view, err := s.service.Onboarding(r.Context(), studentID, cohortID, step)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	v.SetOnboardingStep(cohortID, view.Current)

	d := views.OnboardingData{View: view}
	if view.Index > 0 {
		d.Back = view.Steps[view.Index-1]
	}
	if view.Index < len(view.Steps)-1 {
		d.Next = view.Steps[view.Index+1]
	}
	s.renderPage(w, r, v, http.StatusOK, "Onboarding: "+view.Cohort.Name, func(p views.Page) templ.Component {
		return views.Onboarding(p, d)
	})
}

// handleOnboardingSurvey saves the survey and moves to the step after it.
// Fields named answer_<key> are kept as extra answers for the booking
// qualification rule.
func (s *Server) handleOnboardingSurvey(w http.ResponseWriter, r *http.Request) {
	cohortID := chi.URLParam(r, "cohortID")
	v := s.visit(r)
	studentID, _, _ := v.Student()
	ctx := r.Context()

	cohort, err := s.service.GetCohort(ctx, cohortID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sv, err := s.service.GetSurvey(ctx, studentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := r.ParseForm(); err != nil {
		s.badRequest(w, r, "invalid form")
		return
	}
	sv.StudentID = studentID
	sv.BusinessName = formString(r, "businessName")
	sv.Role = formString(r, "role")
	sv.Industry = formString(r, "industry")
	sv.TeamSize = formString(r, "teamSize")
	sv.RevenueRange = formString(r, "revenueRange")
	sv.Goals = formString(r, "goals")
	sv.BiggestChallenge = formString(r, "biggestChallenge")
	sv.HowHeard = formString(r, "howHeard")
	for key := range r.PostForm {
		if name, ok := strings.CutPrefix(key, "answer_"); ok && name != "" {
			if sv.Answers == nil {
				sv.Answers = make(map[string]string)
			}
			sv.Answers[name] = formString(r, key)
		}
	}

	if err := s.service.SaveSurvey(ctx, sv); err != nil {
		s.fail(w, r, err)
		return
	}

	wizard := core.NewWizard(cohort.Onboarding)
	wizard.GotoStep(core.StepSurvey)
	wizard.Next()
	v.SetOnboardingStep(cohortID, wizard.Current())
	s.redirect(w, r, v, "/onboarding/"+cohortID+"?step="+string(wizard.Current()), "Thanks, your answers are saved.", "ok")
}

func (s *Server) handleOnboardingComplete(w http.ResponseWriter, r *http.Request) {
	cohortID := chi.URLParam(r, "cohortID")
	v := s.visit(r)
	studentID, _, _ := v.Student()

	if err := s.service.CompleteOnboarding(r.Context(), studentID, cohortID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.redirect(w, r, v, "/learn/"+cohortID, "Onboarding complete.", "ok")
}

func (s *Server) handleLearnIndex(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	st, ok := s.learner(w, r, v)
	if !ok {
		return
	}
	all, err := s.service.ListCohorts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d := views.LearnIndexData{Current: v.ActiveCohortID()}
	for _, c := range all {
		if slices.Contains(st.CohortIDs, c.ID) {
			d.Cohorts = append(d.Cohorts, c)
		}
	}
	ctx := r.Context()
	if d.Current == "" {
		if d.Current, err = s.service.Setting(ctx, core.SettingDefaultCohortID, ""); err != nil {
			slog.Warn("default cohort setting unavailable", "error", err)
		}
	}
	if d.SupportEmail, err = s.service.Setting(ctx, core.SettingSupportEmail, ""); err != nil {
		slog.Warn("support email setting unavailable", "error", err)
	}
	s.renderPage(w, r, v, http.StatusOK, "My programs", func(p views.Page) templ.Component {
		return views.LearnIndex(p, d)
	})
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	cohortID := chi.URLParam(r, "cohortID")
	v := s.visit(r)
	st, ok := s.learner(w, r, v)
	if !ok {
		return
	}
	if !slices.Contains(st.CohortIDs, cohortID) {
		s.fail(w, r, core.ErrNotFound)
		return
	}

	ctx := r.Context()
	cohort, err := s.service.GetCohort(ctx, cohortID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tree, err := s.service.Curriculum(ctx, cohortID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	credits, err := s.service.ListToolCredits(ctx, st.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	v.SetActiveCohortID(cohortID)

	d := views.LearnData{
		Cohort:    cohort,
		Tree:      tree,
		Completed: make(map[string]bool),
		Credits:   make(map[string]int, len(credits)),
	}
	for _, id := range v.Progress(cohortID) {
		d.Completed[id] = true
	}
	for _, c := range credits {
		d.Credits[c.ToolSlug] = c.Credits
	}
	s.renderPage(w, r, v, http.StatusOK, cohort.Name, func(p views.Page) templ.Component {
		return views.Learn(p, d)
	})
}

// handleToggleComplete marks a content item done or not done. Progress
// lives in the learner's session.
func (s *Server) handleToggleComplete(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	cohortID := formString(r, "cohortId")
	if cohortID == "" {
		s.badRequest(w, r, "missing cohortId")
		return
	}
	v := s.visit(r)
	v.SetComplete(cohortID, itemID, formBool(r, "done"))
	s.redirect(w, r, v, "/learn/"+cohortID, "", "")
}
