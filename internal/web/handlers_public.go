package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/a-h/templ"
	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/web/views"
)

// handleHealth reports database reachability and import capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.service.Ping(ctx); err != nil {
		slog.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	writeJSONStatus(w, code, map[string]any{
		"status":  status,
		"imports": s.service.ImportStatus(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	switch {
	case v.Admin() != "" || !s.cfg.Security.RequireAuth:
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	default:
		if _, _, ok := v.Student(); ok {
			http.Redirect(w, r, "/learn", http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/bootcamp/register", http.StatusSeeOther)
	}
}

// handleSetTheme stores the colour scheme and returns to the page the
// form was posted from.
func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	if !v.SetTheme(r.FormValue("theme")) {
		s.badRequest(w, r, "unknown theme")
		return
	}
	target := "/"
	if ref, err := url.Parse(r.Referer()); err == nil && (ref.Host == "" || ref.Host == r.Host) {
		target = safeNext(ref.RequestURI(), "/")
	}
	s.redirect(w, r, v, target, "", "")
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	msg := ""
	if !s.cfg.Security.SessionAuthEnabled() {
		msg = "Password sign-in is not configured on this server."
	}
	next := r.URL.Query().Get("next")
	s.renderPage(w, r, nil, http.StatusOK, "Sign in", func(p views.Page) templ.Component {
		return views.Login(p, next, msg)
	})
}

// handleLogin checks the admin user and bcrypt password hash.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.FormValue("next"), "/admin")
	user := formString(r, "username")

	if !s.checkPassword(user, r.FormValue("password")) {
		slog.Warn("login failed", "user", user, "ip", r.RemoteAddr)
		s.renderPage(w, r, nil, http.StatusUnauthorized, "Sign in", func(p views.Page) templ.Component {
			return views.Login(p, next, "Invalid user or password.")
		})
		return
	}

	v := s.visit(r)
	v.SetAdmin(user)
	slog.Info("admin signed in", "user", user, "ip", r.RemoteAddr)
	s.redirect(w, r, v, next, "", "")
}

func (s *Server) checkPassword(user, password string) bool {
	sec := s.cfg.Security
	if !sec.SessionAuthEnabled() || user == "" || password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(sec.AdminUser)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(sec.AdminPasswordHash), []byte(password)) == nil
	return userOK && passOK
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	v.SetAdmin("")
	v.ClearStudent()
	s.redirect(w, r, v, "/", "Signed out.", "ok")
}

// handleRegisterPage shows the registration form, looking up the code
// from the link so an unavailable code is explained before the learner
// types anything. A signed-in learner already in the code's cohort goes
// straight to onboarding, whatever the code's status.
func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	v := s.visit(r)
	d := views.RegisterData{Code: core.NormalizeInviteCode(r.URL.Query().Get("code"))}
	if d.Code != "" {
		s.describeInvite(r.Context(), &d)
		if id, _, ok := v.Student(); ok && d.CohortID != "" {
			st, err := s.service.GetStudent(r.Context(), id)
			if err == nil && slices.Contains(st.CohortIDs, d.CohortID) {
				s.redirect(w, r, v, "/onboarding/"+d.CohortID, "You're already registered for this cohort.", "ok")
				return
			}
		}
	}
	s.renderPage(w, r, v, http.StatusOK, "Register", func(p views.Page) templ.Component {
		return views.Register(p, d)
	})
}

func (s *Server) describeInvite(ctx context.Context, d *views.RegisterData) {
	view, err := s.service.LookupInvite(ctx, d.Code)
	switch {
	case err == nil, errors.Is(err, core.ErrInviteUnavailable):
		d.Status = view.DisplayStatus
		d.CohortID = view.CohortID
		if c, err := s.service.GetCohort(ctx, view.CohortID); err == nil {
			d.CohortName = c.Name
		}
	case errors.Is(err, core.ErrNotFound):
		d.Error = "We don't recognise that invite code."
	default:
		slog.Error("invite lookup failed", "code", d.Code, "error", err)
	}
}

// handleRegister redeems an invite code and signs the learner in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req := core.RedeemRequest{
		Code:  formString(r, "code"),
		Email: formString(r, "email"),
		Name:  formString(r, "name"),
	}

	red, err := s.service.RedeemInvite(r.Context(), req)
	if err != nil {
		d := views.RegisterData{Code: core.NormalizeInviteCode(req.Code), Email: req.Email, Name: req.Name}
		status := statusFor(err)
		if errors.Is(err, core.ErrInviteUnavailable) || errors.Is(err, core.ErrNotFound) {
			s.describeInvite(r.Context(), &d)
		}
		if d.Error == "" && (d.Status == "" || d.Status == core.DisplayActive) {
			d.Error = core.MapError(err).Message
		}
		if status >= 500 {
			slog.Error("redeem failed", "code", req.Code, "error", err)
		}
		s.renderPage(w, r, nil, status, "Register", func(p views.Page) templ.Component {
			return views.Register(p, d)
		})
		return
	}

	v := s.visit(r)
	v.SetStudent(red.StudentID, strings.ToLower(req.Email))
	msg := "Welcome! You're registered."
	if red.AlreadyEnrolled {
		msg = "Welcome back. You were already registered for this cohort."
	}
	s.redirect(w, r, v, "/onboarding/"+red.CohortID, msg, "ok")
}

// handleJoin sends a product link to the invite code configured for it.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	product := r.URL.Query().Get("product")
	if product == "" {
		s.badRequest(w, r, "missing product")
		return
	}
	code, err := s.service.ResolveJoin(r.Context(), product)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/bootcamp/register?code="+url.QueryEscape(code), http.StatusSeeOther)
}
