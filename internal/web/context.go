package web

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/gorilla/csrf"

	"github.com/JonMunkholm/bootcamp/internal/settings"
	"github.com/JonMunkholm/bootcamp/internal/web/views"
)

// visit is the visitor's session for one request. Handlers load it once,
// change it, and let renderPage or redirect save it before writing.
type visit struct {
	*settings.Session
	kv *settings.CookieKV
}

func (s *Server) visit(r *http.Request) *visit {
	sess, kv := settings.Load(s.sessions, r)
	return &visit{Session: sess, kv: kv}
}

func (v *visit) save(w http.ResponseWriter, r *http.Request) {
	if err := v.kv.Save(r, w); err != nil {
		slog.Error("session save failed", "error", err, "path", r.URL.Path)
	}
}

// page builds the layout data. It consumes the pending flash message.
func (s *Server) page(r *http.Request, v *visit, title string) views.Page {
	p := views.Page{
		Title:     title,
		Theme:     string(v.Theme()),
		CSRFField: string(csrf.TemplateField(r)),
		Admin:     v.Admin(),
	}
	if !s.cfg.Security.RequireAuth && strings.HasPrefix(r.URL.Path, "/admin") {
		p.Admin = "local"
	}
	if _, email, ok := v.Student(); ok {
		p.Student = email
	}
	p.Flash, p.FlashKind = v.TakeFlash()
	return p
}

// renderPage saves the session and writes body inside the layout. A nil
// v loads the session from the request.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, v *visit, status int, title string, body func(views.Page) templ.Component) {
	if v == nil {
		v = s.visit(r)
	}
	p := s.page(r, v, title)
	v.save(w, r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := views.Layout(p, body(p)).Render(r.Context(), w); err != nil {
		slog.Error("render failed", "error", err, "path", r.URL.Path)
	}
}

// redirect saves the session with an optional flash message and sends
// the browser to target with 303 See Other.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, v *visit, target, flash, kind string) {
	if v == nil {
		v = s.visit(r)
	}
	if flash != "" {
		v.SetFlash(flash, kind)
	}
	v.save(w, r)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	return next
}
