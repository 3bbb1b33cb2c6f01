// Package web provides the HTTP server: the admin portal, the learner
// pages and the JSON API.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"github.com/JonMunkholm/bootcamp/internal/config"
	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/settings"
	"github.com/JonMunkholm/bootcamp/internal/web/middleware"
)

// Server is the HTTP server for the portal.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	sessions sessions.Store
	router   *chi.Mux
	server   *http.Server
	limiters []*middleware.RateLimiter
}

// NewServer creates a Server. The session and CSRF keys come from cfg;
// when unset, random keys are generated and sessions do not survive a
// restart.
func NewServer(service *core.Service, cfg *config.Config) (*Server, error) {
	hashKey := []byte(cfg.Security.SessionSecret)
	if len(hashKey) == 0 {
		slog.Warn("SESSION_SECRET not set, sessions will not survive a restart")
		hashKey = settings.RandomKey(32)
	}
	store, err := settings.NewCookieStore(hashKey, nil, cfg.Security.SecureCookies, cfg.Security.SessionMaxAge)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	s := &Server{
		service:  service,
		cfg:      cfg,
		sessions: store,
		router:   chi.NewRouter(),
	}

	csrfKey := []byte(cfg.Security.CSRFKey)
	if len(csrfKey) == 0 {
		csrfKey = settings.RandomKey(32)
	}
	if len(csrfKey) != 32 {
		return nil, fmt.Errorf("CSRF_KEY must be 32 bytes, got %d", len(csrfKey))
	}

	s.setupMiddleware()
	s.setupRoutes(s.csrfProtect(csrfKey))
	return s, nil
}

// csrfProtect wraps gorilla/csrf. Over plain HTTP the request has to be
// marked as such or every form post fails the Referer check.
func (s *Server) csrfProtect(key []byte) func(http.Handler) http.Handler {
	protect := csrf.Protect(key,
		csrf.Secure(s.cfg.Security.SecureCookies),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.handleCSRFFailure)),
	)
	if s.cfg.Security.SecureCookies {
		return protect
	}
	return func(next http.Handler) http.Handler {
		h := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))

	general := s.limiter(s.cfg.Rate.RequestsPerMinute)
	s.router.Use(general.Middleware)
	s.router.Use(middleware.RequestMetadata)
}

// limiter creates a per-IP limiter that Shutdown stops. With rate
// limiting disabled it lets everything through.
func (s *Server) limiter(perMinute int) *middleware.RateLimiter {
	if !s.cfg.Rate.Enabled {
		perMinute = 0
	}
	rl := middleware.NewRateLimiter(perMinute, time.Minute)
	s.limiters = append(s.limiters, rl)
	return rl
}

func (s *Server) setupRoutes(protect func(http.Handler) http.Handler) {
	reqTimeout := s.cfg.Server.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = 60 * time.Second
	}
	timeout := chimw.Timeout(reqTimeout)
	compress := chimw.Compress(5)
	importLimit := s.limiter(s.cfg.Rate.ImportLimit).Middleware
	redeemLimit := s.limiter(s.cfg.Rate.RedeemLimit).Middleware

	s.router.Get("/healthz", s.handleHealth)

	// Public and learner pages.
	s.router.Group(func(r chi.Router) {
		r.Use(timeout, compress, protect)

		r.Get("/", s.handleRoot)
		r.Post("/theme", s.handleSetTheme)
		r.Get("/login", s.handleLoginPage)
		r.With(redeemLimit).Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Get("/bootcamp/register", s.handleRegisterPage)
		r.With(redeemLimit).Post("/bootcamp/register", s.handleRegister)
		r.Get("/bootcamp/join", s.handleJoin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireStudent(s.sessions))
			r.Get("/onboarding/{cohortID}", s.handleOnboarding)
			r.Post("/onboarding/{cohortID}/survey", s.handleOnboardingSurvey)
			r.Post("/onboarding/{cohortID}/complete", s.handleOnboardingComplete)
			r.Get("/learn", s.handleLearnIndex)
			r.Get("/learn/{cohortID}", s.handleLearn)
			r.Post("/learn/items/{itemID}/complete", s.handleToggleComplete)
		})
	})

	// Admin pages.
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(timeout, compress, protect)
		r.Use(middleware.RequireAdmin(&s.cfg.Security, s.sessions))

		r.Get("/", s.handleDashboard)
		r.Post("/cohorts", s.handleAdminCreateCohort)
		r.Get("/cohorts/{cohortID}", s.handleCohortPage)
		r.Post("/cohorts/{cohortID}/delete", s.handleAdminDeleteCohort)
		r.With(importLimit).Post("/cohorts/{cohortID}/import/preview", s.handleAdminCurriculumPreview)
		r.With(importLimit).Post("/cohorts/{cohortID}/import", s.handleAdminCurriculumImport)
		r.With(importLimit).Post("/cohorts/{cohortID}/copy/preview", s.handleAdminCopyPreview)
		r.With(importLimit).Post("/cohorts/{cohortID}/copy", s.handleAdminCopy)
		r.Get("/imports/{jobID}", s.handleJobPage)

		r.Get("/students", s.handleStudentsPage)
		r.Post("/students", s.handleAdminCreateStudent)
		r.With(importLimit).Post("/students/import/preview", s.handleAdminStudentPreview)
		r.With(importLimit).Post("/students/import", s.handleAdminStudentImport)
		r.Get("/students/{studentID}", s.handleStudentEditPage)
		r.Post("/students/{studentID}", s.handleAdminSaveStudent)
		r.Post("/students/{studentID}/credits", s.handleAdminGrantCredits)
		r.Post("/students/{studentID}/delete", s.handleAdminDeleteStudent)

		r.Get("/invites", s.handleInvitesPage)
		r.Post("/invites", s.handleAdminCreateInvite)
		r.Post("/invites/{inviteID}/toggle", s.handleAdminToggleInvite)

		r.Get("/audit", s.handleAuditPage)
	})

	// JSON API.
	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIAuth(&s.cfg.Security, s.sessions))
		r.Use(protect)

		// Progress streams stay open for the length of an import, so they
		// get neither the timeout nor compression.
		r.Get("/imports/{jobID}/progress", s.handleImportProgress)

		r.Group(func(r chi.Router) {
			r.Use(timeout, compress)

			r.Get("/status", s.handleImportStatus)

			r.Get("/cohorts", s.handleListCohorts)
			r.Post("/cohorts", s.handleCreateCohort)
			r.Get("/cohorts/{cohortID}", s.handleGetCohort)
			r.Put("/cohorts/{cohortID}", s.handleUpdateCohort)
			r.Delete("/cohorts/{cohortID}", s.handleDeleteCohort)
			r.Get("/cohorts/{cohortID}/curriculum", s.handleGetCurriculum)
			r.Get("/cohorts/{cohortID}/students", s.handleCohortStudents)
			r.Get("/cohorts/{cohortID}/export.csv", s.handleExportCSV)
			r.Get("/cohorts/{cohortID}/export.pdf", s.handleExportPDF)

			r.Post("/weeks", s.handleCreateWeek)
			r.Put("/weeks/{id}", s.handleUpdateWeek)
			r.Delete("/weeks/{id}", s.handleDeleteWeek)
			r.Post("/lessons", s.handleCreateLesson)
			r.Put("/lessons/{id}", s.handleUpdateLesson)
			r.Delete("/lessons/{id}", s.handleDeleteLesson)
			r.Post("/content-items", s.handleCreateContentItem)
			r.Put("/content-items/{id}", s.handleUpdateContentItem)
			r.Delete("/content-items/{id}", s.handleDeleteContentItem)
			r.Post("/action-items", s.handleCreateActionItem)
			r.Put("/action-items/{id}", s.handleUpdateActionItem)
			r.Delete("/action-items/{id}", s.handleDeleteActionItem)

			r.Get("/students", s.handleListStudents)
			r.Post("/students", s.handleCreateStudent)
			r.Get("/students/{studentID}", s.handleGetStudent)
			r.Put("/students/{studentID}", s.handleSaveStudent)
			r.Patch("/students/{studentID}", s.handleSaveStudent)
			r.Delete("/students/{studentID}", s.handleDeleteStudent)
			r.Get("/students/{studentID}/credits", s.handleListCredits)
			r.Post("/students/{studentID}/credits", s.handleGrantCredits)
			r.Get("/students/{studentID}/survey", s.handleGetSurvey)
			r.Put("/students/{studentID}/survey", s.handlePutSurvey)
			r.Put("/students/{studentID}/enrollments/{cohortID}", s.handleEnroll)
			r.Delete("/students/{studentID}/enrollments/{cohortID}", s.handleUnenroll)

			r.Get("/invites", s.handleListInvites)
			r.Post("/invites", s.handleCreateInvite)
			r.Get("/invites/{inviteID}", s.handleGetInvite)
			r.Put("/invites/{inviteID}", s.handleUpdateInvite)
			r.Post("/invites/{inviteID}/toggle", s.handleToggleInvite)
			r.Delete("/invites/{inviteID}", s.handleDeleteInvite)

			r.Get("/enrollment-configs", s.handleListEnrollmentConfigs)
			r.Put("/enrollment-configs/{productKey}", s.handleUpsertEnrollmentConfig)
			r.Delete("/enrollment-configs/{productKey}", s.handleDeleteEnrollmentConfig)

			r.Get("/settings", s.handleListSettings)
			r.Put("/settings/{key}", s.handlePutSetting)

			r.Get("/audit-log", s.handleAuditLog)

			r.Get("/importers", s.handleListImporters)
			r.Get("/importers/{kind}/sample", s.handleImporterSample)
			r.With(importLimit).Post("/importers/{kind}/preview", s.handleImportPreview)
			r.With(importLimit).Post("/importers/{kind}/start", s.handleImportStart)
			r.With(importLimit).Post("/cohorts/{cohortID}/import/curriculum/preview", s.handleCurriculumPreview)
			r.With(importLimit).Post("/cohorts/{cohortID}/import/curriculum", s.handleCurriculumStart)
			r.With(importLimit).Post("/students/import/preview", s.handleStudentImportPreview)
			r.With(importLimit).Post("/students/import", s.handleStudentImportStart)
			r.With(importLimit).Post("/cohorts/{cohortID}/copy/preview", s.handleCopyPreview)
			r.With(importLimit).Post("/cohorts/{cohortID}/copy", s.handleCopyStart)
			r.Get("/imports/{jobID}", s.handleImportProgressSnapshot)
			r.Get("/imports/{jobID}/result", s.handleImportResult)
			r.Post("/imports/{jobID}/cancel", s.handleCancelImport)
		})
	})
}

// Start begins listening for HTTP requests. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:              sc.Addr(),
		Handler:           s.router,
		ReadTimeout:       sc.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limiters {
		rl.Close()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
