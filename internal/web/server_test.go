package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/JonMunkholm/bootcamp/internal/config"
	"github.com/JonMunkholm/bootcamp/internal/core"
	_ "github.com/JonMunkholm/bootcamp/internal/core/importers"
	"github.com/JonMunkholm/bootcamp/internal/settings"
)

const (
	testAPIKey        = "test-key"
	testSessionSecret = "0123456789abcdef0123456789abcdef"
	testPassword      = "correct horse"
)

// stubStore answers the few store calls these tests make. Anything else
// panics on the nil embedded interface.
type stubStore struct {
	core.Store
	pingErr error
	cohorts []core.Cohort
}

func (s *stubStore) Ping(context.Context) error { return s.pingErr }

func (s *stubStore) ListCohorts(context.Context) ([]core.Cohort, error) {
	return s.cohorts, nil
}

func (s *stubStore) GetInviteCodeByCode(_ context.Context, code string) (core.InviteCode, error) {
	return core.InviteCode{}, fmt.Errorf("invite %s: %w", code, core.ErrNotFound)
}

func newTestServer(t *testing.T, store *stubStore, env map[string]string) *Server {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	vars := map[string]string{
		"DATABASE_URL":        "postgres://localhost/bootcamp_test",
		"API_KEYS":            testAPIKey,
		"ADMIN_PASSWORD_HASH": string(hash),
		"SESSION_SECRET":      testSessionSecret,
	}
	for k, v := range env {
		vars[k] = v
	}
	cfg, err := config.LoadFrom(config.MapLookup(vars))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	srv, err := NewServer(core.NewService(store, core.DefaultServiceConfig()), cfg)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"reachable", nil, http.StatusOK, "ok"},
		{"unreachable", errors.New("connection refused"), http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubStore{pingErr: tt.pingErr}, nil)
			rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body struct {
				Status string `json:"status"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantBody {
				t.Errorf("status field = %q, want %q", body.Status, tt.wantBody)
			}
		})
	}
}

func TestAdminRedirectsToLogin(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, nil)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/admin/students", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	want := "/login?next=" + url.QueryEscape("/admin/students")
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

func TestAPIAuthentication(t *testing.T) {
	store := &stubStore{cohorts: []core.Cohort{{ID: "c1", Name: "Spring", Slug: "spring", Status: core.CohortActive}}}
	srv := newTestServer(t, store, nil)

	tests := []struct {
		name       string
		key        string
		wantStatus int
		wantCode   string
	}{
		{"no key", "", http.StatusUnauthorized, "AUTH_MISSING_KEY"},
		{"wrong key", "nope", http.StatusForbidden, "AUTH_INVALID_KEY"},
		{"valid key", testAPIKey, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cohorts", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := serve(srv, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			if tt.wantCode == "" {
				var cohorts []core.Cohort
				if err := json.NewDecoder(rec.Body).Decode(&cohorts); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if len(cohorts) != 1 || cohorts[0].ID != "c1" {
					t.Errorf("cohorts = %+v, want [c1]", cohorts)
				}
				return
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestAPIKeySkipsCSRF(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/cohorts", strings.NewReader(`{"bogus":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testAPIKey)
	rec := serve(srv, req)

	// The body is rejected by the decoder, not by the CSRF check.
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusBadRequest, rec.Body)
	}
}

func TestFormPostWithoutCSRFToken(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := serve(srv, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

var csrfInput = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		wantStatus int
	}{
		{"correct password", testPassword, http.StatusSeeOther},
		{"wrong password", "incorrect", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &stubStore{}, nil)

			page := serve(srv, httptest.NewRequest(http.MethodGet, "/login?next=/admin/invites", nil))
			if page.Code != http.StatusOK {
				t.Fatalf("GET /login status = %d, want %d", page.Code, http.StatusOK)
			}
			m := csrfInput.FindStringSubmatch(page.Body.String())
			if m == nil {
				t.Fatal("login page has no CSRF field")
			}

			form := url.Values{
				"username":           {"admin"},
				"password":           {tt.password},
				"next":               {"/admin/invites"},
				"gorilla.csrf.Token": {m[1]},
			}
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			for _, c := range page.Result().Cookies() {
				req.AddCookie(c)
			}
			rec := serve(srv, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("POST /login status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusSeeOther {
				return
			}
			if got := rec.Header().Get("Location"); got != "/admin/invites" {
				t.Errorf("Location = %q, want /admin/invites", got)
			}
			var signedIn bool
			for _, c := range rec.Result().Cookies() {
				if c.Name == settings.SessionName {
					signedIn = true
				}
			}
			if !signedIn {
				t.Error("no session cookie set after login")
			}
		})
	}
}

func TestRegisterPageUnknownCode(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, nil)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/bootcamp/register?code=nope", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "recognise that invite code") {
		t.Errorf("body does not explain the unknown code:\n%s", rec.Body)
	}
}

func TestLearnerPagesRequireRegistration(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, nil)
	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/learn", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if got := rec.Header().Get("Location"); got != "/bootcamp/register" {
		t.Errorf("Location = %q, want /bootcamp/register", got)
	}
}

func TestImporterSample(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, nil)

	tests := []struct {
		kind       string
		wantStatus int
		wantFile   string
	}{
		{"curriculum", http.StatusOK, "curriculum-sample.csv"},
		{"invoices", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/importers/"+tt.kind+"/sample", nil)
			req.Header.Set("X-API-Key", testAPIKey)
			rec := serve(srv, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantFile != "" && !strings.Contains(rec.Header().Get("Content-Disposition"), tt.wantFile) {
				t.Errorf("Content-Disposition = %q, want filename %q", rec.Header().Get("Content-Disposition"), tt.wantFile)
			}
		})
	}
}

func TestImportEndpointsUnknownJob(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, nil)

	for _, path := range []string{
		"/api/imports/missing",
		"/api/imports/missing/progress",
		"/api/imports/missing/result",
	} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set("X-API-Key", testAPIKey)
			rec := serve(srv, req)

			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
			}
		})
	}
}

func TestRateLimitDisabled(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, map[string]string{
		"RATE_LIMIT_ENABLED":             "false",
		"RATE_LIMIT_REQUESTS_PER_MINUTE": "1",
	})

	for i := 0; i < 3; i++ {
		rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}
}

func TestRateLimitEnabled(t *testing.T) {
	srv := newTestServer(t, &stubStore{}, map[string]string{"RATE_LIMIT_REQUESTS_PER_MINUTE": "2"})

	var last int
	for i := 0; i < 3; i++ {
		last = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want %d", last, http.StatusTooManyRequests)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &core.ValidationError{Field: "name", Message: "required"}, http.StatusBadRequest},
		{"same cohort", core.ErrSameCohort, http.StatusBadRequest},
		{"not found", fmt.Errorf("cohort x: %w", core.ErrNotFound), http.StatusNotFound},
		{"job not found", core.ErrJobNotFound, http.StatusNotFound},
		{"duplicate", core.ErrDuplicate, http.StatusConflict},
		{"invite unavailable", core.ErrInviteUnavailable, http.StatusConflict},
		{"import in progress", core.ErrImportInProgress, http.StatusConflict},
		{"too many imports", core.ErrTooManyImports, http.StatusTooManyRequests},
		{"file too large", core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{"body too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
