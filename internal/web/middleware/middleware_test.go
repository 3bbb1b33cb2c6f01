package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"

	"github.com/JonMunkholm/bootcamp/internal/config"
	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/settings"
)

func newStore(t *testing.T) sessions.Store {
	t.Helper()
	store, err := settings.NewCookieStore(settings.RandomKey(32), nil, false, time.Hour)
	if err != nil {
		t.Fatalf("NewCookieStore: %v", err)
	}
	return store
}

// adminCookies returns the cookies of a session signed in as user.
func adminCookies(t *testing.T, store sessions.Store, user string) []*http.Cookie {
	t.Helper()
	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	sess, kv := settings.Load(store, req)
	sess.SetAdmin(user)
	if err := kv.Save(req, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return rec.Result().Cookies()
}

// actorHandler writes the audit actor from the request context.
var actorHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(core.ActorFromContext(r.Context())))
})

func TestRequireAdmin(t *testing.T) {
	store := newStore(t)
	cfg := &config.SecurityConfig{RequireAuth: true}
	h := RequireAdmin(cfg, store)(actorHandler)

	t.Run("redirects anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/students?x=1", nil))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
		}
		want := "/login?next=%2Fadmin%2Fstudents%3Fx%3D1"
		if got := rec.Header().Get("Location"); got != want {
			t.Errorf("Location = %q, want %q", got, want)
		}
	})

	t.Run("htmx gets HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("HX-Request", "true")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if rec.Header().Get("HX-Redirect") == "" {
			t.Error("HX-Redirect header missing")
		}
	})

	t.Run("session passes with actor", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		for _, c := range adminCookies(t, store, "ana") {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != "ana" {
			t.Errorf("got %d %q, want 200 \"ana\"", rec.Code, rec.Body.String())
		}
	})

	t.Run("auth disabled", func(t *testing.T) {
		open := RequireAdmin(&config.SecurityConfig{}, store)(actorHandler)
		rec := httptest.NewRecorder()
		open.ServeHTTP(rec, httptest.NewRequest("GET", "/admin", nil))
		if rec.Body.String() != LocalActor {
			t.Errorf("actor = %q, want %q", rec.Body.String(), LocalActor)
		}
	})
}

func TestAPIAuth(t *testing.T) {
	store := newStore(t)
	cfg := &config.SecurityConfig{RequireAuth: true, APIKeys: []string{"k1", "k2"}}
	h := APIAuth(cfg, store)(actorHandler)

	tests := []struct {
		name   string
		key    string
		admin  string
		status int
		body   string
	}{
		{"no credentials", "", "", http.StatusUnauthorized, "AUTH_MISSING_KEY"},
		{"bad key", "nope", "", http.StatusForbidden, "AUTH_INVALID_KEY"},
		{"second key", "k2", "", http.StatusOK, "api-key"},
		{"session", "", "ana", http.StatusOK, "ana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/cohorts", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			if tt.admin != "" {
				for _, c := range adminCookies(t, store, tt.admin) {
					req.AddCookie(c)
				}
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.body) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestRequireStudent(t *testing.T) {
	store := newStore(t)
	h := RequireStudent(store)(actorHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/learn", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/bootcamp/register" {
		t.Errorf("anonymous: got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	req := httptest.NewRequest("GET", "/", nil)
	save := httptest.NewRecorder()
	sess, kv := settings.Load(store, req)
	sess.SetStudent("s-1", "pat@example.com")
	if err := kv.Save(req, save); err != nil {
		t.Fatalf("Save: %v", err)
	}

	req = httptest.NewRequest("GET", "/learn", nil)
	for _, c := range save.Result().Cookies() {
		req.AddCookie(c)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pat@example.com" {
		t.Errorf("student: got %d %q", rec.Code, rec.Body.String())
	}
}

func TestIsValidAPIKey(t *testing.T) {
	keys := []string{"alpha", "beta"}
	tests := []struct {
		key  string
		want bool
	}{
		{"alpha", true},
		{"beta", true},
		{"gamma", false},
		{"", false},
		{"alph", false},
	}
	for _, tt := range tests {
		if got := isValidAPIKey(tt.key, keys); got != tt.want {
			t.Errorf("isValidAPIKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
	if isValidAPIKey("alpha", nil) {
		t.Error("isValidAPIKey with no keys = true, want false")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Close()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("1.1.1.1") || !rl.Allow("1.1.1.1") {
		t.Fatal("first two requests rejected")
	}
	if rl.Allow("1.1.1.1") {
		t.Error("third request allowed")
	}
	if !rl.Allow("2.2.2.2") {
		t.Error("other IP rejected")
	}

	now = now.Add(2 * time.Minute)
	if !rl.Allow("1.1.1.1") {
		t.Error("request after window rejected")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Close()
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("request %d: status = %d, want %d", i, rec.Code, want)
		}
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)
	defer rl.Close()
	for i := 0; i < 5; i++ {
		if !rl.Allow("1.1.1.1") {
			t.Fatalf("request %d rejected with limiting disabled", i)
		}
	}
}

func TestTrustedRealIP(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.1", "not-an-ip"})
	var seen string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { seen = r.RemoteAddr }))

	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"untrusted ignores header", "8.8.8.8:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "8.8.8.8:1234"},
		{"trusted real ip", "10.1.2.3:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "1.2.3.4"},
		{"trusted forwarded for", "192.168.1.1:80", map[string]string{"X-Forwarded-For": "5.6.7.8, 10.0.0.1"}, "5.6.7.8"},
		{"invalid header kept", "10.1.2.3:1234", map[string]string{"X-Real-IP": "garbage"}, "10.1.2.3:1234"},
		{"no header", "10.1.2.3:1234", nil, "10.1.2.3:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if seen != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", seen, tt.want)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"1.2.3.4:5678", "1.2.3.4"},
		{"1.2.3.4", "1.2.3.4"},
		{"[::1]:80", "::1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = tt.remote
		if got := ClientIP(req); got != tt.want {
			t.Errorf("ClientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestRequestMetadata(t *testing.T) {
	var ip, ua string
	h := RequestMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = core.IPAddressFromContext(r.Context())
		ua = core.UserAgentFromContext(r.Context())
	}))
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "9.9.9.9:1"
	req.Header.Set("User-Agent", "tester")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if ip != "9.9.9.9" || ua != "tester" {
		t.Errorf("metadata = %q, %q", ip, ua)
	}
}

func TestSecurityHeaders(t *testing.T) {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	SecurityHeaders(true)(noop).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff missing")
	}
	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "frame-src https:") {
		t.Errorf("CSP = %q", csp)
	}

	rec = httptest.NewRecorder()
	SecurityHeaders(false)(noop).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Header().Get("Content-Security-Policy") != "" {
		t.Error("CSP set while disabled")
	}
}

func TestLogger_CapturesStatus(t *testing.T) {
	var inner *responseWriter
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = w.(*responseWriter)
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("hello"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if inner.status != http.StatusTeapot || inner.bytes != 5 {
		t.Errorf("recorded status %d bytes %d", inner.status, inner.bytes)
	}
	if err := http.NewResponseController(inner).Flush(); err != nil {
		t.Errorf("Flush through wrapper: %v", err)
	}
}
