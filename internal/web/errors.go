package web

// errors.go turns errors into responses.
//
// Every error is logged with its technical detail and the request id, then
// mapped through core.MapError to a user message with an action and a
// support code. The rendering depends on the caller: HTMX requests get an
// alert fragment, API clients get JSON and browsers get a full page.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"

	"github.com/JonMunkholm/bootcamp/internal/core"
	"github.com/JonMunkholm/bootcamp/internal/logging"
	"github.com/JonMunkholm/bootcamp/internal/web/views"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Action  string            `json:"action,omitempty"`
	Code    string            `json:"code"`
	Line    int               `json:"line,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	var ve *core.ValidationError
	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &ve), errors.Is(err, core.ErrSameCohort):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicate), errors.Is(err, core.ErrInviteUnavailable),
		errors.Is(err, core.ErrImportInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrFileTooLarge), errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// fail responds with the status statusFor picks.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs err and writes a user-facing error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		views.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
	case wantsJSON(r):
		resp := ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		}
		var ve *core.ValidationError
		if errors.As(err, &ve) {
			resp.Line = ve.Line
			resp.Fields = ve.Fields
		}
		writeJSONStatus(w, status, resp)
	default:
		s.renderPage(w, r, nil, status, "Error", func(views.Page) templ.Component {
			return views.ErrorPage(msg.Message, msg.Action, msg.Code)
		})
	}
}

// badRequest reports malformed input that never reached the service.
func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, message string) {
	s.respondError(w, r, &core.ValidationError{Message: message}, http.StatusBadRequest)
}

func (s *Server) handleCSRFFailure(w http.ResponseWriter, r *http.Request) {
	slog.Warn("csrf check failed",
		"path", r.URL.Path,
		"reason", csrf.FailureReason(r),
		"request_id", middleware.GetReqID(r.Context()),
	)
	if wantsJSON(r) {
		writeJSONStatus(w, http.StatusForbidden, ErrorResponse{
			Error:   "invalid CSRF token",
			Message: "Your form expired.",
			Action:  "Reload the page and try again.",
			Code:    "AUTH_CSRF",
		})
		return
	}
	http.Error(w, "Your form expired. Reload the page and try again.", http.StatusForbidden)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client expects JSON: it asked for it,
// sent it, or called an /api route.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v. Encoding errors are only logged since the
// header is already out.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads a JSON request body of at most 1 MiB.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return decodeJSONLimit(w, r, v, 1<<20)
}

// decodeJSONLimit rejects unknown fields and bodies over limit bytes.
func decodeJSONLimit(w http.ResponseWriter, r *http.Request, v any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return &core.ValidationError{Message: "invalid request body: " + err.Error()}
	}
	return nil
}
