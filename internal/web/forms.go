package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

func formString(r *http.Request, name string) string {
	return strings.TrimSpace(r.FormValue(name))
}

// formBool reads a checkbox or a true/false select.
func formBool(r *http.Request, name string) bool {
	b, _ := core.ParseBool(r.FormValue(name))
	return b
}

// formDate parses an optional date field.
func formDate(r *http.Request, name string) (*time.Time, error) {
	v := formString(r, name)
	if v == "" {
		return nil, nil
	}
	t, ok := core.ParseDate(v)
	if !ok {
		return nil, &core.ValidationError{Field: name, Message: "invalid date " + strconv.Quote(v)}
	}
	return &t, nil
}

// formInt parses an optional positive integer field.
func formInt(r *http.Request, name string) (*int, error) {
	v := formString(r, name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return nil, &core.ValidationError{Field: name, Message: "must be a positive number"}
	}
	return &n, nil
}

// formList returns the non-empty values of a repeated field.
func formList(r *http.Request, name string) []string {
	if r.Form == nil {
		r.ParseMultipartForm(32 << 20)
	}
	var out []string
	for _, v := range r.Form[name] {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// queryInt parses a non-negative query parameter.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// parseToolGrants reads "slug:credits" pairs separated by commas or
// newlines.
func parseToolGrants(s string) ([]core.ToolGrant, error) {
	var grants []core.ToolGrant
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		slug, credits, ok := strings.Cut(part, ":")
		n, err := strconv.Atoi(strings.TrimSpace(credits))
		if !ok || err != nil || n <= 0 || strings.TrimSpace(slug) == "" {
			return nil, &core.ValidationError{Field: "toolGrants", Message: "expected tool:credits, got " + strconv.Quote(part)}
		}
		grants = append(grants, core.ToolGrant{ToolSlug: strings.TrimSpace(slug), Credits: n})
	}
	return grants, nil
}

// readCSVForm returns the CSV from an uploaded "file" or, failing that,
// the "csv" text field. The body is capped at the configured upload size.
func (s *Server) readCSVForm(w http.ResponseWriter, r *http.Request) (string, error) {
	maxSize := s.service.Config().MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return "", core.ErrFileTooLarge
			}
			return "", &core.ValidationError{Message: "invalid upload form"}
		}
		if file, _, err := r.FormFile("file"); err == nil {
			defer file.Close()
			return core.ReadCSVInput(file, maxSize)
		}
	} else if err := r.ParseForm(); err != nil {
		return "", &core.ValidationError{Message: "invalid form"}
	}

	text := r.FormValue("csv")
	if strings.TrimSpace(text) == "" {
		return "", &core.ValidationError{Message: "no file provided"}
	}
	return core.ReadCSVInput(strings.NewReader(text), maxSize)
}
