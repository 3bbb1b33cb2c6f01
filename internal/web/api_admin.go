package web

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

// ---- Invite codes ----

func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := s.service.ListInviteCodes(r.Context(), r.URL.Query().Get("cohortId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, invites)
}

func (s *Server) handleGetInvite(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetInviteCode(r.Context(), chi.URLParam(r, "inviteID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	var ic core.InviteCode
	if err := decodeJSON(w, r, &ic); err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.service.CreateInviteCode(r.Context(), ic)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, view)
}

func (s *Server) handleUpdateInvite(w http.ResponseWriter, r *http.Request) {
	var ic core.InviteCode
	if err := decodeJSON(w, r, &ic); err != nil {
		s.fail(w, r, err)
		return
	}
	ic.ID = chi.URLParam(r, "inviteID")
	view, err := s.service.UpdateInviteCode(r.Context(), ic)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleToggleInvite(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.ToggleInviteCode(r.Context(), chi.URLParam(r, "inviteID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, view)
}

func (s *Server) handleDeleteInvite(w http.ResponseWriter, r *http.Request) {
	s.deleted(w, r, s.service.DeleteInviteCode(r.Context(), chi.URLParam(r, "inviteID")))
}

// ---- Enrollment configs ----

func (s *Server) handleListEnrollmentConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListEnrollmentConfigs(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, configs)
}

func (s *Server) handleUpsertEnrollmentConfig(w http.ResponseWriter, r *http.Request) {
	var cfg core.EnrollmentConfig
	if err := decodeJSON(w, r, &cfg); err != nil {
		s.fail(w, r, err)
		return
	}
	cfg.ProductKey = chi.URLParam(r, "productKey")
	if err := s.service.UpsertEnrollmentConfig(r.Context(), cfg); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]string{
		"status":   "saved",
		"joinLink": core.JoinLink(s.service.Config().BaseURL, cfg.ProductKey),
	})
}

func (s *Server) handleDeleteEnrollmentConfig(w http.ResponseWriter, r *http.Request) {
	s.deleted(w, r, s.service.DeleteEnrollmentConfig(r.Context(), chi.URLParam(r, "productKey")))
}

// ---- Settings ----

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	set, err := s.service.ListSettings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, set)
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	key := chi.URLParam(r, "key")
	if err := s.service.PutSetting(r.Context(), key, req.Value); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, core.Setting{Key: key, Value: req.Value})
}

// ---- Audit log ----

// auditFilter reads cohortId, action, since, until, limit and offset.
// since and until take RFC 3339 timestamps or plain dates; a plain until
// date covers the whole day.
func auditFilter(r *http.Request) (core.AuditFilter, error) {
	q := r.URL.Query()
	f := core.AuditFilter{
		CohortID: q.Get("cohortId"),
		Action:   core.AuditAction(q.Get("action")),
		Limit:    queryInt(r, "limit", core.DefaultAuditLimit),
		Offset:   queryInt(r, "offset", 0),
	}
	if v := q.Get("since"); v != "" {
		t, _, err := parseTimeParam(v)
		if err != nil {
			return f, &core.ValidationError{Field: "since", Message: err.Error()}
		}
		f.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, dateOnly, err := parseTimeParam(v)
		if err != nil {
			return f, &core.ValidationError{Field: "until", Message: err.Error()}
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.Until = t
	}
	return f, nil
}

func parseTimeParam(v string) (t time.Time, dateOnly bool, err error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	if t, ok := core.ParseDate(v); ok {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid time %q", v)
}

// handleAuditLog lists audit entries as JSON, or as CSV with format=csv.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	f, err := auditFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries, err := s.service.AuditLog(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") != "csv" {
		writeJSON(w, entries)
		return
	}

	filename := fmt.Sprintf("audit_log_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	cw.Write([]string{"created_at", "action", "severity", "cohort_id", "subject", "actor", "ip_address", "summary", "detail"})
	for _, e := range entries {
		detail := ""
		if len(e.Detail) > 0 {
			b, _ := json.Marshal(e.Detail)
			detail = string(b)
		}
		cw.Write([]string{
			e.CreatedAt.UTC().Format(time.RFC3339),
			string(e.Action),
			string(e.Severity),
			e.CohortID,
			e.Subject,
			e.Actor,
			e.IPAddress,
			e.Summary,
			detail,
		})
	}
	cw.Flush()
}
