// Package settings holds per-visitor UI state (active cohort, theme, learner
// identity and lesson progress) behind a key/value interface, so handlers
// never touch cookies directly and the state logic can be tested with an
// in-memory map.
package settings

import (
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

// KV is the persistence behind a Session.
type KV interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemoryKV is a KV kept in a map. Safe for concurrent use.
type MemoryKV struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (kv *MemoryKV) Get(key string) (string, bool) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.m[key]
	return v, ok
}

func (kv *MemoryKV) Set(key, value string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = value
}

func (kv *MemoryKV) Delete(key string) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.m, key)
}

// Theme is the visitor's colour scheme.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// ParseTheme accepts a theme name case-insensitively.
func ParseTheme(s string) (Theme, bool) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeSystem, ThemeLight, ThemeDark:
		return t, true
	}
	return "", false
}

const (
	keyActiveCohort = "active_cohort_id"
	keyTheme        = "theme"
	keyStudentID    = "student_id"
	keyStudentEmail = "student_email"
	keyAdmin        = "admin_user"
	keyFlash        = "flash"
	keyFlashKind    = "flash_kind"
	prefixProgress  = "progress:"
	prefixStep      = "onboarding_step:"
)

// Session is typed access to one visitor's state.
type Session struct {
	kv KV
}

// New wraps kv.
func New(kv KV) *Session {
	return &Session{kv: kv}
}

func (s *Session) get(key string) string {
	v, _ := s.kv.Get(key)
	return v
}

func (s *Session) setOrDelete(key, value string) {
	if value == "" {
		s.kv.Delete(key)
		return
	}
	s.kv.Set(key, value)
}

// ActiveCohortID is the cohort the visitor last opened.
func (s *Session) ActiveCohortID() string { return s.get(keyActiveCohort) }

// SetActiveCohortID records the open cohort. Empty clears it.
func (s *Session) SetActiveCohortID(id string) { s.setOrDelete(keyActiveCohort, id) }

// Theme returns the stored theme, or ThemeSystem.
func (s *Session) Theme() Theme {
	if t, ok := ParseTheme(s.get(keyTheme)); ok {
		return t
	}
	return ThemeSystem
}

// SetTheme stores a theme. Unknown names return false and change nothing.
func (s *Session) SetTheme(name string) bool {
	t, ok := ParseTheme(name)
	if !ok {
		return false
	}
	s.kv.Set(keyTheme, string(t))
	return true
}

// Student returns the learner signed in through registration, if any.
func (s *Session) Student() (id, email string, ok bool) {
	id = s.get(keyStudentID)
	return id, s.get(keyStudentEmail), id != ""
}

// SetStudent records the learner after a successful registration.
func (s *Session) SetStudent(id, email string) {
	s.setOrDelete(keyStudentID, id)
	s.setOrDelete(keyStudentEmail, email)
}

// ClearStudent forgets the learner.
func (s *Session) ClearStudent() {
	s.kv.Delete(keyStudentID)
	s.kv.Delete(keyStudentEmail)
}

// Admin returns the signed-in admin user name, or "".
func (s *Session) Admin() string { return s.get(keyAdmin) }

// SetAdmin marks the session as signed in as user. Empty signs out.
func (s *Session) SetAdmin(user string) { s.setOrDelete(keyAdmin, user) }

// SetFlash stores a one-shot message for the next page. kind is "ok" or
// "error".
func (s *Session) SetFlash(msg, kind string) {
	s.setOrDelete(keyFlash, msg)
	s.setOrDelete(keyFlashKind, kind)
}

// TakeFlash returns and clears the pending message.
func (s *Session) TakeFlash() (msg, kind string) {
	msg, kind = s.get(keyFlash), s.get(keyFlashKind)
	s.kv.Delete(keyFlash)
	s.kv.Delete(keyFlashKind)
	return msg, kind
}

// Progress returns the content item ids completed in a cohort, sorted.
func (s *Session) Progress(cohortID string) []string {
	raw := s.get(prefixProgress + cohortID)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// IsComplete reports whether an item is marked complete.
func (s *Session) IsComplete(cohortID, itemID string) bool {
	for _, id := range s.Progress(cohortID) {
		if id == itemID {
			return true
		}
	}
	return false
}

// SetComplete marks or unmarks an item and reports whether anything
// changed.
func (s *Session) SetComplete(cohortID, itemID string, done bool) bool {
	if itemID == "" || strings.Contains(itemID, ",") {
		return false
	}
	if s.IsComplete(cohortID, itemID) == done {
		return false
	}

	var ids []string
	for _, id := range s.Progress(cohortID) {
		if id != itemID {
			ids = append(ids, id)
		}
	}
	if done {
		ids = append(ids, itemID)
	}
	sort.Strings(ids)
	s.setOrDelete(prefixProgress+cohortID, strings.Join(ids, ","))
	return true
}

// OnboardingStep is where the learner left the wizard for a cohort.
func (s *Session) OnboardingStep(cohortID string) core.OnboardingStep {
	return core.OnboardingStep(s.get(prefixStep + cohortID))
}

// SetOnboardingStep records the wizard position for a cohort.
func (s *Session) SetOnboardingStep(cohortID string, step core.OnboardingStep) {
	s.setOrDelete(prefixStep+cohortID, string(step))
}
