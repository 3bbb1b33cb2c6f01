package core

import (
	"context"
	"log/slog"
	"time"
)

// AuditAction is the kind of change being recorded.
type AuditAction string

const (
	ActionCurriculumImport AuditAction = "curriculum_import"
	ActionCurriculumCopy   AuditAction = "curriculum_copy"
	ActionStudentImport    AuditAction = "student_import"
	ActionStudentUpdate    AuditAction = "student_update"
	ActionEnrollmentSync   AuditAction = "enrollment_sync"
	ActionInviteCreate     AuditAction = "invite_create"
	ActionInviteToggle     AuditAction = "invite_toggle"
	ActionInviteRedeem     AuditAction = "invite_redeem"
	ActionCreditGrant      AuditAction = "credit_grant"
	ActionSettingChange    AuditAction = "setting_change"
	ActionDelete           AuditAction = "delete"
	ActionCohortDelete     AuditAction = "cohort_delete"
)

// AuditSeverity ranks audit entries for filtering.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// AuditEntry is one audit log row.
type AuditEntry struct {
	ID        string         `json:"id"`
	Action    AuditAction    `json:"action"`
	Severity  AuditSeverity  `json:"severity"`
	CohortID  string         `json:"cohortId,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	IPAddress string         `json:"ipAddress,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Summary   string         `json:"summary,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditFilter narrows ListAuditEntries. Zero fields do not filter.
type AuditFilter struct {
	CohortID string      `json:"cohortId,omitempty"`
	Action   AuditAction `json:"action,omitempty"`
	Since    time.Time   `json:"since,omitempty"`
	Until    time.Time   `json:"until,omitempty"`
	Limit    int         `json:"limit,omitempty"`
	Offset   int         `json:"offset,omitempty"`
}

// DefaultAuditLimit caps an unbounded audit query.
const DefaultAuditLimit = 100

// AuditLogParams is what callers supply; actor, IP and user agent are
// taken from the context.
type AuditLogParams struct {
	Action   AuditAction
	CohortID string
	Subject  string
	Summary  string
	Detail   map[string]any
}

func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionCohortDelete:
		return SeverityCritical
	case ActionCurriculumImport, ActionCurriculumCopy, ActionStudentImport, ActionDelete:
		return SeverityHigh
	case ActionInviteRedeem, ActionSettingChange:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// LogAudit records an audit entry. It never fails the caller's operation:
// when auditing is disabled it does nothing, and a store error is logged
// and swallowed.
func (s *Service) LogAudit(ctx context.Context, p AuditLogParams) {
	if !s.cfg.AuditEnabled {
		return
	}

	entry := AuditEntry{
		Action:    p.Action,
		Severity:  determineSeverity(p.Action),
		CohortID:  p.CohortID,
		Subject:   p.Subject,
		Actor:     ActorFromContext(ctx),
		IPAddress: IPAddressFromContext(ctx),
		UserAgent: UserAgentFromContext(ctx),
		Summary:   p.Summary,
		Detail:    p.Detail,
		CreatedAt: s.now(),
	}

	// Detached so a finished request does not drop the entry.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if _, err := s.store.InsertAuditEntry(actx, entry); err != nil {
		slog.Warn("audit log write failed", "action", p.Action, "cohort_id", p.CohortID, "error", err)
	}
}

// AuditLog lists audit entries, newest first.
func (s *Service) AuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = DefaultAuditLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.ListAuditEntries(ctx, f)
}
