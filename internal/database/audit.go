package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

// WhereBuilder assembles a parameterized WHERE clause. Empty values are
// skipped so optional filters can be added unconditionally.
type WhereBuilder struct {
	conditions []string
	args       []interface{}
}

// NewWhereBuilder returns an empty builder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// Add appends "column = $n" unless value is empty or NULL.
func (wb *WhereBuilder) Add(column string, value interface{}) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return
		}
	case pgtype.UUID:
		if !v.Valid {
			return
		}
	case nil:
		return
	}
	wb.args = append(wb.args, value)
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", column, len(wb.args)))
}

// AddTimeRange bounds column to [since, until). Zero times are open ends.
func (wb *WhereBuilder) AddTimeRange(column string, since, until time.Time) {
	if !since.IsZero() {
		wb.args = append(wb.args, since)
		wb.conditions = append(wb.conditions, fmt.Sprintf("%s >= $%d", column, len(wb.args)))
	}
	if !until.IsZero() {
		wb.args = append(wb.args, until)
		wb.conditions = append(wb.conditions, fmt.Sprintf("%s < $%d", column, len(wb.args)))
	}
}

// NextArgIndex is the placeholder number the next argument will take.
func (wb *WhereBuilder) NextArgIndex() int {
	return len(wb.args) + 1
}

// Build returns the clause, with a leading space, and its arguments.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.conditions) == 0 {
		return "", wb.args
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

const auditColumns = `id, action, severity, cohort_id, subject, actor, ip_address, user_agent,
	summary, detail, created_at`

func scanAuditEntry(row pgx.Row) (core.AuditEntry, error) {
	var (
		e            core.AuditEntry
		id, cohortID pgtype.UUID
	)
	err := row.Scan(&id, &e.Action, &e.Severity, &cohortID, &e.Subject, &e.Actor, &e.IPAddress, &e.UserAgent,
		&e.Summary, &e.Detail, &e.CreatedAt)
	e.ID = PgUUIDToString(id)
	e.CohortID = PgUUIDToString(cohortID)
	return e, err
}

func (s *Store) InsertAuditEntry(ctx context.Context, e core.AuditEntry) (string, error) {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return insertID(ctx, s.db, "audit entry", string(e.Action), `
		INSERT INTO audit_log (action, severity, cohort_id, subject, actor, ip_address, user_agent,
			summary, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		string(e.Action), string(e.Severity), ToPgUUID(e.CohortID), e.Subject, e.Actor, e.IPAddress, e.UserAgent,
		e.Summary, e.Detail, createdAt)
}

// ListAuditEntries returns matching entries, newest first.
func (s *Store) ListAuditEntries(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error) {
	if f.Limit <= 0 {
		f.Limit = core.DefaultAuditLimit
	}

	wb := NewWhereBuilder()
	if f.CohortID != "" {
		cohortID := ToPgUUID(f.CohortID)
		if !cohortID.Valid {
			return []core.AuditEntry{}, nil
		}
		wb.Add("cohort_id", cohortID)
	}
	wb.Add("action", string(f.Action))
	wb.AddTimeRange("created_at", f.Since, f.Until)

	whereClause, args := wb.Build()
	query := `SELECT ` + auditColumns + ` FROM audit_log` + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	return collect(rows, err, scanAuditEntry)
}

// PurgeAuditEntries deletes entries created before the cutoff.
func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge audit log: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ----------------------------------------------------------------------------
// Settings
// ----------------------------------------------------------------------------

func (s *Store) ListSettings(ctx context.Context) ([]core.Setting, error) {
	rows, err := s.db.Query(ctx, `SELECT key, value FROM settings ORDER BY key`)
	return collect(rows, err, func(row pgx.Row) (core.Setting, error) {
		var st core.Setting
		err := row.Scan(&st.Key, &st.Value)
		return st, err
	})
}

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	return value, mapErr(err, "setting", key)
}

func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	return mapErr(err, "setting", key)
}
