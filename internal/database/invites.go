package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

const inviteColumns = `id, code, cohort_id, label, status, max_uses, use_count, expires_at,
	access_level, tool_grants, created_at`

func scanInvite(row pgx.Row) (core.InviteCode, error) {
	var (
		ic           core.InviteCode
		id, cohortID pgtype.UUID
		maxUses      pgtype.Int4
		expires      pgtype.Timestamptz
		level        pgtype.Text
	)
	err := row.Scan(&id, &ic.Code, &cohortID, &ic.Label, &ic.Status, &maxUses, &ic.UseCount, &expires,
		&level, &ic.ToolGrants, &ic.CreatedAt)
	ic.ID = PgUUIDToString(id)
	ic.CohortID = PgUUIDToString(cohortID)
	ic.MaxUses = PgInt4ToInt(maxUses)
	ic.ExpiresAt = PgTimestamptzToTime(expires)
	ic.AccessLevel = core.AccessLevel(level.String)
	return ic, err
}

func toolGrants(grants []core.ToolGrant) []core.ToolGrant {
	if grants == nil {
		return []core.ToolGrant{}
	}
	return grants
}

// ListInviteCodes lists one cohort's codes, or every code when cohortID is
// empty.
func (s *Store) ListInviteCodes(ctx context.Context, cohortID string) ([]core.InviteCode, error) {
	if cohortID == "" {
		rows, err := s.db.Query(ctx, `SELECT `+inviteColumns+` FROM invite_codes ORDER BY created_at, code`)
		return collect(rows, err, scanInvite)
	}
	rows, err := s.db.Query(ctx, `SELECT `+inviteColumns+` FROM invite_codes WHERE cohort_id = $1 ORDER BY created_at, code`,
		ToPgUUID(cohortID))
	return collect(rows, err, scanInvite)
}

func (s *Store) GetInviteCode(ctx context.Context, id string) (core.InviteCode, error) {
	ic, err := scanInvite(s.db.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invite_codes WHERE id = $1`, ToPgUUID(id)))
	return ic, mapErr(err, "invite code", id)
}

func (s *Store) GetInviteCodeByCode(ctx context.Context, code string) (core.InviteCode, error) {
	ic, err := scanInvite(s.db.QueryRow(ctx, `SELECT `+inviteColumns+` FROM invite_codes WHERE code = $1`, code))
	return ic, mapErr(err, "invite code", code)
}

func (s *Store) InsertInviteCode(ctx context.Context, ic core.InviteCode) (string, error) {
	return insertID(ctx, s.db, "invite code", ic.Code, `
		INSERT INTO invite_codes (code, cohort_id, label, status, max_uses, expires_at, access_level, tool_grants)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		ic.Code, ToPgUUID(ic.CohortID), ic.Label, string(ic.Status), ToPgInt4(ic.MaxUses),
		ToPgTimestamptz(ic.ExpiresAt), ToPgText(string(ic.AccessLevel)), toolGrants(ic.ToolGrants))
}

// UpdateInviteCode saves everything except use_count and created_at.
func (s *Store) UpdateInviteCode(ctx context.Context, ic core.InviteCode) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE invite_codes SET code = $2, cohort_id = $3, label = $4, status = $5, max_uses = $6,
			expires_at = $7, access_level = $8, tool_grants = $9
		WHERE id = $1`,
		ToPgUUID(ic.ID), ic.Code, ToPgUUID(ic.CohortID), ic.Label, string(ic.Status), ToPgInt4(ic.MaxUses),
		ToPgTimestamptz(ic.ExpiresAt), ToPgText(string(ic.AccessLevel)), toolGrants(ic.ToolGrants))
	return expectRow(tag, err, "invite code", ic.ID)
}

func (s *Store) SetInviteStatus(ctx context.Context, id string, status core.InviteStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE invite_codes SET status = $2 WHERE id = $1`, ToPgUUID(id), string(status))
	return expectRow(tag, err, "invite code", id)
}

func (s *Store) DeleteInviteCode(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM invite_codes WHERE id = $1`, ToPgUUID(id))
	return expectRow(tag, err, "invite code", id)
}

// RedeemInvite locks the code row, finds or creates the student, enrolls
// them and takes one use. A student already in the cohort gets a no-op
// success even when the code is no longer redeemable. The guarded UPDATE
// keeps use_count within max_uses when two redemptions race for the last use.
func (s *Store) RedeemInvite(ctx context.Context, req core.RedeemRequest, now time.Time) (core.Redemption, error) {
	var red core.Redemption

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		ic, err := scanInvite(tx.QueryRow(ctx,
			`SELECT `+inviteColumns+` FROM invite_codes WHERE code = $1 FOR UPDATE`, req.Code))
		if err != nil {
			return mapErr(err, "invite code", req.Code)
		}
		red.CohortID = ic.CohortID

		st, err := scanStudent(tx.QueryRow(ctx,
			`SELECT `+studentColumns+` FROM students WHERE lower(email) = lower($1)`, req.Email))
		found := err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return mapErr(err, "student", req.Email)
		}

		if found {
			var enrolled bool
			err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND cohort_id = $2)`,
				ToPgUUID(st.ID), ToPgUUID(ic.CohortID)).Scan(&enrolled)
			if err != nil {
				return mapErr(err, "enrollment", st.ID+"/"+ic.CohortID)
			}
			if enrolled {
				red.StudentID = st.ID
				red.AlreadyEnrolled = true
				return nil
			}
		}

		if !ic.Redeemable(now) {
			return core.ErrInviteUnavailable
		}

		if !found {
			level := ic.AccessLevel
			if level == "" {
				level = core.DefaultAccessLevel
			}
			st.ID, err = insertStudent(ctx, tx, core.Student{
				Email:       req.Email,
				Name:        req.Name,
				AccessLevel: level,
				Status:      core.DefaultStudentStatus,
			})
			if err != nil {
				return err
			}
			red.StudentCreated = true
		}
		red.StudentID = st.ID

		_, err = tx.Exec(ctx, `
			INSERT INTO enrollments (student_id, cohort_id, joined_at, access_level)
			VALUES ($1, $2, $3, $4)`,
			ToPgUUID(st.ID), ToPgUUID(ic.CohortID), now, ToPgText(string(ic.AccessLevel)))
		if err != nil {
			return mapErr(err, "enrollment", st.ID+"/"+ic.CohortID)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE invite_codes SET use_count = use_count + 1
			WHERE id = $1 AND status = 'active'
				AND (max_uses IS NULL OR use_count < max_uses)
				AND (expires_at IS NULL OR expires_at >= $2)`,
			ToPgUUID(ic.ID), now)
		if err != nil {
			return mapErr(err, "invite code", req.Code)
		}
		if tag.RowsAffected() == 0 {
			return core.ErrInviteUnavailable
		}

		for _, g := range ic.ToolGrants {
			if err := grantToolCredits(ctx, tx, st.ID, g.ToolSlug, g.Credits); err != nil {
				return err
			}
			red.CreditsGranted += g.Credits
		}
		return nil
	})
	if err != nil {
		return core.Redemption{}, fmt.Errorf("redeem %s: %w", req.Code, err)
	}
	return red, nil
}

// ----------------------------------------------------------------------------
// Enrollment configs
// ----------------------------------------------------------------------------

func scanEnrollmentConfig(row pgx.Row) (core.EnrollmentConfig, error) {
	var (
		cfg core.EnrollmentConfig
		id  pgtype.UUID
	)
	err := row.Scan(&cfg.ProductKey, &id, &cfg.UpdatedAt)
	cfg.InviteCodeID = PgUUIDToString(id)
	return cfg, err
}

func (s *Store) ListEnrollmentConfigs(ctx context.Context) ([]core.EnrollmentConfig, error) {
	rows, err := s.db.Query(ctx, `SELECT product_key, invite_code_id, updated_at FROM enrollment_configs ORDER BY product_key`)
	return collect(rows, err, scanEnrollmentConfig)
}

func (s *Store) GetEnrollmentConfig(ctx context.Context, productKey string) (core.EnrollmentConfig, error) {
	cfg, err := scanEnrollmentConfig(s.db.QueryRow(ctx,
		`SELECT product_key, invite_code_id, updated_at FROM enrollment_configs WHERE product_key = $1`, productKey))
	return cfg, mapErr(err, "enrollment config", productKey)
}

func (s *Store) UpsertEnrollmentConfig(ctx context.Context, cfg core.EnrollmentConfig) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO enrollment_configs (product_key, invite_code_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (product_key) DO UPDATE SET invite_code_id = EXCLUDED.invite_code_id, updated_at = now()`,
		cfg.ProductKey, ToPgUUID(cfg.InviteCodeID))
	return mapErr(err, "enrollment config", cfg.ProductKey)
}

func (s *Store) DeleteEnrollmentConfig(ctx context.Context, productKey string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM enrollment_configs WHERE product_key = $1`, productKey)
	return expectRow(tag, err, "enrollment config", productKey)
}
