package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

const cohortColumns = `id, name, slug, description, status, start_date, end_date, icon,
	sidebar_label, sort_order, product_key, payment_product_id, onboarding, created_at`

func scanCohort(row pgx.Row) (core.Cohort, error) {
	var (
		c          core.Cohort
		id         pgtype.UUID
		start, end pgtype.Date
	)
	err := row.Scan(&id, &c.Name, &c.Slug, &c.Description, &c.Status, &start, &end, &c.Icon,
		&c.SidebarLabel, &c.SortOrder, &c.ProductKey, &c.PaymentProductID, &c.Onboarding, &c.CreatedAt)
	c.ID = PgUUIDToString(id)
	c.StartDate = PgDateToTime(start)
	c.EndDate = PgDateToTime(end)
	return c, err
}

func (s *Store) ListCohorts(ctx context.Context) ([]core.Cohort, error) {
	rows, err := s.db.Query(ctx, `SELECT `+cohortColumns+` FROM cohorts ORDER BY sort_order, created_at`)
	return collect(rows, err, scanCohort)
}

func (s *Store) GetCohort(ctx context.Context, id string) (core.Cohort, error) {
	c, err := scanCohort(s.db.QueryRow(ctx, `SELECT `+cohortColumns+` FROM cohorts WHERE id = $1`, ToPgUUID(id)))
	return c, mapErr(err, "cohort", id)
}

func (s *Store) InsertCohort(ctx context.Context, c core.Cohort) (string, error) {
	return insertID(ctx, s.db, "cohort", c.Slug, `
		INSERT INTO cohorts (name, slug, description, status, start_date, end_date, icon,
			sidebar_label, sort_order, product_key, payment_product_id, onboarding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		c.Name, c.Slug, c.Description, string(c.Status), ToPgDate(c.StartDate), ToPgDate(c.EndDate), c.Icon,
		c.SidebarLabel, c.SortOrder, c.ProductKey, c.PaymentProductID, c.Onboarding)
}

func (s *Store) UpdateCohort(ctx context.Context, c core.Cohort) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE cohorts SET name = $2, slug = $3, description = $4, status = $5, start_date = $6,
			end_date = $7, icon = $8, sidebar_label = $9, sort_order = $10, product_key = $11,
			payment_product_id = $12, onboarding = $13
		WHERE id = $1`,
		ToPgUUID(c.ID), c.Name, c.Slug, c.Description, string(c.Status), ToPgDate(c.StartDate),
		ToPgDate(c.EndDate), c.Icon, c.SidebarLabel, c.SortOrder, c.ProductKey,
		c.PaymentProductID, c.Onboarding)
	return expectRow(tag, err, "cohort", c.ID)
}

// DeleteCohort removes a cohort; its curriculum, enrollments and invite
// codes go with it through ON DELETE CASCADE.
func (s *Store) DeleteCohort(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM cohorts WHERE id = $1`, ToPgUUID(id))
	return expectRow(tag, err, "cohort", id)
}
