package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/bootcamp/internal/core"
)

// ----------------------------------------------------------------------------
// Weeks
// ----------------------------------------------------------------------------

const weekColumns = `id, cohort_id, title, description, sort_order`

func scanWeek(row pgx.Row) (core.Week, error) {
	var (
		w            core.Week
		id, cohortID pgtype.UUID
	)
	err := row.Scan(&id, &cohortID, &w.Title, &w.Description, &w.SortOrder)
	w.ID = PgUUIDToString(id)
	w.CohortID = PgUUIDToString(cohortID)
	return w, err
}

func (s *Store) ListWeeks(ctx context.Context, cohortID string) ([]core.Week, error) {
	rows, err := s.db.Query(ctx, `SELECT `+weekColumns+` FROM weeks WHERE cohort_id = $1 ORDER BY sort_order, id`,
		ToPgUUID(cohortID))
	return collect(rows, err, scanWeek)
}

func (s *Store) InsertWeek(ctx context.Context, w core.Week) (string, error) {
	return insertID(ctx, s.db, "week", w.Title, `
		INSERT INTO weeks (cohort_id, title, description, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		ToPgUUID(w.CohortID), w.Title, w.Description, w.SortOrder)
}

func (s *Store) UpdateWeek(ctx context.Context, w core.Week) error {
	tag, err := s.db.Exec(ctx, `UPDATE weeks SET title = $2, description = $3, sort_order = $4 WHERE id = $1`,
		ToPgUUID(w.ID), w.Title, w.Description, w.SortOrder)
	return expectRow(tag, err, "week", w.ID)
}

func (s *Store) DeleteWeek(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM weeks WHERE id = $1`, ToPgUUID(id))
	return expectRow(tag, err, "week", id)
}

// ----------------------------------------------------------------------------
// Lessons
// ----------------------------------------------------------------------------

const lessonColumns = `id, week_id, title, description, sort_order`

func scanLesson(row pgx.Row) (core.Lesson, error) {
	var (
		l          core.Lesson
		id, weekID pgtype.UUID
	)
	err := row.Scan(&id, &weekID, &l.Title, &l.Description, &l.SortOrder)
	l.ID = PgUUIDToString(id)
	l.WeekID = PgUUIDToString(weekID)
	return l, err
}

func (s *Store) ListLessons(ctx context.Context, weekID string) ([]core.Lesson, error) {
	rows, err := s.db.Query(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE week_id = $1 ORDER BY sort_order, id`,
		ToPgUUID(weekID))
	return collect(rows, err, scanLesson)
}

func (s *Store) InsertLesson(ctx context.Context, l core.Lesson) (string, error) {
	return insertID(ctx, s.db, "lesson", l.Title, `
		INSERT INTO lessons (week_id, title, description, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		ToPgUUID(l.WeekID), l.Title, l.Description, l.SortOrder)
}

func (s *Store) UpdateLesson(ctx context.Context, l core.Lesson) error {
	tag, err := s.db.Exec(ctx, `UPDATE lessons SET title = $2, description = $3, sort_order = $4 WHERE id = $1`,
		ToPgUUID(l.ID), l.Title, l.Description, l.SortOrder)
	return expectRow(tag, err, "lesson", l.ID)
}

func (s *Store) DeleteLesson(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, ToPgUUID(id))
	return expectRow(tag, err, "lesson", id)
}

// ----------------------------------------------------------------------------
// Content items
// ----------------------------------------------------------------------------

const contentItemColumns = `id, lesson_id, type, title, description, sort_order, embed_url,
	ai_tool_slug, text_body, credentials`

func scanContentItem(row pgx.Row) (core.ContentItem, error) {
	var (
		it           core.ContentItem
		id, lessonID pgtype.UUID
	)
	err := row.Scan(&id, &lessonID, &it.Type, &it.Title, &it.Description, &it.SortOrder, &it.EmbedURL,
		&it.AIToolSlug, &it.TextBody, &it.Credentials)
	it.ID = PgUUIDToString(id)
	it.LessonID = PgUUIDToString(lessonID)
	return it, err
}

func (s *Store) ListContentItems(ctx context.Context, lessonID string) ([]core.ContentItem, error) {
	rows, err := s.db.Query(ctx, `SELECT `+contentItemColumns+` FROM content_items WHERE lesson_id = $1 ORDER BY sort_order, id`,
		ToPgUUID(lessonID))
	return collect(rows, err, scanContentItem)
}

func (s *Store) InsertContentItem(ctx context.Context, it core.ContentItem) (string, error) {
	return insertID(ctx, s.db, "content item", it.Title, `
		INSERT INTO content_items (lesson_id, type, title, description, sort_order, embed_url,
			ai_tool_slug, text_body, credentials)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		ToPgUUID(it.LessonID), string(it.Type), it.Title, it.Description, it.SortOrder, it.EmbedURL,
		it.AIToolSlug, it.TextBody, it.Credentials)
}

func (s *Store) UpdateContentItem(ctx context.Context, it core.ContentItem) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE content_items SET type = $2, title = $3, description = $4, sort_order = $5,
			embed_url = $6, ai_tool_slug = $7, text_body = $8, credentials = $9
		WHERE id = $1`,
		ToPgUUID(it.ID), string(it.Type), it.Title, it.Description, it.SortOrder, it.EmbedURL,
		it.AIToolSlug, it.TextBody, it.Credentials)
	return expectRow(tag, err, "content item", it.ID)
}

func (s *Store) DeleteContentItem(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM content_items WHERE id = $1`, ToPgUUID(id))
	return expectRow(tag, err, "content item", id)
}

// ----------------------------------------------------------------------------
// Action items
// ----------------------------------------------------------------------------

const actionItemColumns = `id, week_id, title, description, sort_order, assignee, due_label`

func scanActionItem(row pgx.Row) (core.ActionItem, error) {
	var (
		a          core.ActionItem
		id, weekID pgtype.UUID
	)
	err := row.Scan(&id, &weekID, &a.Title, &a.Description, &a.SortOrder, &a.Assignee, &a.DueLabel)
	a.ID = PgUUIDToString(id)
	a.WeekID = PgUUIDToString(weekID)
	return a, err
}

func (s *Store) ListActionItems(ctx context.Context, weekID string) ([]core.ActionItem, error) {
	rows, err := s.db.Query(ctx, `SELECT `+actionItemColumns+` FROM action_items WHERE week_id = $1 ORDER BY sort_order, id`,
		ToPgUUID(weekID))
	return collect(rows, err, scanActionItem)
}

func (s *Store) InsertActionItem(ctx context.Context, a core.ActionItem) (string, error) {
	return insertID(ctx, s.db, "action item", a.Title, `
		INSERT INTO action_items (week_id, title, description, sort_order, assignee, due_label)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		ToPgUUID(a.WeekID), a.Title, a.Description, a.SortOrder, a.Assignee, a.DueLabel)
}

func (s *Store) UpdateActionItem(ctx context.Context, a core.ActionItem) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE action_items SET title = $2, description = $3, sort_order = $4, assignee = $5, due_label = $6
		WHERE id = $1`,
		ToPgUUID(a.ID), a.Title, a.Description, a.SortOrder, a.Assignee, a.DueLabel)
	return expectRow(tag, err, "action item", a.ID)
}

func (s *Store) DeleteActionItem(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM action_items WHERE id = $1`, ToPgUUID(id))
	return expectRow(tag, err, "action item", id)
}
