package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/services"
)

// CatalogRepo reads the course hierarchy. It never writes.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

const courseColumns = `id, slug, title, description, estimated_duration, language, status, tags, created_at, updated_at`

func scanCourse(row pgx.Row) (*models.Course, error) {
	c := &models.Course{}
	err := row.Scan(&c.ID, &c.Slug, &c.Title, &c.Description, &c.EstimatedDuration,
		&c.Language, &c.Status, &c.Tags, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// lessonSelect joins modules so every lesson carries its course id.
const lessonSelect = `
	SELECT l.id, l.module_id, m.course_id, l."order", l.slug, l.title, l.summary, l.estimated_duration
	FROM lessons l
	JOIN modules m ON m.id = l.module_id`

func scanLesson(row pgx.Row) (*models.Lesson, error) {
	l := &models.Lesson{}
	err := row.Scan(&l.ID, &l.ModuleID, &l.CourseID, &l.Order, &l.Slug, &l.Title, &l.Summary, &l.EstimatedDuration)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *CatalogRepo) GetCoursesByIDs(ctx context.Context, courseIDs []uuid.UUID) ([]models.Course, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE id = ANY($1::uuid[]) ORDER BY created_at, title`,
		courseIDs,
	)
	if err != nil {
		return nil, services.NewStoreError("get courses", err)
	}
	defer rows.Close()

	var out []models.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, services.NewStoreError("scan course", err)
		}
		out = append(out, *c)
	}
	return out, services.NewStoreError("get courses", rows.Err())
}

func (r *CatalogRepo) GetLessonsForCourse(ctx context.Context, courseID uuid.UUID) ([]models.Lesson, error) {
	rows, err := r.pool.Query(ctx,
		lessonSelect+` WHERE m.course_id = $1 ORDER BY m."order", l."order"`,
		courseID,
	)
	if err != nil {
		return nil, services.NewStoreError("get lessons for course", err)
	}
	return collectLessons(rows)
}

func (r *CatalogRepo) GetContentBlocksForLesson(ctx context.Context, lessonID uuid.UUID) ([]models.ContentBlock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lesson_id, "order", type, title, content, video_url
		FROM content_blocks
		WHERE lesson_id = $1
		ORDER BY "order"
	`, lessonID)
	if err != nil {
		return nil, services.NewStoreError("get content blocks", err)
	}
	defer rows.Close()

	var out []models.ContentBlock
	for rows.Next() {
		var b models.ContentBlock
		var blockType string
		if err := rows.Scan(&b.ID, &b.LessonID, &b.Order, &blockType, &b.Title, &b.Content, &b.VideoURL); err != nil {
			return nil, services.NewStoreError("scan content block", err)
		}
		b.Type = models.ContentBlockType(blockType)
		out = append(out, b)
	}
	return out, services.NewStoreError("get content blocks", rows.Err())
}

func (r *CatalogRepo) GetModuleTreeForCourseSlug(ctx context.Context, slug string) (*models.CourseTree, error) {
	course, err := scanCourse(r.pool.QueryRow(ctx,
		`SELECT `+courseColumns+` FROM courses WHERE slug = $1`, slug,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.NewStoreError("get course by slug", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, course_id, "order", slug, title, description, estimated_duration
		FROM modules
		WHERE course_id = $1
		ORDER BY "order"
	`, course.ID)
	if err != nil {
		return nil, services.NewStoreError("get modules", err)
	}

	tree := &models.CourseTree{Course: *course, Modules: []models.ModuleWithLessons{}}
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var m models.Module
		if err := rows.Scan(&m.ID, &m.CourseID, &m.Order, &m.Slug, &m.Title, &m.Description, &m.EstimatedDuration); err != nil {
			rows.Close()
			return nil, services.NewStoreError("scan module", err)
		}
		index[m.ID] = len(tree.Modules)
		tree.Modules = append(tree.Modules, models.ModuleWithLessons{Module: m, Lessons: []models.Lesson{}})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, services.NewStoreError("get modules", err)
	}

	lessons, err := r.GetLessonsForCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	for _, l := range lessons {
		if i, ok := index[l.ModuleID]; ok {
			tree.Modules[i].Lessons = append(tree.Modules[i].Lessons, l)
		}
	}

	return tree, nil
}

func (r *CatalogRepo) GetLessonByID(ctx context.Context, lessonID uuid.UUID) (*models.Lesson, error) {
	l, err := scanLesson(r.pool.QueryRow(ctx, lessonSelect+` WHERE l.id = $1`, lessonID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.NewStoreError("get lesson", err)
	}
	return l, nil
}

func (r *CatalogRepo) GetLessonBySlug(ctx context.Context, slug string) (*models.Lesson, error) {
	l, err := scanLesson(r.pool.QueryRow(ctx, lessonSelect+` WHERE l.slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.NewStoreError("get lesson by slug", err)
	}
	return l, nil
}

// GetPrevNextLessons walks the course's lessons in module order, then
// lesson order.
func (r *CatalogRepo) GetPrevNextLessons(ctx context.Context, courseID uuid.UUID, currentLessonSlug string) (*models.LessonNav, *models.LessonNav, error) {
	var (
		prevID, nextID       uuid.NullUUID
		prevSlug, nextSlug   *string
		prevTitle, nextTitle *string
	)

	err := r.pool.QueryRow(ctx, `
		WITH ordered AS (
			SELECT l.slug,
				LAG(l.id) OVER w AS prev_id,
				LAG(l.slug) OVER w AS prev_slug,
				LAG(l.title) OVER w AS prev_title,
				LEAD(l.id) OVER w AS next_id,
				LEAD(l.slug) OVER w AS next_slug,
				LEAD(l.title) OVER w AS next_title
			FROM lessons l
			JOIN modules m ON m.id = l.module_id
			WHERE m.course_id = $1
			WINDOW w AS (ORDER BY m."order", l."order")
		)
		SELECT prev_id, prev_slug, prev_title, next_id, next_slug, next_title
		FROM ordered
		WHERE slug = $2
	`, courseID, currentLessonSlug).Scan(&prevID, &prevSlug, &prevTitle, &nextID, &nextSlug, &nextTitle)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, services.NewStoreError("get prev/next lessons", err)
	}

	return navOf(prevID, prevSlug, prevTitle), navOf(nextID, nextSlug, nextTitle), nil
}

func (r *CatalogRepo) GetModuleCountsForCourses(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(courseIDs))
	if len(courseIDs) == 0 {
		return counts, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT course_id, COUNT(*)
		FROM modules
		WHERE course_id = ANY($1::uuid[])
		GROUP BY course_id
	`, courseIDs)
	if err != nil {
		return nil, services.NewStoreError("count modules", err)
	}
	defer rows.Close()

	for _, id := range courseIDs {
		counts[id] = 0
	}
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, services.NewStoreError("scan module count", err)
		}
		counts[id] = n
	}
	return counts, services.NewStoreError("count modules", rows.Err())
}

func collectLessons(rows pgx.Rows) ([]models.Lesson, error) {
	defer rows.Close()

	var out []models.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, services.NewStoreError("scan lesson", err)
		}
		out = append(out, *l)
	}
	return out, services.NewStoreError("get lessons", rows.Err())
}

func navOf(id uuid.NullUUID, slug, title *string) *models.LessonNav {
	if !id.Valid {
		return nil
	}
	nav := &models.LessonNav{ID: id.UUID}
	if slug != nil {
		nav.Slug = *slug
	}
	if title != nil {
		nav.Title = *title
	}
	return nav
}
