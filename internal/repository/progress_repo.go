package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/services"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type ProgressRepo struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool, q: pool}
}

func (r *ProgressRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx services.ProgressStore) error) error {
	if r.inTx {
		return fn(ctx, r)
	}

	var fnErr error
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		fnErr = fn(ctx, &ProgressRepo{pool: r.pool, q: tx, inTx: true})
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return services.NewStoreError("progress transaction", err)
}

// ──── Course progress ────

const courseProgressColumns = `id, student_id, course_id, started_at, completed_at, progress_percentage, created_at, updated_at`

func scanCourseProgress(row pgx.Row) (*models.CourseProgress, error) {
	p := &models.CourseProgress{}
	err := row.Scan(&p.ID, &p.StudentID, &p.CourseID, &p.StartedAt, &p.CompletedAt,
		&p.ProgressPercentage, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProgressRepo) GetCourseProgress(ctx context.Context, studentID, courseID uuid.UUID) (*models.CourseProgress, error) {
	p, err := scanCourseProgress(r.q.QueryRow(ctx,
		`SELECT `+courseProgressColumns+` FROM student_course_progress WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.NewStoreError("get course progress", err)
	}
	return p, nil
}

func (r *ProgressRepo) ListCourseProgress(ctx context.Context, studentID uuid.UUID, courseIDs []uuid.UUID) ([]models.CourseProgress, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}

	rows, err := r.q.Query(ctx,
		`SELECT `+courseProgressColumns+` FROM student_course_progress WHERE student_id = $1 AND course_id = ANY($2::uuid[])`,
		studentID, courseIDs,
	)
	if err != nil {
		return nil, services.NewStoreError("list course progress", err)
	}
	defer rows.Close()

	var out []models.CourseProgress
	for rows.Next() {
		p, err := scanCourseProgress(rows)
		if err != nil {
			return nil, services.NewStoreError("scan course progress", err)
		}
		out = append(out, *p)
	}
	return out, services.NewStoreError("list course progress", rows.Err())
}

func (r *ProgressRepo) CreateCourseProgress(ctx context.Context, p *models.CourseProgress) (bool, error) {
	query := `
		INSERT INTO student_course_progress (student_id, course_id, started_at, completed_at, progress_percentage)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, course_id) DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		p.StudentID, p.CourseID, p.StartedAt, p.CompletedAt, p.ProgressPercentage,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, services.NewStoreError("create course progress", err)
	}
	return true, nil
}

func (r *ProgressRepo) SaveCourseRollup(ctx context.Context, studentID, courseID uuid.UUID, percentage float64, completedAt *time.Time, startedAt time.Time) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO student_course_progress (student_id, course_id, started_at, completed_at, progress_percentage)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, course_id) DO UPDATE
		SET progress_percentage = EXCLUDED.progress_percentage,
			completed_at = EXCLUDED.completed_at,
			updated_at = NOW()
	`, studentID, courseID, startedAt, completedAt, percentage)
	return services.NewStoreError("save course rollup", err)
}

// ──── Lesson progress ────

const lessonProgressColumns = `id, student_id, lesson_id, started_at, completed_at, created_at, updated_at`

func scanLessonProgress(row pgx.Row) (*models.LessonProgress, error) {
	p := &models.LessonProgress{}
	err := row.Scan(&p.ID, &p.StudentID, &p.LessonID, &p.StartedAt, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProgressRepo) GetLessonProgress(ctx context.Context, studentID, lessonID uuid.UUID) (*models.LessonProgress, error) {
	p, err := scanLessonProgress(r.q.QueryRow(ctx,
		`SELECT `+lessonProgressColumns+` FROM student_lesson_progress WHERE student_id = $1 AND lesson_id = $2`,
		studentID, lessonID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.NewStoreError("get lesson progress", err)
	}
	return p, nil
}

func (r *ProgressRepo) ListLessonProgress(ctx context.Context, studentID uuid.UUID, lessonIDs []uuid.UUID) ([]models.LessonProgress, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}

	rows, err := r.q.Query(ctx,
		`SELECT `+lessonProgressColumns+` FROM student_lesson_progress WHERE student_id = $1 AND lesson_id = ANY($2::uuid[])`,
		studentID, lessonIDs,
	)
	if err != nil {
		return nil, services.NewStoreError("list lesson progress", err)
	}
	defer rows.Close()

	var out []models.LessonProgress
	for rows.Next() {
		p, err := scanLessonProgress(rows)
		if err != nil {
			return nil, services.NewStoreError("scan lesson progress", err)
		}
		out = append(out, *p)
	}
	return out, services.NewStoreError("list lesson progress", rows.Err())
}

func (r *ProgressRepo) BulkCreateLessonProgress(ctx context.Context, rows []models.LessonProgress) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range rows {
		batch.Queue(`
			INSERT INTO student_lesson_progress (student_id, lesson_id, started_at, completed_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (student_id, lesson_id) DO NOTHING
		`, p.StudentID, p.LessonID, p.StartedAt, p.CompletedAt)
	}
	return r.execBatch(ctx, "bulk create lesson progress", batch)
}

func (r *ProgressRepo) MarkLessonStarted(ctx context.Context, studentID, lessonID uuid.UUID, at time.Time) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO student_lesson_progress (student_id, lesson_id, started_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, lesson_id) DO UPDATE
		SET started_at = COALESCE(student_lesson_progress.started_at, EXCLUDED.started_at),
			updated_at = NOW()
	`, studentID, lessonID, at)
	return services.NewStoreError("mark lesson started", err)
}

func (r *ProgressRepo) MarkLessonCompleted(ctx context.Context, studentID, lessonID uuid.UUID, at time.Time) error {
	_, err := r.q.Exec(ctx, `
		UPDATE student_lesson_progress
		SET completed_at = $3, updated_at = NOW()
		WHERE student_id = $1 AND lesson_id = $2 AND completed_at IS NULL
	`, studentID, lessonID, at)
	return services.NewStoreError("mark lesson completed", err)
}

func (r *ProgressRepo) LockLessonProgress(ctx context.Context, studentID, lessonID uuid.UUID) error {
	if !r.inTx {
		return nil
	}
	var id uuid.UUID
	err := r.q.QueryRow(ctx, `
		SELECT id FROM student_lesson_progress
		WHERE student_id = $1 AND lesson_id = $2
		FOR UPDATE
	`, studentID, lessonID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return services.NewStoreError("lock lesson progress", err)
}

// ──── Content block progress ────

const blockProgressColumns = `id, student_id, content_block_id, started_at, completed_at, last_video_position, created_at, updated_at`

func scanBlockProgress(row pgx.Row) (*models.ContentBlockProgress, error) {
	p := &models.ContentBlockProgress{}
	err := row.Scan(&p.ID, &p.StudentID, &p.ContentBlockID, &p.StartedAt, &p.CompletedAt,
		&p.LastVideoPosition, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProgressRepo) ListContentBlockProgress(ctx context.Context, studentID uuid.UUID, blockIDs []uuid.UUID) ([]models.ContentBlockProgress, error) {
	if len(blockIDs) == 0 {
		return nil, nil
	}

	rows, err := r.q.Query(ctx,
		`SELECT `+blockProgressColumns+` FROM student_content_block_progress WHERE student_id = $1 AND content_block_id = ANY($2::uuid[])`,
		studentID, blockIDs,
	)
	if err != nil {
		return nil, services.NewStoreError("list content block progress", err)
	}
	defer rows.Close()

	var out []models.ContentBlockProgress
	for rows.Next() {
		p, err := scanBlockProgress(rows)
		if err != nil {
			return nil, services.NewStoreError("scan content block progress", err)
		}
		out = append(out, *p)
	}
	return out, services.NewStoreError("list content block progress", rows.Err())
}

func (r *ProgressRepo) BulkCreateContentBlockProgress(ctx context.Context, rows []models.ContentBlockProgress) error {
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range rows {
		batch.Queue(`
			INSERT INTO student_content_block_progress (student_id, content_block_id, started_at, completed_at, last_video_position)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (student_id, content_block_id) DO NOTHING
		`, p.StudentID, p.ContentBlockID, p.StartedAt, p.CompletedAt, p.LastVideoPosition)
	}
	return r.execBatch(ctx, "bulk create content block progress", batch)
}

// UpdateContentBlockProgress only touches columns whose update field is
// set: a NULL parameter keeps the stored value.
func (r *ProgressRepo) UpdateContentBlockProgress(ctx context.Context, studentID, blockID uuid.UUID, update models.ContentBlockProgressUpdate) (*models.ContentBlockProgress, error) {
	p, err := scanBlockProgress(r.q.QueryRow(ctx, `
		UPDATE student_content_block_progress
		SET started_at = COALESCE($3, started_at),
			completed_at = COALESCE($4, completed_at),
			last_video_position = COALESCE($5, last_video_position),
			updated_at = NOW()
		WHERE student_id = $1 AND content_block_id = $2
		RETURNING `+blockProgressColumns,
		studentID, blockID, update.StartedAt, update.CompletedAt, update.LastVideoPosition,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.NewStoreError("update content block progress", err)
	}
	return p, nil
}

func (r *ProgressRepo) execBatch(ctx context.Context, op string, batch *pgx.Batch) error {
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return services.NewStoreError(op, err)
		}
	}
	return nil
}
