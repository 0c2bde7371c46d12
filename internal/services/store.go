package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"learnhub-backend/internal/models"
)

// CatalogReader exposes the read-only course hierarchy. Lookups by id or
// slug return nil with a nil error when nothing matches.
type CatalogReader interface {
	GetCoursesByIDs(ctx context.Context, courseIDs []uuid.UUID) ([]models.Course, error)
	GetLessonsForCourse(ctx context.Context, courseID uuid.UUID) ([]models.Lesson, error)
	GetContentBlocksForLesson(ctx context.Context, lessonID uuid.UUID) ([]models.ContentBlock, error)
	GetModuleTreeForCourseSlug(ctx context.Context, slug string) (*models.CourseTree, error)
	GetLessonByID(ctx context.Context, lessonID uuid.UUID) (*models.Lesson, error)
	GetLessonBySlug(ctx context.Context, slug string) (*models.Lesson, error)
	GetPrevNextLessons(ctx context.Context, courseID uuid.UUID, currentLessonSlug string) (prev, next *models.LessonNav, err error)
	GetModuleCountsForCourses(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID]int, error)
}

type EnrollmentResolver interface {
	GetEnrolledCourseIDs(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error)
}

// ProgressStore persists the three progress tables. It holds no business
// rules; point reads return nil with a nil error when the row is absent.
type ProgressStore interface {
	// WithinTx runs fn against a store bound to a single transaction.
	// The transaction is rolled back when fn returns an error.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx ProgressStore) error) error

	GetCourseProgress(ctx context.Context, studentID, courseID uuid.UUID) (*models.CourseProgress, error)
	ListCourseProgress(ctx context.Context, studentID uuid.UUID, courseIDs []uuid.UUID) ([]models.CourseProgress, error)
	// CreateCourseProgress inserts the row unless one exists and reports
	// whether it did.
	CreateCourseProgress(ctx context.Context, p *models.CourseProgress) (bool, error)
	// SaveCourseRollup writes percentage and completed_at, inserting the
	// row with started_at = startedAt when missing.
	SaveCourseRollup(ctx context.Context, studentID, courseID uuid.UUID, percentage float64, completedAt *time.Time, startedAt time.Time) error

	GetLessonProgress(ctx context.Context, studentID, lessonID uuid.UUID) (*models.LessonProgress, error)
	ListLessonProgress(ctx context.Context, studentID uuid.UUID, lessonIDs []uuid.UUID) ([]models.LessonProgress, error)
	// BulkCreateLessonProgress skips rows that already exist.
	BulkCreateLessonProgress(ctx context.Context, rows []models.LessonProgress) error
	// MarkLessonStarted upserts the row; an existing started_at is kept.
	MarkLessonStarted(ctx context.Context, studentID, lessonID uuid.UUID, at time.Time) error
	// MarkLessonCompleted sets completed_at unless it is already set.
	MarkLessonCompleted(ctx context.Context, studentID, lessonID uuid.UUID, at time.Time) error
	// LockLessonProgress serializes rollups of the same lesson for the
	// remainder of the current transaction.
	LockLessonProgress(ctx context.Context, studentID, lessonID uuid.UUID) error

	ListContentBlockProgress(ctx context.Context, studentID uuid.UUID, blockIDs []uuid.UUID) ([]models.ContentBlockProgress, error)
	// BulkCreateContentBlockProgress skips rows that already exist.
	BulkCreateContentBlockProgress(ctx context.Context, rows []models.ContentBlockProgress) error
	// UpdateContentBlockProgress applies a partial update and returns the
	// resulting row, or nil when the student has no row for the block.
	UpdateContentBlockProgress(ctx context.Context, studentID, blockID uuid.UUID, update models.ContentBlockProgressUpdate) (*models.ContentBlockProgress, error)
}
