package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"learnhub-backend/internal/logger"
	"learnhub-backend/internal/models"
)

// ProgressEngine implements the progress mutations: starting courses and
// lessons, recording content block progress and rolling completion up
// from block to lesson to course.
type ProgressEngine struct {
	catalog CatalogReader
	store   ProgressStore
	log     *logger.Logger
	now     func() time.Time
}

func NewProgressEngine(catalog CatalogReader, store ProgressStore, log *logger.Logger) *ProgressEngine {
	if log == nil {
		log = logger.Nop()
	}
	return &ProgressEngine{
		catalog: catalog,
		store:   store,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for started/completed stamps.
func (e *ProgressEngine) SetClock(now func() time.Time) {
	e.now = now
}

// StartCourse creates the course progress row and one unstarted lesson
// progress row per lesson in the course. It is a no-op when the course
// has already been started.
func (e *ProgressEngine) StartCourse(ctx context.Context, studentID, courseID uuid.UUID) error {
	existing, err := e.store.GetCourseProgress(ctx, studentID, courseID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	courses, err := e.catalog.GetCoursesByIDs(ctx, []uuid.UUID{courseID})
	if err != nil {
		return err
	}
	if len(courses) == 0 {
		return notFound("Course %s not found", courseID)
	}

	lessons, err := e.catalog.GetLessonsForCourse(ctx, courseID)
	if err != nil {
		return err
	}

	now := e.now()
	return e.store.WithinTx(ctx, func(ctx context.Context, tx ProgressStore) error {
		created, err := tx.CreateCourseProgress(ctx, &models.CourseProgress{
			StudentID:          studentID,
			CourseID:           courseID,
			StartedAt:          &now,
			ProgressPercentage: 0,
		})
		if err != nil {
			return err
		}
		if !created {
			// A concurrent call provisioned the course first.
			return nil
		}

		if len(lessons) == 0 {
			return nil
		}

		rows := make([]models.LessonProgress, 0, len(lessons))
		for _, l := range lessons {
			rows = append(rows, models.LessonProgress{
				StudentID: studentID,
				LessonID:  l.ID,
			})
		}
		if err := tx.BulkCreateLessonProgress(ctx, rows); err != nil {
			return err
		}

		e.log.Debug("course started",
			"student_id", studentID,
			"course_id", courseID,
			"lessons", len(rows),
		)
		return nil
	})
}

// StartLesson marks the lesson started and provisions a progress row for
// every content block the student has not seen yet. lessonRef is either a
// lesson id or a lesson slug.
func (e *ProgressEngine) StartLesson(ctx context.Context, studentID uuid.UUID, lessonRef string) ([]models.ContentBlockProgress, error) {
	lesson, err := e.resolveLesson(ctx, lessonRef)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, notFound("Lesson %s not found", lessonRef)
	}

	blocks, err := e.catalog.GetContentBlocksForLesson(ctx, lesson.ID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx ProgressStore) error {
		return e.provisionLesson(ctx, tx, studentID, lesson.ID, blocks, now)
	})
	if err != nil {
		return nil, err
	}

	if len(blocks) == 0 {
		return []models.ContentBlockProgress{}, nil
	}
	return e.store.ListContentBlockProgress(ctx, studentID, blockIDs(blocks))
}

// RecordContentBlockProgress applies a partial update to the student's
// progress on a content block. A completion event triggers the rollup:
// lesson completion when every block is done, then the course percentage.
// Everything runs in one transaction, in that order.
func (e *ProgressEngine) RecordContentBlockProgress(
	ctx context.Context,
	studentID, lessonID, courseID, contentBlockID uuid.UUID,
	update models.ContentBlockProgressUpdate,
) (*models.ContentBlockProgress, error) {
	lesson, err := e.catalog.GetLessonByID(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil || lesson.CourseID != courseID {
		return nil, notFound("Lesson %s not found in course %s", lessonID, courseID)
	}

	blocks, err := e.catalog.GetContentBlocksForLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if !containsBlock(blocks, contentBlockID) {
		return nil, notFound("Content block %s not found in lesson %s", contentBlockID, lessonID)
	}

	now := e.now()
	var result *models.ContentBlockProgress
	err = e.store.WithinTx(ctx, func(ctx context.Context, tx ProgressStore) error {
		row, err := tx.UpdateContentBlockProgress(ctx, studentID, contentBlockID, update)
		if err != nil {
			return err
		}
		if row == nil {
			// The lesson was never started; provision it the same way
			// StartLesson does and apply the update again.
			if err := e.provisionLesson(ctx, tx, studentID, lessonID, blocks, now); err != nil {
				return err
			}
			row, err = tx.UpdateContentBlockProgress(ctx, studentID, contentBlockID, update)
			if err != nil {
				return err
			}
			if row == nil {
				return &InvalidStateError{Message: "Content block progress could not be provisioned"}
			}
		}
		result = row

		if update.CompletedAt == nil {
			return nil
		}
		return e.rollup(ctx, tx, studentID, lessonID, courseID, blocks, *update.CompletedAt)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *ProgressEngine) provisionLesson(
	ctx context.Context,
	tx ProgressStore,
	studentID, lessonID uuid.UUID,
	blocks []models.ContentBlock,
	now time.Time,
) error {
	if err := tx.MarkLessonStarted(ctx, studentID, lessonID, now); err != nil {
		return err
	}
	if len(blocks) == 0 {
		return nil
	}

	rows := make([]models.ContentBlockProgress, 0, len(blocks))
	for _, b := range blocks {
		startedAt := now
		rows = append(rows, models.ContentBlockProgress{
			StudentID:      studentID,
			ContentBlockID: b.ID,
			StartedAt:      &startedAt,
		})
	}
	return tx.BulkCreateContentBlockProgress(ctx, rows)
}

// rollup must run after the block write it reacts to, inside the same
// transaction. Aggregates are recomputed from full scans so concurrent
// rollups converge on the same result.
func (e *ProgressEngine) rollup(
	ctx context.Context,
	tx ProgressStore,
	studentID, lessonID, courseID uuid.UUID,
	blocks []models.ContentBlock,
	completedAt time.Time,
) error {
	if err := tx.LockLessonProgress(ctx, studentID, lessonID); err != nil {
		return err
	}

	blockProgress, err := tx.ListContentBlockProgress(ctx, studentID, blockIDs(blocks))
	if err != nil {
		return err
	}
	if allBlocksCompleted(blocks, blockProgress) {
		if err := tx.MarkLessonCompleted(ctx, studentID, lessonID, completedAt); err != nil {
			return err
		}
		e.log.Debug("lesson completed", "student_id", studentID, "lesson_id", lessonID)
	}

	lessons, err := e.catalog.GetLessonsForCourse(ctx, courseID)
	if err != nil {
		return err
	}

	lessonIDs := make([]uuid.UUID, 0, len(lessons))
	for _, l := range lessons {
		lessonIDs = append(lessonIDs, l.ID)
	}

	completed := 0
	if len(lessonIDs) > 0 {
		lessonProgress, err := tx.ListLessonProgress(ctx, studentID, lessonIDs)
		if err != nil {
			return err
		}
		completed = countCompletedLessons(lessonIDs, lessonProgress)
	}

	percentage := coursePercentage(completed, len(lessonIDs))

	course, err := tx.GetCourseProgress(ctx, studentID, courseID)
	if err != nil {
		return err
	}

	var courseCompletedAt *time.Time
	if len(lessonIDs) > 0 && completed == len(lessonIDs) {
		if course != nil && course.CompletedAt != nil {
			courseCompletedAt = course.CompletedAt
		} else {
			t := completedAt
			courseCompletedAt = &t
		}
	}

	if err := tx.SaveCourseRollup(ctx, studentID, courseID, percentage, courseCompletedAt, e.now()); err != nil {
		return err
	}

	e.log.Debug("course progress recomputed",
		"student_id", studentID,
		"course_id", courseID,
		"completed_lessons", completed,
		"total_lessons", len(lessonIDs),
		"percentage", percentage,
	)
	if courseCompletedAt != nil && (course == nil || course.CompletedAt == nil) {
		e.log.Info("course completed", "student_id", studentID, "course_id", courseID)
	}
	return nil
}

func (e *ProgressEngine) resolveLesson(ctx context.Context, ref string) (*models.Lesson, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return e.catalog.GetLessonByID(ctx, id)
	}
	return e.catalog.GetLessonBySlug(ctx, ref)
}

// coursePercentage is 0 for a course without lessons.
func coursePercentage(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

func allBlocksCompleted(blocks []models.ContentBlock, progress []models.ContentBlockProgress) bool {
	done := make(map[uuid.UUID]bool, len(progress))
	for _, p := range progress {
		if p.CompletedAt != nil {
			done[p.ContentBlockID] = true
		}
	}
	for _, b := range blocks {
		if !done[b.ID] {
			return false
		}
	}
	return true
}

func countCompletedLessons(lessonIDs []uuid.UUID, progress []models.LessonProgress) int {
	done := make(map[uuid.UUID]bool, len(progress))
	for _, p := range progress {
		if p.CompletedAt != nil {
			done[p.LessonID] = true
		}
	}
	n := 0
	for _, id := range lessonIDs {
		if done[id] {
			n++
		}
	}
	return n
}

func containsBlock(blocks []models.ContentBlock, id uuid.UUID) bool {
	for _, b := range blocks {
		if b.ID == id {
			return true
		}
	}
	return false
}

func blockIDs(blocks []models.ContentBlock) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(blocks))
	for _, b := range blocks {
		ids = append(ids, b.ID)
	}
	return ids
}
