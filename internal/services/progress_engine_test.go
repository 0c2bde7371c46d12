package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/repository/memrepo"
	"learnhub-backend/internal/services"
)

// fixture is a course with one module and two lessons: L1 holds blocks
// B1 and B2, L2 holds B3.
type fixture struct {
	catalog    *memrepo.Catalog
	enrollment *memrepo.Enrollment
	store      *memrepo.ProgressStore
	engine     *services.ProgressEngine
	queries    *services.ProgressQueryService

	student uuid.UUID
	course  models.Course
	module  models.Module
	l1, l2  models.Lesson
	b1, b2  models.ContentBlock
	b3      models.ContentBlock
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		catalog:    memrepo.NewCatalog(),
		enrollment: memrepo.NewEnrollment(),
		store:      memrepo.NewProgressStore(),
		student:    uuid.New(),
		clock:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	f.course = f.catalog.AddCourse(models.Course{Slug: "go-basics", Title: "Go Basics"})
	f.module = f.catalog.AddModule(models.Module{CourseID: f.course.ID, Order: 1, Slug: "intro", Title: "Intro"})
	f.l1 = f.catalog.AddLesson(models.Lesson{ModuleID: f.module.ID, Order: 1, Slug: "hello", Title: "Hello"})
	f.l2 = f.catalog.AddLesson(models.Lesson{ModuleID: f.module.ID, Order: 2, Slug: "types", Title: "Types"})
	f.b1 = f.catalog.AddContentBlock(models.ContentBlock{LessonID: f.l1.ID, Order: 1, Title: "Reading"})
	f.b2 = f.catalog.AddContentBlock(models.ContentBlock{LessonID: f.l1.ID, Order: 2, Type: models.ContentBlockVideo, Title: "Video"})
	f.b3 = f.catalog.AddContentBlock(models.ContentBlock{LessonID: f.l2.ID, Order: 1, Title: "Reading"})
	f.enrollment.Enroll(f.student, f.course.ID)

	f.engine = services.NewProgressEngine(f.catalog, f.store, nil)
	f.engine.SetClock(func() time.Time { return f.clock })
	f.queries = services.NewProgressQueryService(f.catalog, f.enrollment, f.store)
	return f
}

func (f *fixture) complete(t *testing.T, lesson models.Lesson, block models.ContentBlock, at time.Time) *models.ContentBlockProgress {
	t.Helper()
	p, err := f.engine.RecordContentBlockProgress(context.Background(), f.student, lesson.ID, f.course.ID, block.ID,
		models.ContentBlockProgressUpdate{CompletedAt: &at})
	require.NoError(t, err)
	return p
}

func (f *fixture) courseProgress(t *testing.T) *models.CourseProgress {
	t.Helper()
	p, err := f.store.GetCourseProgress(context.Background(), f.student, f.course.ID)
	require.NoError(t, err)
	return p
}

func (f *fixture) lessonProgress(t *testing.T, lesson models.Lesson) *models.LessonProgress {
	t.Helper()
	p, err := f.store.GetLessonProgress(context.Background(), f.student, lesson.ID)
	require.NoError(t, err)
	return p
}

func TestStartCourse_ProvisionsCourseAndLessons(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.StartCourse(ctx, f.student, f.course.ID))

	cp := f.courseProgress(t)
	require.NotNil(t, cp)
	assert.Equal(t, 0.0, cp.ProgressPercentage)
	assert.Nil(t, cp.CompletedAt)
	require.NotNil(t, cp.StartedAt)
	assert.True(t, cp.StartedAt.Equal(f.clock))

	assert.Equal(t, 2, f.store.LessonRowCount())
	for _, l := range []models.Lesson{f.l1, f.l2} {
		lp := f.lessonProgress(t, l)
		require.NotNil(t, lp)
		assert.Nil(t, lp.StartedAt)
		assert.Nil(t, lp.CompletedAt)
	}
	assert.Equal(t, 1, f.store.Calls("BulkCreateLessonProgress"))
}

func TestStartCourse_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.StartCourse(ctx, f.student, f.course.ID))
	first := f.courseProgress(t)

	f.clock = f.clock.Add(time.Hour)
	require.NoError(t, f.engine.StartCourse(ctx, f.student, f.course.ID))

	assert.Equal(t, 1, f.store.CourseRowCount())
	assert.Equal(t, 2, f.store.LessonRowCount())
	assert.Equal(t, first.StartedAt, f.courseProgress(t).StartedAt)
	assert.Equal(t, 1, f.store.Calls("BulkCreateLessonProgress"))
}

func TestStartCourse_UnknownCourse(t *testing.T) {
	f := newFixture(t)

	err := f.engine.StartCourse(context.Background(), f.student, uuid.New())
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrNotFound)
	assert.Equal(t, 0, f.store.CourseRowCount())
}

func TestStartCourse_CourseWithoutLessons(t *testing.T) {
	f := newFixture(t)
	empty := f.catalog.AddCourse(models.Course{Slug: "empty", Title: "Empty"})

	require.NoError(t, f.engine.StartCourse(context.Background(), f.student, empty.ID))

	assert.Equal(t, 1, f.store.CourseRowCount())
	assert.Equal(t, 0, f.store.LessonRowCount())
}

func TestStartCourse_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	f.store.Fail("BulkCreateLessonProgress", services.NewStoreError("bulk insert", errors.New("connection reset")))

	err := f.engine.StartCourse(context.Background(), f.student, f.course.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrStoreFailure)

	assert.Equal(t, 0, f.store.CourseRowCount())
	assert.Equal(t, 0, f.store.LessonRowCount())
}

func TestStartLesson_BySlugAndID(t *testing.T) {
	tests := []struct {
		name string
		ref  func(f *fixture) string
	}{
		{"by slug", func(f *fixture) string { return f.l1.Slug }},
		{"by id", func(f *fixture) string { return f.l1.ID.String() }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			rows, err := f.engine.StartLesson(context.Background(), f.student, tc.ref(f))
			require.NoError(t, err)
			require.Len(t, rows, 2)
			for _, r := range rows {
				require.NotNil(t, r.StartedAt)
				assert.True(t, r.StartedAt.Equal(f.clock))
				assert.Nil(t, r.CompletedAt)
				assert.Nil(t, r.LastVideoPosition)
			}

			lp := f.lessonProgress(t, f.l1)
			require.NotNil(t, lp)
			require.NotNil(t, lp.StartedAt)
			assert.True(t, lp.StartedAt.Equal(f.clock))
		})
	}
}

func TestStartLesson_KeepsFirstStartAndExistingBlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	firstStart := f.clock

	_, err := f.engine.StartLesson(ctx, f.student, f.l1.Slug)
	require.NoError(t, err)

	pos := 42.5
	_, err = f.engine.RecordContentBlockProgress(ctx, f.student, f.l1.ID, f.course.ID, f.b2.ID,
		models.ContentBlockProgressUpdate{LastVideoPosition: &pos})
	require.NoError(t, err)

	f.clock = f.clock.Add(24 * time.Hour)
	rows, err := f.engine.StartLesson(ctx, f.student, f.l1.Slug)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	lp := f.lessonProgress(t, f.l1)
	assert.True(t, lp.StartedAt.Equal(firstStart))
	assert.Equal(t, 2, f.store.BlockRowCount())

	for _, r := range rows {
		if r.ContentBlockID == f.b2.ID {
			require.NotNil(t, r.LastVideoPosition)
			assert.Equal(t, pos, *r.LastVideoPosition)
		}
	}
}

func TestStartLesson_UnknownLesson(t *testing.T) {
	f := newFixture(t)

	for _, ref := range []string{"no-such-lesson", uuid.NewString()} {
		_, err := f.engine.StartLesson(context.Background(), f.student, ref)
		assert.ErrorIs(t, err, services.ErrNotFound, ref)
	}
	assert.Equal(t, 0, f.store.LessonRowCount())
}

func TestStartLesson_LessonWithoutBlocks(t *testing.T) {
	f := newFixture(t)
	l3 := f.catalog.AddLesson(models.Lesson{ModuleID: f.module.ID, Order: 3, Slug: "empty", Title: "Empty"})

	rows, err := f.engine.StartLesson(context.Background(), f.student, l3.Slug)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NotNil(t, f.lessonProgress(t, l3).StartedAt)
}

func TestRecordContentBlockProgress_PartialUpdateKeepsOtherFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.StartLesson(ctx, f.student, f.l1.Slug)
	require.NoError(t, err)

	done := f.clock.Add(10 * time.Minute)
	f.complete(t, f.l1, f.b2, done)

	pos := 120.0
	p, err := f.engine.RecordContentBlockProgress(ctx, f.student, f.l1.ID, f.course.ID, f.b2.ID,
		models.ContentBlockProgressUpdate{LastVideoPosition: &pos})
	require.NoError(t, err)

	require.NotNil(t, p.CompletedAt)
	assert.True(t, p.CompletedAt.Equal(done))
	require.NotNil(t, p.StartedAt)
	assert.True(t, p.StartedAt.Equal(f.clock))
	require.NotNil(t, p.LastVideoPosition)
	assert.Equal(t, pos, *p.LastVideoPosition)
}

func TestRecordContentBlockProgress_WithoutCompletionSkipsRollup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.StartLesson(ctx, f.student, f.l1.Slug)
	require.NoError(t, err)

	pos := 3.0
	_, err = f.engine.RecordContentBlockProgress(ctx, f.student, f.l1.ID, f.course.ID, f.b2.ID,
		models.ContentBlockProgressUpdate{LastVideoPosition: &pos})
	require.NoError(t, err)

	assert.Equal(t, 0, f.store.Calls("LockLessonProgress"))
	assert.Equal(t, 0, f.store.Calls("MarkLessonCompleted"))
	assert.Equal(t, 0, f.store.Calls("SaveCourseRollup"))
}

func TestRecordContentBlockProgress_LessonCompletesWhenAllBlocksDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.StartCourse(ctx, f.student, f.course.ID))
	_, err := f.engine.StartLesson(ctx, f.student, f.l1.Slug)
	require.NoError(t, err)

	t1 := f.clock.Add(5 * time.Minute)
	f.complete(t, f.l1, f.b1, t1)
	assert.Nil(t, f.lessonProgress(t, f.l1).CompletedAt)
	assert.Equal(t, 0.0, f.courseProgress(t).ProgressPercentage)

	t2 := f.clock.Add(15 * time.Minute)
	f.complete(t, f.l1, f.b2, t2)

	lp := f.lessonProgress(t, f.l1)
	require.NotNil(t, lp.CompletedAt)
	assert.True(t, lp.CompletedAt.Equal(t2))

	cp := f.courseProgress(t)
	assert.InDelta(t, 50.0, cp.ProgressPercentage, 1e-9)
	assert.Nil(t, cp.CompletedAt)
	assert.Equal(t, models.StatusInProgress, cp.Status())
}

func TestRecordContentBlockProgress_CourseCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.StartCourse(ctx, f.student, f.course.ID))

	t1 := f.clock.Add(time.Minute)
	t2 := f.clock.Add(2 * time.Minute)
	t3 := f.clock.Add(3 * time.Minute)
	f.complete(t, f.l1, f.b1, t1)
	f.complete(t, f.l1, f.b2, t2)
	f.complete(t, f.l2, f.b3, t3)

	cp := f.courseProgress(t)
	assert.InDelta(t, 100.0, cp.ProgressPercentage, 1e-9)
	require.NotNil(t, cp.CompletedAt)
	assert.True(t, cp.CompletedAt.Equal(t3))
	assert.Equal(t, models.StatusCompleted, cp.Status())

	// Re-completing a block keeps the original course completion time.
	f.complete(t, f.l2, f.b3, t3.Add(time.Hour))
	cp = f.courseProgress(t)
	assert.True(t, cp.CompletedAt.Equal(t3))
	assert.True(t, f.lessonProgress(t, f.l2).CompletedAt.Equal(t3))
}

func TestRecordContentBlockProgress_ThreeLessonPercentages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l3 := f.catalog.AddLesson(models.Lesson{ModuleID: f.module.ID, Order: 3, Slug: "funcs", Title: "Funcs"})
	b4 := f.catalog.AddContentBlock(models.ContentBlock{LessonID: l3.ID, Order: 1, Title: "Reading"})
	require.NoError(t, f.engine.StartCourse(ctx, f.student, f.course.ID))

	f.complete(t, f.l1, f.b1, f.clock)
	f.complete(t, f.l1, f.b2, f.clock)
	f.complete(t, f.l2, f.b3, f.clock)
	assert.InDelta(t, 66.666666, f.courseProgress(t).ProgressPercentage, 1e-4)
	assert.Nil(t, f.courseProgress(t).CompletedAt)

	f.complete(t, l3, b4, f.clock)
	assert.Equal(t, 100.0, f.courseProgress(t).ProgressPercentage)
	assert.NotNil(t, f.courseProgress(t).CompletedAt)
}

func TestRecordContentBlockProgress_AutoProvisionsUnstartedLesson(t *testing.T) {
	f := newFixture(t)

	done := f.clock.Add(time.Minute)
	p := f.complete(t, f.l2, f.b3, done)
	require.NotNil(t, p)
	require.NotNil(t, p.StartedAt)
	assert.True(t, p.StartedAt.Equal(f.clock))

	lp := f.lessonProgress(t, f.l2)
	require.NotNil(t, lp)
	assert.NotNil(t, lp.StartedAt)
	assert.True(t, lp.CompletedAt.Equal(done))

	// The rollup creates the course row when the course was never started.
	cp := f.courseProgress(t)
	require.NotNil(t, cp)
	assert.InDelta(t, 50.0, cp.ProgressPercentage, 1e-9)
}

func TestRecordContentBlockProgress_NotFound(t *testing.T) {
	f := newFixture(t)
	other := f.catalog.AddCourse(models.Course{Slug: "other", Title: "Other"})
	ctx := context.Background()
	now := f.clock
	update := models.ContentBlockProgressUpdate{CompletedAt: &now}

	tests := []struct {
		name                    string
		lesson, course, blockID uuid.UUID
	}{
		{"unknown lesson", uuid.New(), f.course.ID, f.b1.ID},
		{"lesson of another course", f.l1.ID, other.ID, f.b1.ID},
		{"unknown block", f.l1.ID, f.course.ID, uuid.New()},
		{"block of another lesson", f.l1.ID, f.course.ID, f.b3.ID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.RecordContentBlockProgress(ctx, f.student, tc.lesson, tc.course, tc.blockID, update)
			assert.ErrorIs(t, err, services.ErrNotFound)
		})
	}
	assert.Equal(t, 0, f.store.BlockRowCount())
}

func TestRecordContentBlockProgress_RollbackOnRollupFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.StartCourse(ctx, f.student, f.course.ID))
	_, err := f.engine.StartLesson(ctx, f.student, f.l2.Slug)
	require.NoError(t, err)

	f.store.Fail("SaveCourseRollup", services.NewStoreError("save course rollup", errors.New("deadlock detected")))
	done := f.clock.Add(time.Minute)
	_, err = f.engine.RecordContentBlockProgress(ctx, f.student, f.l2.ID, f.course.ID, f.b3.ID,
		models.ContentBlockProgressUpdate{CompletedAt: &done})
	require.Error(t, err)

	var storeErr *services.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "save course rollup", storeErr.Op)

	// Neither the block write nor the lesson completion survived.
	rows, err := f.store.ListContentBlockProgress(ctx, f.student, []uuid.UUID{f.b3.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].CompletedAt)
	assert.Nil(t, f.lessonProgress(t, f.l2).CompletedAt)
	assert.Equal(t, 0.0, f.courseProgress(t).ProgressPercentage)

	f.store.Clear()
	f.complete(t, f.l2, f.b3, done)
	assert.InDelta(t, 50.0, f.courseProgress(t).ProgressPercentage, 1e-9)
}

func TestRecordContentBlockProgress_CanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	now := f.clock
	_, err := f.engine.RecordContentBlockProgress(ctx, f.student, f.l1.ID, f.course.ID, f.b1.ID,
		models.ContentBlockProgressUpdate{CompletedAt: &now})
	assert.ErrorIs(t, err, context.Canceled)
}

// The concrete walkthrough: S starts C, opens L1, finishes B1 then B2 and
// the lesson and course roll up; L2 stays untouched.
func TestProgressWalkthrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.StartCourse(ctx, f.student, f.course.ID))
	assert.Equal(t, 0.0, f.courseProgress(t).ProgressPercentage)
	assert.Nil(t, f.lessonProgress(t, f.l1).StartedAt)
	assert.Nil(t, f.lessonProgress(t, f.l2).StartedAt)

	rows, err := f.engine.StartLesson(ctx, f.student, f.l1.Slug)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	t1 := f.clock.Add(5 * time.Minute)
	f.complete(t, f.l1, f.b1, t1)
	assert.Nil(t, f.lessonProgress(t, f.l1).CompletedAt)
	assert.Equal(t, 0.0, f.courseProgress(t).ProgressPercentage)

	t2 := f.clock.Add(9 * time.Minute)
	f.complete(t, f.l1, f.b2, t2)
	assert.True(t, f.lessonProgress(t, f.l1).CompletedAt.Equal(t2))
	assert.InDelta(t, 50.0, f.courseProgress(t).ProgressPercentage, 1e-9)

	l2 := f.lessonProgress(t, f.l2)
	assert.Nil(t, l2.StartedAt)
	assert.Nil(t, l2.CompletedAt)
	assert.Equal(t, models.StatusNotStarted, l2.Status())

	details, err := f.queries.GetCourseDetails(ctx, f.student, f.course.Slug)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, models.Percentage(50), details.StudentCourse.ProgressPercentage)
	assert.Equal(t, models.StatusInProgress, details.StudentCourse.Status)
	require.Len(t, details.Modules, 1)
	require.Len(t, details.Modules[0].Lessons, 2)
	assert.True(t, details.Modules[0].Lessons[0].IsCompleted)
	assert.False(t, details.Modules[0].Lessons[1].IsStarted)
}

// Completion never flows downwards: finishing a course's last block must
// not touch rows of other lessons or blocks.
func TestRecordContentBlockProgress_NoDownwardCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.StartCourse(ctx, f.student, f.course.ID))
	_, err := f.engine.StartLesson(ctx, f.student, f.l1.Slug)
	require.NoError(t, err)

	f.complete(t, f.l2, f.b3, f.clock)

	rows, err := f.store.ListContentBlockProgress(ctx, f.student, []uuid.UUID{f.b1.ID, f.b2.ID})
	require.NoError(t, err)
	for _, r := range rows {
		assert.Nil(t, r.CompletedAt)
	}
	assert.Nil(t, f.lessonProgress(t, f.l1).CompletedAt)
	assert.Equal(t, 1, f.store.Calls("MarkLessonCompleted"))
}
