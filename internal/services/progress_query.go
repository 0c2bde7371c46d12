package services

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"learnhub-backend/internal/models"
)

// ProgressQueryService assembles the read-side views. It never mutates
// progress state.
type ProgressQueryService struct {
	catalog    CatalogReader
	enrollment EnrollmentResolver
	store      ProgressStore
}

func NewProgressQueryService(catalog CatalogReader, enrollment EnrollmentResolver, store ProgressStore) *ProgressQueryService {
	return &ProgressQueryService{
		catalog:    catalog,
		enrollment: enrollment,
		store:      store,
	}
}

// ListStudentCourses returns one summary per enrolled course, in catalog order.
func (s *ProgressQueryService) ListStudentCourses(ctx context.Context, studentID uuid.UUID) ([]models.StudentCourse, error) {
	courseIDs, err := s.enrollment.GetEnrolledCourseIDs(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if len(courseIDs) == 0 {
		return []models.StudentCourse{}, nil
	}

	var (
		courses      []models.Course
		progress     []models.CourseProgress
		moduleCounts map[uuid.UUID]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		courses, err = s.catalog.GetCoursesByIDs(gctx, courseIDs)
		return err
	})
	g.Go(func() error {
		var err error
		progress, err = s.store.ListCourseProgress(gctx, studentID, courseIDs)
		return err
	})
	g.Go(func() error {
		var err error
		moduleCounts, err = s.catalog.GetModuleCountsForCourses(gctx, courseIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byCourse := make(map[uuid.UUID]*models.CourseProgress, len(progress))
	for i := range progress {
		byCourse[progress[i].CourseID] = &progress[i]
	}

	result := make([]models.StudentCourse, 0, len(courses))
	for _, c := range courses {
		result = append(result, studentCourse(c, moduleCounts[c.ID], byCourse[c.ID]))
	}
	return result, nil
}

// GetCourseDetails returns nil when the slug does not resolve.
func (s *ProgressQueryService) GetCourseDetails(ctx context.Context, studentID uuid.UUID, courseSlug string) (*models.CourseDetails, error) {
	tree, err := s.catalog.GetModuleTreeForCourseSlug(ctx, courseSlug)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, nil
	}

	modules := slices.Clone(tree.Modules)
	slices.SortStableFunc(modules, func(a, b models.ModuleWithLessons) int {
		return a.Module.Order - b.Module.Order
	})

	var lessonIDs []uuid.UUID
	for i := range modules {
		lessons := slices.Clone(modules[i].Lessons)
		slices.SortStableFunc(lessons, func(a, b models.Lesson) int {
			return a.Order - b.Order
		})
		modules[i].Lessons = lessons
		for _, l := range lessons {
			lessonIDs = append(lessonIDs, l.ID)
		}
	}

	var (
		courseProgress *models.CourseProgress
		lessonProgress []models.LessonProgress
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		courseProgress, err = s.store.GetCourseProgress(gctx, studentID, tree.Course.ID)
		return err
	})
	if len(lessonIDs) > 0 {
		g.Go(func() error {
			var err error
			lessonProgress, err = s.store.ListLessonProgress(gctx, studentID, lessonIDs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byLesson := make(map[uuid.UUID]models.LessonProgress, len(lessonProgress))
	for _, lp := range lessonProgress {
		byLesson[lp.LessonID] = lp
	}

	summaries := make([]models.ModuleWithLessonSummaries, 0, len(modules))
	for _, m := range modules {
		lessons := make([]models.LessonSummary, 0, len(m.Lessons))
		for _, l := range m.Lessons {
			lp, ok := byLesson[l.ID]
			lessons = append(lessons, models.LessonSummary{
				ID:                l.ID,
				Slug:              l.Slug,
				Title:             l.Title,
				EstimatedDuration: l.EstimatedDuration,
				IsCompleted:       ok && lp.CompletedAt != nil,
				IsStarted:         ok && lp.StartedAt != nil,
			})
		}
		summaries = append(summaries, models.ModuleWithLessonSummaries{
			Module: models.ModuleSummary{
				ID:                m.Module.ID,
				Slug:              m.Module.Slug,
				Title:             m.Module.Title,
				EstimatedDuration: m.Module.EstimatedDuration,
			},
			Lessons: lessons,
		})
	}

	return &models.CourseDetails{
		StudentCourse: studentCourse(tree.Course, len(modules), courseProgress),
		Modules:       summaries,
	}, nil
}

// GetLessonDetails returns nil when the slug does not resolve.
func (s *ProgressQueryService) GetLessonDetails(ctx context.Context, studentID uuid.UUID, lessonSlug string) (*models.LessonDetails, error) {
	lesson, err := s.catalog.GetLessonBySlug(ctx, lessonSlug)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, nil
	}

	details := &models.LessonDetails{
		Lesson:               *lesson,
		CourseID:             lesson.CourseID,
		ContentBlocks:        []models.ContentBlock{},
		ContentBlockProgress: []models.ContentBlockProgress{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		blocks, err := s.catalog.GetContentBlocksForLesson(gctx, lesson.ID)
		if err != nil {
			return err
		}
		if len(blocks) == 0 {
			return nil
		}
		progress, err := s.store.ListContentBlockProgress(gctx, studentID, blockIDs(blocks))
		if err != nil {
			return err
		}
		details.ContentBlocks = blocks
		if progress != nil {
			details.ContentBlockProgress = progress
		}
		return nil
	})
	g.Go(func() error {
		lp, err := s.store.GetLessonProgress(gctx, studentID, lesson.ID)
		if err != nil {
			return err
		}
		details.LessonProgress = lp
		return nil
	})
	g.Go(func() error {
		prev, next, err := s.catalog.GetPrevNextLessons(gctx, lesson.CourseID, lesson.Slug)
		if err != nil {
			return err
		}
		details.PrevLesson = prev
		details.NextLesson = next
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return details, nil
}

// GetContentBlockProgressByLesson lists the student's progress rows for
// the blocks of a lesson. Missing rows are simply absent from the result.
func (s *ProgressQueryService) GetContentBlockProgressByLesson(ctx context.Context, studentID, lessonID uuid.UUID) ([]models.ContentBlockProgress, error) {
	blocks, err := s.catalog.GetContentBlocksForLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return []models.ContentBlockProgress{}, nil
	}

	progress, err := s.store.ListContentBlockProgress(ctx, studentID, blockIDs(blocks))
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = []models.ContentBlockProgress{}
	}
	return progress, nil
}

func (s *ProgressQueryService) GetStudentDashboard(ctx context.Context, studentID uuid.UUID) (*models.StudentDashboard, error) {
	courses, err := s.ListStudentCourses(ctx, studentID)
	if err != nil {
		return nil, err
	}

	dashboard := &models.StudentDashboard{
		CurrentCourses:        []models.StudentCourse{},
		TotalAvailableCourses: len(courses),
	}
	for _, c := range courses {
		switch c.Status {
		case models.StatusInProgress:
			dashboard.CurrentCourses = append(dashboard.CurrentCourses, c)
			dashboard.CoursesInProgress++
		case models.StatusCompleted:
			dashboard.CoursesCompleted++
		}
	}
	return dashboard, nil
}

func studentCourse(course models.Course, moduleCount int, progress *models.CourseProgress) models.StudentCourse {
	sc := models.StudentCourse{
		Course:      course,
		ModuleCount: moduleCount,
		Status:      progress.Status(),
	}
	if progress != nil {
		sc.ProgressPercentage = models.Percentage(progress.ProgressPercentage)
	}
	return sc
}
