package memrepo

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"learnhub-backend/internal/models"
)

type Catalog struct {
	faults

	mu      sync.RWMutex
	courses []models.Course
	modules []models.Module
	lessons []models.Lesson
	blocks  []models.ContentBlock
}

func NewCatalog() *Catalog {
	return &Catalog{}
}

func (c *Catalog) AddCourse(course models.Course) models.Course {
	if course.ID == uuid.Nil {
		course.ID = uuid.New()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courses = append(c.courses, course)
	return course
}

func (c *Catalog) AddModule(m models.Module) models.Module {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules = append(c.modules, m)
	return m
}

// AddLesson fills CourseID from the owning module.
func (c *Catalog) AddLesson(l models.Lesson) models.Lesson {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.modules {
		if m.ID == l.ModuleID {
			l.CourseID = m.CourseID
		}
	}
	c.lessons = append(c.lessons, l)
	return l
}

func (c *Catalog) AddContentBlock(b models.ContentBlock) models.ContentBlock {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Type == "" {
		b.Type = models.ContentBlockText
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blocks = append(c.blocks, b)
	return b
}

func (c *Catalog) GetCoursesByIDs(ctx context.Context, courseIDs []uuid.UUID) ([]models.Course, error) {
	if err := c.enter(ctx, "GetCoursesByIDs"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Course
	for _, course := range c.courses {
		if slices.Contains(courseIDs, course.ID) {
			out = append(out, course)
		}
	}
	return out, nil
}

func (c *Catalog) GetLessonsForCourse(ctx context.Context, courseID uuid.UUID) ([]models.Lesson, error) {
	if err := c.enter(ctx, "GetLessonsForCourse"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flattenLessons(courseID), nil
}

func (c *Catalog) GetContentBlocksForLesson(ctx context.Context, lessonID uuid.UUID) ([]models.ContentBlock, error) {
	if err := c.enter(ctx, "GetContentBlocksForLesson"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.ContentBlock
	for _, b := range c.blocks {
		if b.LessonID == lessonID {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, func(a, b models.ContentBlock) int { return a.Order - b.Order })
	return out, nil
}

func (c *Catalog) GetModuleTreeForCourseSlug(ctx context.Context, slug string) (*models.CourseTree, error) {
	if err := c.enter(ctx, "GetModuleTreeForCourseSlug"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, course := range c.courses {
		if course.Slug != slug {
			continue
		}
		tree := &models.CourseTree{Course: course, Modules: []models.ModuleWithLessons{}}
		for _, m := range c.courseModules(course.ID) {
			tree.Modules = append(tree.Modules, models.ModuleWithLessons{
				Module:  m,
				Lessons: c.moduleLessons(m.ID),
			})
		}
		return tree, nil
	}
	return nil, nil
}

func (c *Catalog) GetLessonByID(ctx context.Context, lessonID uuid.UUID) (*models.Lesson, error) {
	if err := c.enter(ctx, "GetLessonByID"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, l := range c.lessons {
		if l.ID == lessonID {
			found := l
			return &found, nil
		}
	}
	return nil, nil
}

func (c *Catalog) GetLessonBySlug(ctx context.Context, slug string) (*models.Lesson, error) {
	if err := c.enter(ctx, "GetLessonBySlug"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, l := range c.lessons {
		if l.Slug == slug {
			found := l
			return &found, nil
		}
	}
	return nil, nil
}

func (c *Catalog) GetPrevNextLessons(ctx context.Context, courseID uuid.UUID, currentLessonSlug string) (*models.LessonNav, *models.LessonNav, error) {
	if err := c.enter(ctx, "GetPrevNextLessons"); err != nil {
		return nil, nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	lessons := c.flattenLessons(courseID)
	idx := slices.IndexFunc(lessons, func(l models.Lesson) bool { return l.Slug == currentLessonSlug })
	if idx < 0 {
		return nil, nil, nil
	}

	var prev, next *models.LessonNav
	if idx > 0 {
		prev = nav(lessons[idx-1])
	}
	if idx < len(lessons)-1 {
		next = nav(lessons[idx+1])
	}
	return prev, next, nil
}

func (c *Catalog) GetModuleCountsForCourses(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	if err := c.enter(ctx, "GetModuleCountsForCourses"); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[uuid.UUID]int, len(courseIDs))
	for _, id := range courseIDs {
		counts[id] = 0
	}
	for _, m := range c.modules {
		if _, ok := counts[m.CourseID]; ok {
			counts[m.CourseID]++
		}
	}
	return counts, nil
}

func (c *Catalog) courseModules(courseID uuid.UUID) []models.Module {
	var out []models.Module
	for _, m := range c.modules {
		if m.CourseID == courseID {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Module) int { return a.Order - b.Order })
	return out
}

func (c *Catalog) moduleLessons(moduleID uuid.UUID) []models.Lesson {
	out := []models.Lesson{}
	for _, l := range c.lessons {
		if l.ModuleID == moduleID {
			out = append(out, l)
		}
	}
	slices.SortStableFunc(out, func(a, b models.Lesson) int { return a.Order - b.Order })
	return out
}

// flattenLessons orders by module order, then lesson order.
func (c *Catalog) flattenLessons(courseID uuid.UUID) []models.Lesson {
	var out []models.Lesson
	for _, m := range c.courseModules(courseID) {
		out = append(out, c.moduleLessons(m.ID)...)
	}
	return out
}

func nav(l models.Lesson) *models.LessonNav {
	return &models.LessonNav{ID: l.ID, Slug: l.Slug, Title: l.Title}
}
