package memrepo

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"learnhub-backend/internal/models"
	"learnhub-backend/internal/services"
)

type key struct {
	student uuid.UUID
	entity  uuid.UUID
}

// ProgressStore keeps progress rows in maps. WithinTx serializes
// transactions and restores a snapshot when the callback fails.
type ProgressStore struct {
	faults

	txMu    sync.Mutex
	mu      sync.RWMutex
	courses map[key]models.CourseProgress
	lessons map[key]models.LessonProgress
	blocks  map[key]models.ContentBlockProgress

	Now func() time.Time
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		courses: make(map[key]models.CourseProgress),
		lessons: make(map[key]models.LessonProgress),
		blocks:  make(map[key]models.ContentBlockProgress),
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// txStore is handed to WithinTx callbacks; nested transactions join the
// outer one.
type txStore struct {
	*ProgressStore
}

func (t txStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx services.ProgressStore) error) error {
	return fn(ctx, t)
}

func (s *ProgressStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx services.ProgressStore) error) error {
	if err := s.enter(ctx, "WithinTx"); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	courses := maps.Clone(s.courses)
	lessons := maps.Clone(s.lessons)
	blocks := maps.Clone(s.blocks)
	s.mu.RUnlock()

	if err := fn(ctx, txStore{s}); err != nil {
		s.mu.Lock()
		s.courses, s.lessons, s.blocks = courses, lessons, blocks
		s.mu.Unlock()
		return err
	}
	return nil
}

// Course progress

func (s *ProgressStore) GetCourseProgress(ctx context.Context, studentID, courseID uuid.UUID) (*models.CourseProgress, error) {
	if err := s.enter(ctx, "GetCourseProgress"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.courses[key{studentID, courseID}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *ProgressStore) ListCourseProgress(ctx context.Context, studentID uuid.UUID, courseIDs []uuid.UUID) ([]models.CourseProgress, error) {
	if err := s.enter(ctx, "ListCourseProgress"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CourseProgress
	for _, id := range courseIDs {
		if p, ok := s.courses[key{studentID, id}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ProgressStore) CreateCourseProgress(ctx context.Context, p *models.CourseProgress) (bool, error) {
	if err := s.enter(ctx, "CreateCourseProgress"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{p.StudentID, p.CourseID}
	if _, ok := s.courses[k]; ok {
		return false, nil
	}
	now := s.Now()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.courses[k] = *p
	return true, nil
}

func (s *ProgressStore) SaveCourseRollup(ctx context.Context, studentID, courseID uuid.UUID, percentage float64, completedAt *time.Time, startedAt time.Time) error {
	if err := s.enter(ctx, "SaveCourseRollup"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	k := key{studentID, courseID}
	p, ok := s.courses[k]
	if !ok {
		started := startedAt
		p = models.CourseProgress{
			ID:        uuid.New(),
			StudentID: studentID,
			CourseID:  courseID,
			StartedAt: &started,
			CreatedAt: now,
		}
	}
	p.ProgressPercentage = percentage
	p.CompletedAt = copyTime(completedAt)
	p.UpdatedAt = now
	s.courses[k] = p
	return nil
}

// Lesson progress

func (s *ProgressStore) GetLessonProgress(ctx context.Context, studentID, lessonID uuid.UUID) (*models.LessonProgress, error) {
	if err := s.enter(ctx, "GetLessonProgress"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.lessons[key{studentID, lessonID}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *ProgressStore) ListLessonProgress(ctx context.Context, studentID uuid.UUID, lessonIDs []uuid.UUID) ([]models.LessonProgress, error) {
	if err := s.enter(ctx, "ListLessonProgress"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.LessonProgress
	for _, id := range lessonIDs {
		if p, ok := s.lessons[key{studentID, id}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ProgressStore) BulkCreateLessonProgress(ctx context.Context, rows []models.LessonProgress) error {
	if err := s.enter(ctx, "BulkCreateLessonProgress"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	for _, r := range rows {
		k := key{r.StudentID, r.LessonID}
		if _, ok := s.lessons[k]; ok {
			continue
		}
		r.ID = uuid.New()
		r.CreatedAt = now
		r.UpdatedAt = now
		s.lessons[k] = r
	}
	return nil
}

func (s *ProgressStore) MarkLessonStarted(ctx context.Context, studentID, lessonID uuid.UUID, at time.Time) error {
	if err := s.enter(ctx, "MarkLessonStarted"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	k := key{studentID, lessonID}
	p, ok := s.lessons[k]
	if !ok {
		p = models.LessonProgress{ID: uuid.New(), StudentID: studentID, LessonID: lessonID, CreatedAt: now}
	}
	if p.StartedAt == nil {
		started := at
		p.StartedAt = &started
	}
	p.UpdatedAt = now
	s.lessons[k] = p
	return nil
}

func (s *ProgressStore) MarkLessonCompleted(ctx context.Context, studentID, lessonID uuid.UUID, at time.Time) error {
	if err := s.enter(ctx, "MarkLessonCompleted"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{studentID, lessonID}
	p, ok := s.lessons[k]
	if !ok || p.CompletedAt != nil {
		return nil
	}
	completed := at
	p.CompletedAt = &completed
	p.UpdatedAt = s.Now()
	s.lessons[k] = p
	return nil
}

// LockLessonProgress is a no-op: WithinTx already serializes transactions.
func (s *ProgressStore) LockLessonProgress(ctx context.Context, studentID, lessonID uuid.UUID) error {
	return s.enter(ctx, "LockLessonProgress")
}

// Content block progress

func (s *ProgressStore) ListContentBlockProgress(ctx context.Context, studentID uuid.UUID, blockIDs []uuid.UUID) ([]models.ContentBlockProgress, error) {
	if err := s.enter(ctx, "ListContentBlockProgress"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ContentBlockProgress
	for _, id := range blockIDs {
		if p, ok := s.blocks[key{studentID, id}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ProgressStore) BulkCreateContentBlockProgress(ctx context.Context, rows []models.ContentBlockProgress) error {
	if err := s.enter(ctx, "BulkCreateContentBlockProgress"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	for _, r := range rows {
		k := key{r.StudentID, r.ContentBlockID}
		if _, ok := s.blocks[k]; ok {
			continue
		}
		r.ID = uuid.New()
		r.CreatedAt = now
		r.UpdatedAt = now
		s.blocks[k] = r
	}
	return nil
}

func (s *ProgressStore) UpdateContentBlockProgress(ctx context.Context, studentID, blockID uuid.UUID, update models.ContentBlockProgressUpdate) (*models.ContentBlockProgress, error) {
	if err := s.enter(ctx, "UpdateContentBlockProgress"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{studentID, blockID}
	p, ok := s.blocks[k]
	if !ok {
		return nil, nil
	}
	update.Apply(&p)
	p.UpdatedAt = s.Now()
	s.blocks[k] = p
	return &p, nil
}

// Inspection helpers for tests.

func (s *ProgressStore) CourseRowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.courses)
}

func (s *ProgressStore) LessonRowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lessons)
}

func (s *ProgressStore) BlockRowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
