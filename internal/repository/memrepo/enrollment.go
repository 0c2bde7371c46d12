package memrepo

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type Enrollment struct {
	faults

	mu      sync.RWMutex
	courses map[uuid.UUID][]uuid.UUID
}

func NewEnrollment() *Enrollment {
	return &Enrollment{courses: make(map[uuid.UUID][]uuid.UUID)}
}

func (e *Enrollment) Enroll(studentID uuid.UUID, courseIDs ...uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.courses[studentID] = append(e.courses[studentID], courseIDs...)
}

func (e *Enrollment) GetEnrolledCourseIDs(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error) {
	if err := e.enter(ctx, "GetEnrolledCourseIDs"); err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]uuid.UUID(nil), e.courses[studentID]...), nil
}
