package models

import (
	"time"

	"github.com/google/uuid"
)

type ProgressStatus string

const (
	StatusNotStarted ProgressStatus = "not_started"
	StatusInProgress ProgressStatus = "in_progress"
	StatusCompleted  ProgressStatus = "completed"
)

// StatusOf derives the progress status from a row's timestamps.
func StatusOf(startedAt, completedAt *time.Time) ProgressStatus {
	switch {
	case completedAt != nil:
		return StatusCompleted
	case startedAt != nil:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

type CourseProgress struct {
	ID                 uuid.UUID  `json:"id"`
	StudentID          uuid.UUID  `json:"student_id"`
	CourseID           uuid.UUID  `json:"course_id"`
	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	ProgressPercentage float64    `json:"progress_percentage"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Status is safe to call on a nil row.
func (p *CourseProgress) Status() ProgressStatus {
	if p == nil {
		return StatusNotStarted
	}
	return StatusOf(p.StartedAt, p.CompletedAt)
}

type LessonProgress struct {
	ID          uuid.UUID  `json:"id"`
	StudentID   uuid.UUID  `json:"student_id"`
	LessonID    uuid.UUID  `json:"lesson_id"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (p *LessonProgress) Status() ProgressStatus {
	if p == nil {
		return StatusNotStarted
	}
	return StatusOf(p.StartedAt, p.CompletedAt)
}

type ContentBlockProgress struct {
	ID                uuid.UUID  `json:"id"`
	StudentID         uuid.UUID  `json:"student_id"`
	ContentBlockID    uuid.UUID  `json:"content_block_id"`
	StartedAt         *time.Time `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	LastVideoPosition *float64   `json:"last_video_position"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ContentBlockProgressUpdate is a partial update. Nil fields leave the
// stored column untouched.
type ContentBlockProgressUpdate struct {
	StartedAt         *time.Time `json:"started_at"`
	CompletedAt       *time.Time `json:"completed_at"`
	LastVideoPosition *float64   `json:"last_video_position" validate:"omitempty,gte=0"`
}

// Apply copies the present fields of u onto p.
func (u ContentBlockProgressUpdate) Apply(p *ContentBlockProgress) {
	if u.StartedAt != nil {
		t := *u.StartedAt
		p.StartedAt = &t
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		p.CompletedAt = &t
	}
	if u.LastVideoPosition != nil {
		v := *u.LastVideoPosition
		p.LastVideoPosition = &v
	}
}

func (u ContentBlockProgressUpdate) IsEmpty() bool {
	return u.StartedAt == nil && u.CompletedAt == nil && u.LastVideoPosition == nil
}
