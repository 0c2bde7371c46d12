package models

import (
	"time"

	"github.com/google/uuid"
)

type ContentBlockType string

const (
	ContentBlockText  ContentBlockType = "text"
	ContentBlockVideo ContentBlockType = "video"
)

type Course struct {
	ID                uuid.UUID `json:"id"`
	Slug              string    `json:"slug"`
	Title             string    `json:"title"`
	Description       *string   `json:"description"`
	EstimatedDuration *int      `json:"estimated_duration"`
	Language          string    `json:"language"`
	Status            string    `json:"status"`
	Tags              []string  `json:"tags"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Module struct {
	ID                uuid.UUID `json:"id"`
	CourseID          uuid.UUID `json:"course_id"`
	Order             int       `json:"order"`
	Slug              string    `json:"slug"`
	Title             string    `json:"title"`
	Description       *string   `json:"description"`
	EstimatedDuration *int      `json:"estimated_duration"`
}

// Lesson carries the id of its owning course so callers can navigate
// upwards without a second catalog lookup.
type Lesson struct {
	ID                uuid.UUID `json:"id"`
	ModuleID          uuid.UUID `json:"module_id"`
	CourseID          uuid.UUID `json:"course_id"`
	Order             int       `json:"order"`
	Slug              string    `json:"slug"`
	Title             string    `json:"title"`
	Summary           *string   `json:"summary"`
	EstimatedDuration *int      `json:"estimated_duration"`
}

// ContentBlock is either a text block (Content) or a video block (VideoURL).
type ContentBlock struct {
	ID       uuid.UUID        `json:"id"`
	LessonID uuid.UUID        `json:"lesson_id"`
	Order    int              `json:"order"`
	Type     ContentBlockType `json:"type"`
	Title    string           `json:"title"`
	Content  *string          `json:"content,omitempty"`
	VideoURL *string          `json:"video_url,omitempty"`
}

type ModuleWithLessons struct {
	Module  Module   `json:"module"`
	Lessons []Lesson `json:"lessons"`
}

type CourseTree struct {
	Course  Course              `json:"course"`
	Modules []ModuleWithLessons `json:"modules"`
}

// LessonNav is a neighbour reference used for prev/next navigation.
type LessonNav struct {
	ID    uuid.UUID `json:"id"`
	Slug  string    `json:"slug"`
	Title string    `json:"title"`
}
