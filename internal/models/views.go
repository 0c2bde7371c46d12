package models

import (
	"math"
	"strconv"

	"github.com/google/uuid"
)

// Percentage is rounded to two decimals only when rendered.
type Percentage float64

func (p Percentage) MarshalJSON() ([]byte, error) {
	rounded := math.Round(float64(p)*100) / 100
	return []byte(strconv.FormatFloat(rounded, 'f', -1, 64)), nil
}

type StudentCourse struct {
	Course             Course         `json:"course"`
	ModuleCount        int            `json:"module_count"`
	ProgressPercentage Percentage     `json:"progress_percentage"`
	Status             ProgressStatus `json:"status"`
}

type ModuleSummary struct {
	ID                uuid.UUID `json:"id"`
	Slug              string    `json:"slug"`
	Title             string    `json:"title"`
	EstimatedDuration *int      `json:"estimated_duration"`
}

type LessonSummary struct {
	ID                uuid.UUID `json:"id"`
	Slug              string    `json:"slug"`
	Title             string    `json:"title"`
	EstimatedDuration *int      `json:"estimated_duration"`
	IsCompleted       bool      `json:"is_completed"`
	IsStarted         bool      `json:"is_started"`
}

type ModuleWithLessonSummaries struct {
	Module  ModuleSummary   `json:"module"`
	Lessons []LessonSummary `json:"lessons"`
}

type CourseDetails struct {
	StudentCourse StudentCourse               `json:"student_course"`
	Modules       []ModuleWithLessonSummaries `json:"modules"`
}

type LessonDetails struct {
	Lesson               Lesson                 `json:"lesson"`
	CourseID             uuid.UUID              `json:"course_id"`
	ContentBlocks        []ContentBlock         `json:"content_blocks"`
	LessonProgress       *LessonProgress        `json:"lesson_progress"`
	ContentBlockProgress []ContentBlockProgress `json:"content_block_progress"`
	PrevLesson           *LessonNav             `json:"prev_lesson"`
	NextLesson           *LessonNav             `json:"next_lesson"`
}

type StudentDashboard struct {
	CurrentCourses        []StudentCourse `json:"current_courses"`
	CoursesCompleted      int             `json:"courses_completed"`
	CoursesInProgress     int             `json:"courses_in_progress"`
	TotalAvailableCourses int             `json:"total_available_courses"`
}
