package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"learnhub-backend/internal/logger"
	"learnhub-backend/internal/middleware"
	"learnhub-backend/internal/models"
	"learnhub-backend/internal/services"
)

type progressEngine interface {
	StartCourse(ctx context.Context, studentID, courseID uuid.UUID) error
	StartLesson(ctx context.Context, studentID uuid.UUID, lessonRef string) ([]models.ContentBlockProgress, error)
	RecordContentBlockProgress(ctx context.Context, studentID, lessonID, courseID, contentBlockID uuid.UUID, update models.ContentBlockProgressUpdate) (*models.ContentBlockProgress, error)
}

type progressQueries interface {
	ListStudentCourses(ctx context.Context, studentID uuid.UUID) ([]models.StudentCourse, error)
	GetCourseDetails(ctx context.Context, studentID uuid.UUID, courseSlug string) (*models.CourseDetails, error)
	GetLessonDetails(ctx context.Context, studentID uuid.UUID, lessonSlug string) (*models.LessonDetails, error)
	GetContentBlockProgressByLesson(ctx context.Context, studentID, lessonID uuid.UUID) ([]models.ContentBlockProgress, error)
	GetStudentDashboard(ctx context.Context, studentID uuid.UUID) (*models.StudentDashboard, error)
}

type ProgressHandler struct {
	engine   progressEngine
	queries  progressQueries
	log      *logger.Logger
	validate *validator.Validate
}

func NewProgressHandler(engine progressEngine, queries progressQueries, log *logger.Logger) *ProgressHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ProgressHandler{
		engine:   engine,
		queries:  queries,
		log:      log,
		validate: newValidator(),
	}
}

func (h *ProgressHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	studentID := studentIDFrom(r)

	courses, err := h.queries.ListStudentCourses(r.Context(), studentID)
	if err != nil {
		h.fail(w, r, "list student courses", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"courses": courses,
	})
}

func (h *ProgressHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	studentID := studentIDFrom(r)

	details, err := h.queries.GetCourseDetails(r.Context(), studentID, chi.URLParam(r, "courseSlug"))
	if err != nil {
		h.fail(w, r, "get course details", err)
		return
	}
	if details == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Course not found", r))
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (h *ProgressHandler) GetLesson(w http.ResponseWriter, r *http.Request) {
	studentID := studentIDFrom(r)

	details, err := h.queries.GetLessonDetails(r.Context(), studentID, chi.URLParam(r, "lessonSlug"))
	if err != nil {
		h.fail(w, r, "get lesson details", err)
		return
	}
	if details == nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Lesson not found", r))
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (h *ProgressHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	studentID := studentIDFrom(r)

	dashboard, err := h.queries.GetStudentDashboard(r.Context(), studentID)
	if err != nil {
		h.fail(w, r, "get student dashboard", err)
		return
	}

	writeJSON(w, http.StatusOK, dashboard)
}

func (h *ProgressHandler) StartCourse(w http.ResponseWriter, r *http.Request) {
	studentID := studentIDFrom(r)
	courseID, err := uuid.Parse(chi.URLParam(r, "courseId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid course ID", r))
		return
	}

	if err := h.engine.StartCourse(r.Context(), studentID, courseID); err != nil {
		h.fail(w, r, "start course", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ProgressHandler) StartLesson(w http.ResponseWriter, r *http.Request) {
	studentID := studentIDFrom(r)

	progress, err := h.engine.StartLesson(r.Context(), studentID, chi.URLParam(r, "lessonRef"))
	if err != nil {
		h.fail(w, r, "start lesson", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content_block_progress": progress,
	})
}

func (h *ProgressHandler) ListBlockProgress(w http.ResponseWriter, r *http.Request) {
	studentID := studentIDFrom(r)
	lessonID, err := uuid.Parse(chi.URLParam(r, "lessonId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid lesson ID", r))
		return
	}

	progress, err := h.queries.GetContentBlockProgressByLesson(r.Context(), studentID, lessonID)
	if err != nil {
		h.fail(w, r, "list content block progress", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content_block_progress": progress,
	})
}

func (h *ProgressHandler) UpdateBlockProgress(w http.ResponseWriter, r *http.Request) {
	studentID := studentIDFrom(r)

	ids := make(map[string]uuid.UUID, 3)
	for _, param := range []string{"courseId", "lessonId", "blockId"} {
		id, err := uuid.Parse(chi.URLParam(r, param))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Invalid path parameter",
				map[string]string{param: "must be a UUID"}, r))
			return
		}
		ids[param] = id
	}

	var req models.ContentBlockProgressUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		handleServiceError(w, r, &services.ValidationError{Fields: validationFields(err)})
		return
	}
	if req.IsEmpty() {
		handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{
			"body": "at least one of started_at, completed_at, last_video_position is required",
		}})
		return
	}

	progress, err := h.engine.RecordContentBlockProgress(r.Context(), studentID,
		ids["lessonId"], ids["courseId"], ids["blockId"], req)
	if err != nil {
		h.fail(w, r, "record content block progress", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content_block_progress": progress,
	})
}

// fail logs unexpected errors once at the transport boundary and writes
// the mapped error response.
func (h *ProgressHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var (
		notFoundErr *services.NotFoundError
		invalidErr  *services.InvalidStateError
	)
	if !errors.As(err, &notFoundErr) && !errors.As(err, &invalidErr) {
		h.log.Error("request failed",
			"op", op,
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
	}
	handleServiceError(w, r, err)
}

// studentIDFrom prefers the {studentId} path parameter and falls back to
// the authenticated user for /me routes.
func studentIDFrom(r *http.Request) uuid.UUID {
	if raw := chi.URLParam(r, "studentId"); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	return middleware.GetUserID(r.Context())
}
