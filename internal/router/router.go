package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"learnhub-backend/internal/handlers"
	"learnhub-backend/internal/logger"
	"learnhub-backend/internal/middleware"
)

type Options struct {
	FrontendURL        string
	RequestTimeout     time.Duration
	RateLimitPerMinute int
}

func New(
	jwtAuth *middleware.JWTAuth,
	progressHandler *handlers.ProgressHandler,
	log *logger.Logger,
	opts Options,
) (http.Handler, *middleware.RateLimiter) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(opts.FrontendURL))

	// Progress mutations are limited per student
	writeLimiter := middleware.NewRateLimiter(opts.RateLimitPerMinute, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	progressRoutes := func(r chi.Router) {
		r.Get("/courses", progressHandler.ListCourses)
		r.Get("/courses/{courseSlug}", progressHandler.GetCourse)
		r.Get("/lessons/{lessonSlug}", progressHandler.GetLesson)
		r.Get("/lessons/{lessonId}/blocks", progressHandler.ListBlockProgress)
		r.Get("/dashboard", progressHandler.Dashboard)

		r.Group(func(r chi.Router) {
			r.Use(writeLimiter.Middleware)
			r.Post("/courses/{courseId}/start", progressHandler.StartCourse)
			r.Post("/lessons/{lessonRef}/start", progressHandler.StartLesson)
			r.Patch("/courses/{courseId}/lessons/{lessonId}/blocks/{blockId}", progressHandler.UpdateBlockProgress)
		})
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		r.Use(jwtAuth.Middleware)

		// ──── Student progress, addressed explicitly ────
		r.Route("/students/{studentId}", func(r chi.Router) {
			r.Use(middleware.RequireSelf)
			progressRoutes(r)
		})

		// ──── Student progress for the authenticated user ────
		r.Route("/me", progressRoutes)
	})

	return r, writeLimiter
}
