package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub-backend/internal/handlers"
	"learnhub-backend/internal/logger"
	"learnhub-backend/internal/middleware"
	"learnhub-backend/internal/models"
	"learnhub-backend/internal/repository/memrepo"
	"learnhub-backend/internal/services"
)

func newTestRouter(t *testing.T, limit int) (http.Handler, *middleware.JWTAuth, models.Course) {
	t.Helper()

	catalog := memrepo.NewCatalog()
	store := memrepo.NewProgressStore()
	course := catalog.AddCourse(models.Course{Slug: "go-basics", Title: "Go Basics"})

	jwtAuth := middleware.NewJWTAuth("test-secret")
	h := handlers.NewProgressHandler(
		services.NewProgressEngine(catalog, store, nil),
		services.NewProgressQueryService(catalog, memrepo.NewEnrollment(), store),
		nil,
	)

	r, limiter := New(jwtAuth, h, logger.Nop(), Options{
		FrontendURL:        "http://localhost:5173",
		RequestTimeout:     5 * time.Second,
		RateLimitPerMinute: limit,
	})
	t.Cleanup(limiter.Stop)
	return r, jwtAuth, course
}

func request(t *testing.T, r http.Handler, jwtAuth *middleware.JWTAuth, userID uuid.UUID, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if jwtAuth != nil {
		token, err := jwtAuth.GenerateAccessToken(userID, "student", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t, 10)

	rr := request(t, r, nil, uuid.Nil, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestProgressRoutesRequireAuth(t *testing.T) {
	r, _, _ := newTestRouter(t, 10)

	rr := request(t, r, nil, uuid.Nil, http.MethodGet, "/api/v1/me/courses")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStudentRoutes(t *testing.T) {
	r, jwtAuth, course := newTestRouter(t, 10)
	student := uuid.New()

	rr := request(t, r, jwtAuth, student, http.MethodGet, "/api/v1/students/"+student.String()+"/courses")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = request(t, r, jwtAuth, student, http.MethodGet, "/api/v1/students/"+uuid.NewString()+"/courses")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = request(t, r, jwtAuth, student, http.MethodGet, "/api/v1/students/nope/courses")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = request(t, r, jwtAuth, student, http.MethodPost, "/api/v1/me/courses/"+course.ID.String()+"/start")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = request(t, r, jwtAuth, student, http.MethodGet, "/api/v1/me/courses/go-basics")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWriteRoutesAreRateLimited(t *testing.T) {
	r, jwtAuth, course := newTestRouter(t, 2)
	student := uuid.New()
	path := "/api/v1/me/courses/" + course.ID.String() + "/start"

	for i := 0; i < 2; i++ {
		rr := request(t, r, jwtAuth, student, http.MethodPost, path)
		require.Equal(t, http.StatusNoContent, rr.Code)
	}
	rr := request(t, r, jwtAuth, student, http.MethodPost, path)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// Reads are not limited.
	rr = request(t, r, jwtAuth, student, http.MethodGet, "/api/v1/me/dashboard")
	assert.Equal(t, http.StatusOK, rr.Code)
}
