package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"learnhub-backend/internal/logger"
	"learnhub-backend/internal/models"
	"learnhub-backend/internal/services"
)

const (
	prefixCourseTree    = "catalog:course-tree:"
	prefixCourseLessons = "catalog:course-lessons:"
	prefixLessonSlug    = "catalog:lesson-slug:"
	prefixLessonNav     = "catalog:lesson-nav:"
	prefixModuleCount   = "catalog:module-count:"
)

// CachedCatalog decorates a CatalogReader with a Redis read-through cache.
// Cache failures are logged and fall through to the wrapped reader. Lookups
// that resolve to nothing are not cached.
type CachedCatalog struct {
	services.CatalogReader

	redis redis.Cmdable
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedCatalog(next services.CatalogReader, client redis.Cmdable, ttl time.Duration, log *logger.Logger) *CachedCatalog {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedCatalog{
		CatalogReader: next,
		redis:         client,
		ttl:           ttl,
		log:           log,
	}
}

type lessonNavPair struct {
	Prev *models.LessonNav `json:"prev"`
	Next *models.LessonNav `json:"next"`
}

func (c *CachedCatalog) GetModuleTreeForCourseSlug(ctx context.Context, slug string) (*models.CourseTree, error) {
	return readThrough(ctx, c, prefixCourseTree+slug, func() (*models.CourseTree, error) {
		return c.CatalogReader.GetModuleTreeForCourseSlug(ctx, slug)
	}, func(t *models.CourseTree) bool { return t != nil })
}

func (c *CachedCatalog) GetLessonsForCourse(ctx context.Context, courseID uuid.UUID) ([]models.Lesson, error) {
	return readThrough(ctx, c, prefixCourseLessons+courseID.String(), func() ([]models.Lesson, error) {
		return c.CatalogReader.GetLessonsForCourse(ctx, courseID)
	}, func(l []models.Lesson) bool { return l != nil })
}

func (c *CachedCatalog) GetLessonBySlug(ctx context.Context, slug string) (*models.Lesson, error) {
	return readThrough(ctx, c, prefixLessonSlug+slug, func() (*models.Lesson, error) {
		return c.CatalogReader.GetLessonBySlug(ctx, slug)
	}, func(l *models.Lesson) bool { return l != nil })
}

func (c *CachedCatalog) GetPrevNextLessons(ctx context.Context, courseID uuid.UUID, currentLessonSlug string) (*models.LessonNav, *models.LessonNav, error) {
	key := fmt.Sprintf("%s%s:%s", prefixLessonNav, courseID, currentLessonSlug)
	pair, err := readThrough(ctx, c, key, func() (*lessonNavPair, error) {
		prev, next, err := c.CatalogReader.GetPrevNextLessons(ctx, courseID, currentLessonSlug)
		if err != nil {
			return nil, err
		}
		return &lessonNavPair{Prev: prev, Next: next}, nil
	}, func(p *lessonNavPair) bool { return p.Prev != nil || p.Next != nil })
	if err != nil {
		return nil, nil, err
	}
	return pair.Prev, pair.Next, nil
}

// GetModuleCountsForCourses caches one counter per course and loads all
// misses with a single call to the wrapped reader.
func (c *CachedCatalog) GetModuleCountsForCourses(ctx context.Context, courseIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(courseIDs))
	if len(courseIDs) == 0 {
		return counts, nil
	}

	keys := make([]string, len(courseIDs))
	for i, id := range courseIDs {
		keys[i] = prefixModuleCount + id.String()
	}

	var missing []uuid.UUID
	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn("catalog cache read failed", "op", "module counts", "error", err)
		missing = courseIDs
	} else {
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, courseIDs[i])
				continue
			}
			n, err := strconv.Atoi(s)
			if err != nil {
				missing = append(missing, courseIDs[i])
				continue
			}
			counts[courseIDs[i]] = n
		}
	}

	if len(missing) == 0 {
		return counts, nil
	}

	loaded, err := c.CatalogReader.GetModuleCountsForCourses(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := c.redis.Pipeline()
	for _, id := range missing {
		n := loaded[id]
		counts[id] = n
		pipe.Set(ctx, prefixModuleCount+id.String(), n, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("catalog cache write failed", "op", "module counts", "error", err)
	}

	return counts, nil
}

// InvalidateCourse drops every cached entry derived from the course. The
// authoring side calls it after editing a course's structure.
func (c *CachedCatalog) InvalidateCourse(ctx context.Context, courseID uuid.UUID, courseSlug string) error {
	keys := []string{
		prefixCourseTree + courseSlug,
		prefixCourseLessons + courseID.String(),
		prefixModuleCount + courseID.String(),
	}

	var cursor uint64
	pattern := fmt.Sprintf("%s%s:*", prefixLessonNav, courseID)
	for {
		found, next, err := c.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan lesson navigation keys: %w", err)
		}
		keys = append(keys, found...)
		if next == 0 {
			break
		}
		cursor = next
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate course cache: %w", err)
	}
	return nil
}

func readThrough[T any](ctx context.Context, c *CachedCatalog, key string, load func() (T, error), cacheable func(T) bool) (T, error) {
	var value T

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		jsonErr := json.Unmarshal(data, &value)
		if jsonErr == nil {
			return value, nil
		}
		c.log.Warn("catalog cache entry unreadable", "key", key, "error", jsonErr)
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn("catalog cache read failed", "key", key, "error", err)
	}

	value, err = load()
	if err != nil {
		return value, err
	}
	if !cacheable(value) {
		return value, nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("catalog cache encode failed", "key", key, "error", err)
		return value, nil
	}
	if err := c.redis.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.log.Warn("catalog cache write failed", "key", key, "error", err)
	}
	return value, nil
}
