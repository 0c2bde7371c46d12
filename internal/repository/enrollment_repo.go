package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"learnhub-backend/internal/services"
)

// EnrollmentRepo resolves a student's courses through class membership.
type EnrollmentRepo struct {
	pool *pgxpool.Pool
}

func NewEnrollmentRepo(pool *pgxpool.Pool) *EnrollmentRepo {
	return &EnrollmentRepo{pool: pool}
}

func (r *EnrollmentRepo) GetEnrolledCourseIDs(ctx context.Context, studentID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT cc.course_id
		FROM class_students cs
		JOIN class_courses cc ON cc.class_id = cs.class_id
		WHERE cs.student_id = $1
	`, studentID)
	if err != nil {
		return nil, services.NewStoreError("get enrolled courses", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, services.NewStoreError("scan enrolled course", err)
		}
		ids = append(ids, id)
	}
	return ids, services.NewStoreError("get enrolled courses", rows.Err())
}
