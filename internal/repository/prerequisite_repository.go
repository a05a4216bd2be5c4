package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/blueridge-hs/registrar-api/internal/models"
)

// PrerequisiteRepository reads the prerequisite requirement graph.
type PrerequisiteRepository struct {
	db *sqlx.DB
}

// NewPrerequisiteRepository constructs the repository.
func NewPrerequisiteRepository(db *sqlx.DB) *PrerequisiteRepository {
	return &PrerequisiteRepository{db: db}
}

// ListByCourse returns the requirements attached to a course, ordered by
// group number so group walks are stable.
func (r *PrerequisiteRepository) ListByCourse(ctx context.Context, courseID string) ([]models.PrerequisiteRequirement, error) {
	const query = `SELECT p.id, p.course_id, p.required_course_id, p.group_num, p.minimum_grade, p.is_required, p.created_at,
        COALESCE(c.code, '') AS required_course_code, COALESCE(c.name, '') AS required_course_name
        FROM course_prerequisites p
        LEFT JOIN courses c ON c.id = p.required_course_id
        WHERE p.course_id = $1
        ORDER BY p.group_num, p.created_at`
	var reqs []models.PrerequisiteRequirement
	if err := r.db.SelectContext(ctx, &reqs, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return reqs, nil
}
