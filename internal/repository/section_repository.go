package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/blueridge-hs/registrar-api/internal/models"
	appErrors "github.com/blueridge-hs/registrar-api/pkg/errors"
)

// SectionRepository handles persistence of course sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

func (r *SectionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const sectionColumns = `id, course_id, room, day_of_week, start_minute, end_minute, capacity, enrolled_count, created_at, updated_at`

// FindByID returns a section by its ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE id = $1`, sectionColumns)
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ListByCourse returns a course's sections in a stable order so allocator
// tie-breaks are deterministic.
func (r *SectionRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Section, error) {
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE course_id = $1 ORDER BY created_at, id`, sectionColumns)
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, courseID); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// ListByCourseIDs returns all sections belonging to the supplied courses,
// ordered stably within each course.
func (r *SectionRepository) ListByCourseIDs(ctx context.Context, courseIDs []string) ([]models.Section, error) {
	if len(courseIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(courseIDs))
	args := make([]interface{}, len(courseIDs))
	for i, id := range courseIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT %s FROM sections WHERE course_id IN (%s) ORDER BY course_id, created_at, id`,
		sectionColumns, strings.Join(placeholders, ","))
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, fmt.Errorf("list sections by courses: %w", err)
	}
	return sections, nil
}

// AdjustEnrolledCount moves a section's enrolled count by delta. Increments
// are rejected with ErrCapacityExceeded when they would pass capacity;
// decrements floor at zero. The guard lives in the UPDATE itself so
// concurrent writers cannot slip past it.
func (r *SectionRepository) AdjustEnrolledCount(ctx context.Context, exec sqlx.ExtContext, sectionID string, delta int) error {
	target := r.exec(exec)

	if delta >= 0 {
		const query = `UPDATE sections SET enrolled_count = enrolled_count + $2, updated_at = NOW()
        WHERE id = $1 AND enrolled_count + $2 <= capacity`
		res, err := target.ExecContext(ctx, query, sectionID, delta)
		if err != nil {
			return fmt.Errorf("increment section count: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("increment section count: %w", err)
		}
		if affected == 0 {
			return appErrors.ErrCapacityExceeded
		}
		return nil
	}

	const query = `UPDATE sections SET enrolled_count = GREATEST(0, enrolled_count + $2), updated_at = NOW() WHERE id = $1`
	if _, err := target.ExecContext(ctx, query, sectionID, delta); err != nil {
		return fmt.Errorf("decrement section count: %w", err)
	}
	return nil
}
