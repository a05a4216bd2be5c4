package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/blueridge-hs/registrar-api/internal/models"
)

// EnrollmentRepository handles persistence of section enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const enrollmentDetailColumns = `e.id, e.student_id, e.course_id, e.section_id, e.status, e.priority, e.enrolled_at, e.dropped_at,
        c.code AS course_code, c.name AS course_name,
        sec.day_of_week, sec.start_minute, sec.end_minute`

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN courses c ON c.id = e.course_id
LEFT JOIN sections sec ON sec.id = e.section_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at": "e.enrolled_at",
		"priority":    "e.priority",
		"course_code": "c.code",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "enrolled_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		enrollmentDetailColumns, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, section_id, status, priority, enrolled_at, dropped_at
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListActiveByStudent returns the student's active enrollments joined with
// each section's weekly time block; the allocator's conflict filter and the
// student schedule view both read from this.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM enrollments e
        LEFT JOIN courses c ON c.id = e.course_id
        LEFT JOIN sections sec ON sec.id = e.section_id
        WHERE e.student_id = $1 AND e.status = $2
        ORDER BY e.enrolled_at`, enrollmentDetailColumns)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// ExistsActive checks if the student already holds an active enrollment in
// the course.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// Create persists a new enrollment record. The commit step runs it inside the
// same transaction as the section count increment.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, section_id, status, priority, enrolled_at, dropped_at)
        VALUES (:id, :student_id, :course_id, :section_id, :status, :priority, :enrolled_at, :dropped_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus updates status and dropped_at for an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus, droppedAt *time.Time) error {
	const query = `UPDATE enrollments SET status = $2, dropped_at = $3 WHERE id = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query, id, status, droppedAt); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// CountByStatus returns the number of enrollments in the given status.
func (r *EnrollmentRepository) CountByStatus(ctx context.Context, status models.EnrollmentStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE status = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, status); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// CountDistinctActiveStudents returns how many students hold at least one
// active enrollment.
func (r *EnrollmentRepository) CountDistinctActiveStudents(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(DISTINCT student_id) FROM enrollments WHERE status = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count enrolled students: %w", err)
	}
	return count, nil
}

// AggregateCourseFill reports per-course active enrollment against total
// section capacity.
func (r *EnrollmentRepository) AggregateCourseFill(ctx context.Context) ([]models.CourseFill, error) {
	const query = `SELECT c.id AS course_id, c.code AS course_code, c.name AS course_name,
        COALESCE(SUM(sec.capacity), 0) AS capacity,
        COALESCE(SUM(sec.enrolled_count), 0) AS enrolled,
        COUNT(sec.id) AS sections
        FROM courses c
        LEFT JOIN sections sec ON sec.course_id = c.id
        WHERE c.active = TRUE
        GROUP BY c.id, c.code, c.name
        ORDER BY c.code`
	var fills []models.CourseFill
	if err := r.db.SelectContext(ctx, &fills, query); err != nil {
		return nil, fmt.Errorf("aggregate course fill: %w", err)
	}
	return fills, nil
}
