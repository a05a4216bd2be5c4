package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueridge-hs/registrar-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "course_id", "section_id", "status", "priority", "enrolled_at", "dropped_at",
		"course_code", "course_name", "day_of_week", "start_minute", "end_minute",
	})
}

func TestEnrollmentRepositoryListActiveByStudent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := enrollmentDetailRows().
		AddRow("enr-1", "s1", "math201", "sec-1", models.EnrollmentStatusActive, 8, time.Now(), nil,
			"MATH201", "Calculus I", "MONDAY", 540, 600)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student_id = $1 AND e.status = $2")).
		WithArgs("s1", models.EnrollmentStatusActive).
		WillReturnRows(rows)

	enrollments, err := repo.ListActiveByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "MATH201", enrollments[0].CourseCode)
	assert.Equal(t, 540, enrollments[0].StartMinute)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("s1", "math201", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "s1", "math201")
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsActiveNoRows(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("s1", "math201", models.EnrollmentStatusActive).
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsActive(context.Background(), "s1", "math201")
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := enrollmentDetailRows().
		AddRow("enr-1", "s1", "math201", "sec-1", models.EnrollmentStatusActive, 8, time.Now(), nil,
			"MATH201", "Calculus I", "MONDAY", 540, 600)
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 10 OFFSET 10")).
		WithArgs("s1", models.EnrollmentStatusActive).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("s1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{
		StudentID: "s1",
		Status:    models.EnrollmentStatusActive,
		Page:      2,
		PageSize:  10,
	})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, 25, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO enrollments")).
		WithArgs(sqlmock.AnyArg(), "s1", "math201", "sec-1", models.EnrollmentStatusActive, 8, sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	enrollment := &models.Enrollment{
		StudentID: "s1",
		CourseID:  "math201",
		SectionID: "sec-1",
		Priority:  8,
	}
	require.NoError(t, repo.Create(context.Background(), nil, enrollment))
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.False(t, enrollment.EnrolledAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, dropped_at = $3 WHERE id = $1")).
		WithArgs("enr-1", models.EnrollmentStatusDropped, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now()
	err := repo.UpdateStatus(context.Background(), nil, "enr-1", models.EnrollmentStatusDropped, &now)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryAggregateCourseFill(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"course_id", "course_code", "course_name", "capacity", "enrolled", "sections"}).
		AddRow("math201", "MATH201", "Calculus I", 60, 45, 2).
		AddRow("phys101", "PHYS101", "Physics I", 30, 30, 1)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(sec.capacity), 0) AS capacity")).
		WillReturnRows(rows)

	fills, err := repo.AggregateCourseFill(context.Background())
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, 45, fills[0].Enrolled)
	assert.Equal(t, 1, fills[1].Sections)
	require.NoError(t, mock.ExpectationsWereMet())
}
