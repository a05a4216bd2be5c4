package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_no", "full_name", "grade_level", "active", "created_at", "updated_at"}).
		AddRow("s1", "2026-001", "Avery Collins", "11", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_no, full_name, grade_level, active, created_at, updated_at FROM students WHERE id = $1")).
		WithArgs("s1").
		WillReturnRows(rows)

	student, err := repo.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "2026-001", student.StudentNo)
	assert.Equal(t, "11", student.GradeLevel)
	assert.True(t, student.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_no", "full_name", "grade_level", "active", "created_at", "updated_at"}).
		AddRow("s1", "2025-014", "Jordan Reyes", "12", true, now, now).
		AddRow("s2", "2026-001", "Avery Collins", "11", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_no, full_name, grade_level, active, created_at, updated_at FROM students WHERE active = TRUE ORDER BY grade_level DESC, student_no")).
		WillReturnRows(rows)

	students, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "12", students[0].GradeLevel)
	assert.Equal(t, "11", students[1].GradeLevel)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListByIDs(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_no", "full_name", "grade_level", "active", "created_at", "updated_at"}).
		AddRow("s1", "2026-001", "Avery Collins", "11", true, now, now).
		AddRow("s2", "2026-002", "Jordan Reyes", "10", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_no, full_name, grade_level, active, created_at, updated_at FROM students WHERE id IN ($1,$2)")).
		WithArgs("s1", "s2").
		WillReturnRows(rows)

	students, err := repo.ListByIDs(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	require.Len(t, students, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListByIDsEmpty(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	students, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, students)
	require.NoError(t, mock.ExpectationsWereMet())
}
