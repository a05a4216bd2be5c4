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

func newPrereqRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPrerequisiteRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newPrereqRepoMock(t)
	defer cleanup()
	repo := NewPrerequisiteRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "course_id", "required_course_id", "group_num", "minimum_grade", "is_required", "created_at", "required_course_code", "required_course_name"}).
		AddRow("req-1", "phys201", "phys101", 1, nil, true, now, "PHYS101", "Physics I").
		AddRow("req-2", "phys201", "math201", 2, "C+", true, now, "MATH201", "Calculus I")
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_prerequisites p")).
		WithArgs("phys201").
		WillReturnRows(rows)

	reqs, err := repo.ListByCourse(context.Background(), "phys201")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, 1, reqs[0].GroupNum)
	assert.Nil(t, reqs[0].MinimumGrade)
	require.NotNil(t, reqs[1].MinimumGrade)
	assert.Equal(t, "C+", *reqs[1].MinimumGrade)
	assert.Equal(t, "MATH201", reqs[1].RequiredCourseCode)
	require.NoError(t, mock.ExpectationsWereMet())
}
