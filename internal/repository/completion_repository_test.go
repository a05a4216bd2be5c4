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

func newCompletionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCompletionRepositoryListCompleted(t *testing.T) {
	db, mock, cleanup := newCompletionRepoMock(t)
	defer cleanup()
	repo := NewCompletionRepository(db)

	completed := time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "grade", "status", "completed_at", "created_at"}).
		AddRow("rec-1", "s1", "math101", "B+", models.CompletionStatusCompleted, completed, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM course_completions")).
		WithArgs("s1", models.CompletionStatusCompleted).
		WillReturnRows(rows)

	records, err := repo.ListCompleted(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "B+", records[0].Grade)
	require.NotNil(t, records[0].CompletedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletionRepositoryHasCompleted(t *testing.T) {
	db, mock, cleanup := newCompletionRepoMock(t)
	defer cleanup()
	repo := NewCompletionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM course_completions")).
		WithArgs("s1", "math101", models.CompletionStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	ok, err := repo.HasCompleted(context.Background(), "s1", "math101")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompletionRepositoryHasCompletedNoRows(t *testing.T) {
	db, mock, cleanup := newCompletionRepoMock(t)
	defer cleanup()
	repo := NewCompletionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM course_completions")).
		WithArgs("s1", "art100", models.CompletionStatusCompleted).
		WillReturnError(sql.ErrNoRows)

	ok, err := repo.HasCompleted(context.Background(), "s1", "art100")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
