package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/blueridge-hs/registrar-api/internal/models"
)

// CompletionRepository reads the per-student completion ledger.
type CompletionRepository struct {
	db *sqlx.DB
}

// NewCompletionRepository constructs the repository.
func NewCompletionRepository(db *sqlx.DB) *CompletionRepository {
	return &CompletionRepository{db: db}
}

// ListCompleted returns the student's COMPLETED ledger entries in creation
// order, which the duplicate-resolution rule depends on.
func (r *CompletionRepository) ListCompleted(ctx context.Context, studentID string) ([]models.CompletionRecord, error) {
	const query = `SELECT id, student_id, course_id, grade, status, completed_at, created_at
        FROM course_completions
        WHERE student_id = $1 AND status = $2
        ORDER BY created_at`
	var records []models.CompletionRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID, models.CompletionStatusCompleted); err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return records, nil
}

// HasCompleted reports whether the student holds a COMPLETED record for the
// course.
func (r *CompletionRepository) HasCompleted(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM course_completions
        WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.CompletionStatusCompleted); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check completion: %w", err)
	}
	return true, nil
}
