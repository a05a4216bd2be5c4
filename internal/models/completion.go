package models

import "time"

// CompletionStatus represents the terminal or in-flight state of a course attempt.
type CompletionStatus string

// Possible completion statuses. Only COMPLETED counts toward prerequisites.
const (
	CompletionStatusCompleted  CompletionStatus = "COMPLETED"
	CompletionStatusInProgress CompletionStatus = "IN_PROGRESS"
	CompletionStatusWithdrawn  CompletionStatus = "WITHDRAWN"
	CompletionStatusFailed     CompletionStatus = "FAILED"
)

// CompletionRecord is one course attempt in a student's completion ledger.
// Students may hold several records for the same course (retakes).
type CompletionRecord struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	CourseID    string           `db:"course_id" json:"course_id"`
	Grade       string           `db:"grade" json:"grade"`
	Status      CompletionStatus `db:"status" json:"status"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// BestCompletions collapses a ledger into one record per course. Records that
// are not COMPLETED or reference no course are skipped. When a course was
// retaken, the most recently completed record wins: a dated record beats an
// undated one, a later date beats an earlier one, and when neither carries a
// date the later record in ledger order wins.
func BestCompletions(ledger []CompletionRecord) map[string]CompletionRecord {
	best := make(map[string]CompletionRecord, len(ledger))
	for _, rec := range ledger {
		if rec.Status != CompletionStatusCompleted || rec.CourseID == "" {
			continue
		}
		prev, ok := best[rec.CourseID]
		if !ok || supersedes(rec, prev) {
			best[rec.CourseID] = rec
		}
	}
	return best
}

// supersedes reports whether candidate should replace current in the
// best-completion map.
func supersedes(candidate, current CompletionRecord) bool {
	switch {
	case current.CompletedAt == nil:
		return true
	case candidate.CompletedAt == nil:
		return false
	default:
		return !candidate.CompletedAt.Before(*current.CompletedAt)
	}
}
