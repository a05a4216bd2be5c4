package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID         string    `db:"id" json:"id"`
	StudentNo  string    `db:"student_no" json:"student_no"`
	FullName   string    `db:"full_name" json:"full_name"`
	GradeLevel string    `db:"grade_level" json:"grade_level"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PriorityForGradeLevel maps a grade level to its assignment priority weight.
// Seniors are placed first.
func PriorityForGradeLevel(gradeLevel string) int {
	switch gradeLevel {
	case "12":
		return 10
	case "11":
		return 8
	case "10":
		return 6
	case "9":
		return 4
	default:
		return 5
	}
}
