package models

import "time"

// Course represents an offered course in the catalog.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Credits     int       `db:"credits" json:"credits"`
	GradeLevel  string    `db:"grade_level" json:"grade_level"`
	MaxStudents int       `db:"max_students" json:"max_students"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures supported filters for listing courses.
type CourseFilter struct {
	GradeLevel string
	Search     string
	Active     *bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
