package models

import "time"

// EnrollmentStatus represents the lifecycle of a section enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. Dropping is a soft delete; the row is kept.
const (
	EnrollmentStatusActive  EnrollmentStatus = "ACTIVE"
	EnrollmentStatusDropped EnrollmentStatus = "DROPPED"
)

// Enrollment captures a student's assignment to one section of a course.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	SectionID  string           `db:"section_id" json:"section_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	Priority   int              `db:"priority" json:"priority"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	DroppedAt  *time.Time       `db:"dropped_at" json:"dropped_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with the section's schedule and the
// course identity for conflict checks and reporting.
type EnrollmentDetail struct {
	Enrollment
	CourseCode string `db:"course_code" json:"course_code"`
	CourseName string `db:"course_name" json:"course_name"`
	TimeBlock
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	SectionID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
