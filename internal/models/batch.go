package models

import "time"

// LearnerOutcome records one student's result within an assignment batch.
type LearnerOutcome struct {
	StudentID string `json:"student_id"`
	Priority  int    `json:"priority"`
	Target    int    `json:"target"`
	Assigned  int    `json:"assigned"`
	Failure   string `json:"failure,omitempty"`
}

// BatchResult summarizes an assignment batch run. Per-learner failures are
// recorded here rather than raised, so one student never aborts the batch.
type BatchResult struct {
	TotalAssigned int              `json:"total_assigned"`
	Failures      int              `json:"failures"`
	Learners      []LearnerOutcome `json:"learners"`
	StartedAt     time.Time        `json:"started_at"`
	Duration      time.Duration    `json:"duration"`
}

// CourseFill reports how full one course's sections are in aggregate.
type CourseFill struct {
	CourseID   string `db:"course_id" json:"course_id"`
	CourseCode string `db:"course_code" json:"course_code"`
	CourseName string `db:"course_name" json:"course_name"`
	Capacity   int    `db:"capacity" json:"capacity"`
	Enrolled   int    `db:"enrolled" json:"enrolled"`
	Sections   int    `db:"sections" json:"sections"`
}

// EnrollmentStatistics aggregates the current enrollment state for
// dashboards and exported reports.
type EnrollmentStatistics struct {
	TotalActive       int          `json:"total_active"`
	TotalDropped      int          `json:"total_dropped"`
	StudentsServed    int          `json:"students_served"`
	AveragePerStudent float64      `json:"average_per_student"`
	Courses           []CourseFill `json:"courses"`
	GeneratedAt       time.Time    `json:"generated_at"`
}
