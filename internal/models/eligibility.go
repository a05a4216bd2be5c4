package models

// EligibilityResult is the outcome of evaluating a student's completion
// history against a course's prerequisite groups. Derived, never persisted.
type EligibilityResult struct {
	StudentID       string   `json:"student_id"`
	CourseID        string   `json:"course_id"`
	Meets           bool     `json:"meets"`
	SatisfiedGroups []string `json:"satisfied_groups,omitempty"`
	MissingGroups   []string `json:"missing_groups,omitempty"`
	Overridable     bool     `json:"overridable"`
	Reason          string   `json:"reason"`
}

// CourseEligibility pairs a course with the reason it was rejected, used when
// listing the unqualified remainder of a candidate set.
type CourseEligibility struct {
	CourseID string `json:"course_id"`
	Reason   string `json:"reason"`
}
