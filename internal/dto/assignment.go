package dto

import "github.com/blueridge-hs/registrar-api/internal/models"

// AssignmentBatchRequest instructs the engine to assign a set of students
// across a course catalog. Empty StudentIDs means every active student;
// empty CourseIDs means every active course.
type AssignmentBatchRequest struct {
	StudentIDs []string `json:"studentIds" validate:"omitempty,dive,required"`
	CourseIDs  []string `json:"courseIds" validate:"omitempty,dive,required"`
	Fraction   float64  `json:"fraction" validate:"omitempty,gt=0,lte=1"`
}

// EnrollmentRequest places one student into one course.
type EnrollmentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	CourseID  string `json:"courseId" validate:"required"`
}

// QualifiedCoursesRequest narrows a qualification sweep to a candidate set.
// Empty CourseIDs means every active course.
type QualifiedCoursesRequest struct {
	CourseIDs []string `json:"courseIds" validate:"omitempty,dive,required"`
}

// QualifiedCoursesResponse splits a candidate set into the courses a student
// may take and the rejected remainder with per-course reasons.
type QualifiedCoursesResponse struct {
	Qualified   []string                   `json:"qualified"`
	Unqualified []models.CourseEligibility `json:"unqualified"`
}
