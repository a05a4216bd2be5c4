package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/blueridge-hs/registrar-api/internal/models"
	appErrors "github.com/blueridge-hs/registrar-api/pkg/errors"
)

type prerequisiteReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.PrerequisiteRequirement, error)
}

type completionReader interface {
	ListCompleted(ctx context.Context, studentID string) ([]models.CompletionRecord, error)
	HasCompleted(ctx context.Context, studentID, courseID string) (bool, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// EligibilityService resolves prerequisite requirement graphs against student
// completion ledgers. All methods are read-only; missing history degrades to
// "not satisfied" rather than an error.
type EligibilityService struct {
	prereqs     prerequisiteReader
	completions completionReader
	courses     courseReader
	students    studentReader
	logger      *zap.Logger
}

// NewEligibilityService constructs EligibilityService.
func NewEligibilityService(prereqs prerequisiteReader, completions completionReader, courses courseReader, students studentReader, logger *zap.Logger) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{prereqs: prereqs, completions: completions, courses: courses, students: students, logger: logger}
}

// CheckEligibility evaluates whether the student may enroll in the course.
func (s *EligibilityService) CheckEligibility(ctx context.Context, studentID, courseID string) (*models.EligibilityResult, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	reqs, err := s.prereqs.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}

	best, err := s.bestCompletions(ctx, studentID)
	if err != nil {
		return nil, err
	}

	result := EvaluateRequirements(reqs, best)
	result.StudentID = studentID
	result.CourseID = courseID

	s.logger.Debug("eligibility check",
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
		zap.Bool("meets", result.Meets))

	return result, nil
}

// GetQualifiedCourses filters the candidate course ids down to those the
// student is eligible for, preserving input order. Unknown ids are skipped.
func (s *EligibilityService) GetQualifiedCourses(ctx context.Context, studentID string, courseIDs []string) ([]string, error) {
	results, err := s.evaluateCandidates(ctx, studentID, courseIDs)
	if err != nil {
		return nil, err
	}

	qualified := make([]string, 0, len(results))
	for _, res := range results {
		if res.Meets {
			qualified = append(qualified, res.CourseID)
		}
	}
	return qualified, nil
}

// GetUnqualifiedCourses returns the candidates the student is not eligible
// for, each with the failure reason, preserving input order.
func (s *EligibilityService) GetUnqualifiedCourses(ctx context.Context, studentID string, courseIDs []string) ([]models.CourseEligibility, error) {
	results, err := s.evaluateCandidates(ctx, studentID, courseIDs)
	if err != nil {
		return nil, err
	}

	unqualified := make([]models.CourseEligibility, 0, len(results))
	for _, res := range results {
		if !res.Meets {
			unqualified = append(unqualified, models.CourseEligibility{CourseID: res.CourseID, Reason: res.Reason})
		}
	}
	return unqualified, nil
}

// evaluateCandidates checks each known candidate course against one ledger
// fetch. Candidate ids without a catalog row are dropped.
func (s *EligibilityService) evaluateCandidates(ctx context.Context, studentID string, courseIDs []string) ([]models.EligibilityResult, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	courses, err := s.courses.ListByIDs(ctx, courseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	known := make(map[string]bool, len(courses))
	for _, course := range courses {
		known[course.ID] = true
	}

	best, err := s.bestCompletions(ctx, studentID)
	if err != nil {
		return nil, err
	}

	results := make([]models.EligibilityResult, 0, len(courseIDs))
	for _, courseID := range courseIDs {
		if !known[courseID] {
			continue
		}
		reqs, err := s.prereqs.ListByCourse(ctx, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
		}
		res := EvaluateRequirements(reqs, best)
		res.StudentID = studentID
		res.CourseID = courseID
		results = append(results, *res)
	}
	return results, nil
}

// HasCompleted reports whether the student completed the course.
func (s *EligibilityService) HasCompleted(ctx context.Context, studentID, courseID string) (bool, error) {
	done, err := s.completions.HasCompleted(ctx, studentID, courseID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check completion")
	}
	return done, nil
}

// GetPrerequisiteChain walks the prerequisite chain for a course, following
// the lowest-numbered group's first requirement at each step. The walk stops
// silently when it meets a course it has already visited, so cyclic data
// terminates with a partial chain. The result is ordered earliest first and
// includes the course itself last.
func (s *EligibilityService) GetPrerequisiteChain(ctx context.Context, courseID string) ([]models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	var chain []models.Course
	visited := make(map[string]bool)

	current := course
	for current != nil && !visited[current.ID] {
		visited[current.ID] = true
		chain = append(chain, *current)

		reqs, err := s.prereqs.ListByCourse(ctx, current.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
		}
		if len(reqs) == 0 {
			break
		}

		// ListByCourse orders by group then age, so the head is the chain's
		// single-path continuation.
		next := reqs[0].RequiredCourseID
		if next == "" {
			break
		}
		if visited[next] {
			s.logger.Debug("prerequisite chain cycle", zap.String("course_id", next))
			break
		}

		current, err = s.courses.FindByID(ctx, next)
		if err != nil {
			if err == sql.ErrNoRows {
				// A dangling reference ends the walk rather than failing it.
				break
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// DescribeRequirements renders a course's prerequisite groups as a single
// human-readable expression, e.g. "(MATH101 - Algebra OR MATH102 - Geometry)
// AND SCI100 - Biology (Min Grade: C)".
func (s *EligibilityService) DescribeRequirements(ctx context.Context, courseID string) (string, error) {
	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if err == sql.ErrNoRows {
			return "", appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	reqs, err := s.prereqs.ListByCourse(ctx, courseID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	if len(reqs) == 0 {
		return "No prerequisites", nil
	}

	groups := models.GroupRequirements(reqs)
	parts := make([]string, 0, len(groups))
	for _, num := range models.SortedGroupNums(groups) {
		options := make([]string, 0, len(groups[num]))
		for _, req := range groups[num] {
			if req.RequiredCourseCode == "" {
				continue
			}
			options = append(options, requirementLabel(req))
		}
		switch len(options) {
		case 0:
			continue
		case 1:
			parts = append(parts, options[0])
		default:
			parts = append(parts, "("+strings.Join(options, " OR ")+")")
		}
	}
	return strings.Join(parts, " AND "), nil
}

func (s *EligibilityService) bestCompletions(ctx context.Context, studentID string) (map[string]models.CompletionRecord, error) {
	ledger, err := s.completions.ListCompleted(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completions")
	}
	return models.BestCompletions(ledger), nil
}

// EvaluateRequirements checks a completion map against a course's
// requirement set. Requirements sharing a group number are alternatives;
// one satisfied member satisfies the group, and the course is met only when
// every group is satisfied. Requirements whose referenced course is gone are
// skipped. The returned result carries display strings for the satisfied and
// missing groups plus the override flag for advisory-only failures.
func EvaluateRequirements(reqs []models.PrerequisiteRequirement, completions map[string]models.CompletionRecord) *models.EligibilityResult {
	result := &models.EligibilityResult{}

	if len(reqs) == 0 {
		result.Meets = true
		result.Reason = "No prerequisites required"
		return result
	}

	groups := models.GroupRequirements(reqs)

	allSatisfied := true
	var satisfied, missing []string

	for _, num := range models.SortedGroupNums(groups) {
		group := groups[num]

		groupSatisfied := false
		var groupMissing []string

		for _, req := range group {
			if req.RequiredCourseID == "" || req.RequiredCourseCode == "" {
				continue
			}

			record, completed := completions[req.RequiredCourseID]
			if !completed {
				groupMissing = append(groupMissing, requirementLabel(req))
				continue
			}

			minGrade := ""
			if req.MinimumGrade != nil {
				minGrade = *req.MinimumGrade
			}
			if minGrade == "" || models.GradeMeets(record.Grade, minGrade) {
				groupSatisfied = true
				grade := record.Grade
				if grade == "" {
					grade = "N/A"
				}
				satisfied = append(satisfied, fmt.Sprintf("%s - %s (Grade: %s)", req.RequiredCourseCode, req.RequiredCourseName, grade))
				break
			}

			groupMissing = append(groupMissing, fmt.Sprintf("%s - %s (Grade: %s, Required: %s or better)",
				req.RequiredCourseCode, req.RequiredCourseName, record.Grade, minGrade))
		}

		if !groupSatisfied {
			allSatisfied = false
			if len(groupMissing) > 1 {
				missing = append(missing, "One of: "+strings.Join(groupMissing, " OR "))
			} else {
				missing = append(missing, groupMissing...)
			}
		}
	}

	advisoryOnly := true
	for _, req := range reqs {
		if req.IsRequired {
			advisoryOnly = false
			break
		}
	}

	result.Meets = allSatisfied
	result.SatisfiedGroups = satisfied
	result.MissingGroups = missing
	result.Overridable = !allSatisfied && advisoryOnly

	switch {
	case allSatisfied:
		result.Reason = "All prerequisites met"
	case advisoryOnly:
		result.Reason = "Recommended prerequisites not met (enrollment allowed with warning)"
	default:
		result.Reason = "Required prerequisites not met: " + strings.Join(missing, "; ")
	}

	return result
}

func requirementLabel(req models.PrerequisiteRequirement) string {
	label := fmt.Sprintf("%s - %s", req.RequiredCourseCode, req.RequiredCourseName)
	if req.MinimumGrade != nil && *req.MinimumGrade != "" {
		label += fmt.Sprintf(" (Min Grade: %s)", *req.MinimumGrade)
	}
	return label
}
