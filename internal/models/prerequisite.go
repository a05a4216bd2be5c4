package models

import (
	"sort"
	"time"
)

// PrerequisiteRequirement links a course to one of the courses that must be
// completed before enrolling in it. Requirements sharing a group number are
// alternatives (OR); distinct groups must all be satisfied (AND).
type PrerequisiteRequirement struct {
	ID               string    `db:"id" json:"id"`
	CourseID         string    `db:"course_id" json:"course_id"`
	RequiredCourseID string    `db:"required_course_id" json:"required_course_id"`
	GroupNum         int       `db:"group_num" json:"group_num"`
	MinimumGrade     *string   `db:"minimum_grade" json:"minimum_grade,omitempty"`
	IsRequired       bool      `db:"is_required" json:"is_required"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`

	// RequiredCourseCode and RequiredCourseName are joined columns populated
	// by list queries for display purposes.
	RequiredCourseCode string `db:"required_course_code" json:"required_course_code,omitempty"`
	RequiredCourseName string `db:"required_course_name" json:"required_course_name,omitempty"`
}

// GroupRequirements partitions requirements by group number. Iteration order
// over the returned map is not defined; use SortedGroupNums for stable walks.
func GroupRequirements(reqs []PrerequisiteRequirement) map[int][]PrerequisiteRequirement {
	groups := make(map[int][]PrerequisiteRequirement)
	for _, r := range reqs {
		groups[r.GroupNum] = append(groups[r.GroupNum], r)
	}
	return groups
}

// SortedGroupNums returns the group numbers of a partition in ascending order.
func SortedGroupNums(groups map[int][]PrerequisiteRequirement) []int {
	nums := make([]int, 0, len(groups))
	for n := range groups {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
