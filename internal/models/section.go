package models

import "time"

// TimeBlock is a weekly recurring interval, expressed in minutes since
// midnight on a named weekday.
type TimeBlock struct {
	DayOfWeek   string `db:"day_of_week" json:"day_of_week"`
	StartMinute int    `db:"start_minute" json:"start_minute"`
	EndMinute   int    `db:"end_minute" json:"end_minute"`
}

// Overlaps reports whether two blocks collide. Blocks on different days never
// collide; on the same day the comparison is strict, so a block ending exactly
// when another starts does not conflict, while identical blocks always do.
func (t TimeBlock) Overlaps(other TimeBlock) bool {
	if t.DayOfWeek != other.DayOfWeek {
		return false
	}
	return t.StartMinute < other.EndMinute && other.StartMinute < t.EndMinute
}

// Section is a concrete, capacity- and time-bound offering of a course.
type Section struct {
	ID       string `db:"id" json:"id"`
	CourseID string `db:"course_id" json:"course_id"`
	Room     string `db:"room" json:"room"`
	TimeBlock
	Capacity      int       `db:"capacity" json:"capacity"`
	EnrolledCount int       `db:"enrolled_count" json:"enrolled_count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// HasCapacity reports whether the section can still admit a student.
func (s *Section) HasCapacity() bool {
	return s.EnrolledCount < s.Capacity
}
