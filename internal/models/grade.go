package models

// gradeRanks fixes the institutional letter-grade ordering used for
// minimum-grade comparisons. Higher rank is a better grade. Letters outside
// the table rank zero and never satisfy a stated minimum.
var gradeRanks = map[string]int{
	"A+": 13,
	"A":  12,
	"A-": 11,
	"B+": 10,
	"B":  9,
	"B-": 8,
	"C+": 7,
	"C":  6,
	"C-": 5,
	"D+": 4,
	"D":  3,
	"D-": 2,
	"F":  1,
}

// GradeRank returns the ordinal position of a letter grade, zero when the
// letter is unknown.
func GradeRank(letter string) int {
	return gradeRanks[letter]
}

// GradeMeets reports whether an earned grade satisfies a minimum letter
// floor. An exact match satisfies. Unknown earned grades never satisfy;
// an unknown minimum is treated as unsatisfiable rather than open.
func GradeMeets(earned, minimum string) bool {
	e, ok := gradeRanks[earned]
	if !ok {
		return false
	}
	m, ok := gradeRanks[minimum]
	if !ok {
		return false
	}
	return e >= m
}
