package service

import (
	"math"
	"strconv"

	"anoa.com/realmkeeper/internal/entity"
)

const (
	MinValue = 1
	MaxValue = 20
)

// grades maps rating values 1..20 to letter grades.
var grades = [MaxValue]string{
	"F", "E-", "E", "E+", "D-", "D", "D+", "C-", "C", "C+",
	"B-", "B", "B+", "A-", "A", "A+", "S-", "S", "S+", "Z",
}

// GradeForValue rounds value to the nearest integer, clamps it to [1,20]
// and returns the matching grade.
func GradeForValue(value float64) string {
	if math.IsNaN(value) {
		return grades[0]
	}
	idx := math.Round(value)
	if idx < MinValue {
		idx = MinValue
	}
	if idx > MaxValue {
		idx = MaxValue
	}
	return grades[int(idx)-1]
}

// Display renders value the way the trait's display mode asks for.
func Display(mode entity.DisplayMode, value int) string {
	if mode == entity.DisplayGrade {
		return GradeForValue(float64(value))
	}
	return strconv.Itoa(value)
}
