package grade

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MaxGrade is the (exclusive) upper bound of the grading scale.
const MaxGrade = 20

// one or two integer digits, optionally followed by a decimal part: "7", "17", "17.4"
var gradeRegex = regexp.MustCompile(`\d{1,2}(?:\.\d+)?`)

// GradeRecord is a course/grade pair extracted from one line of recognized text.
type GradeRecord struct {
	Course string  `json:"course"`
	Grade  float64 `json:"grade"`
}

// Valid reports whether the record has a course label and a grade on the scale.
func (r GradeRecord) Valid() bool {
	return strings.TrimSpace(r.Course) != "" && isOnScale(r.Grade)
}

// ParseGrades extracts at most one GradeRecord per line of OCR text.
//
// The right-most number under MaxGrade on a line is taken as the grade, and what is left
// of the line once that number is removed is the course. Lines without such a number,
// or without any text besides it, are skipped. It never fails.
func ParseGrades(text string) []GradeRecord {
	records := make([]GradeRecord, 0)
	for _, line := range strings.Split(text, "\n") {
		if rec, ok := parseLine(line); ok {
			records = append(records, rec)
		}
	}
	return records
}

func parseLine(line string) (GradeRecord, bool) {
	var (
		match string
		grade float64
		found bool
	)
	for _, m := range gradeRegex.FindAllString(line, -1) {
		val, err := strconv.ParseFloat(m, 64)
		if err != nil || !isOnScale(val) {
			continue // dates, IDs, page numbers...
		}
		match, grade, found = m, val, true
	}
	if !found {
		return GradeRecord{}, false
	}

	// NB: drops the last textual occurrence of the match, which is not always the matched
	// position: "Bio 5 25" gives the course "Bio 5 2".
	idx := strings.LastIndex(line, match)
	course := strings.TrimSpace(line[:idx] + line[idx+len(match):])
	if course == "" {
		return GradeRecord{}, false
	}
	return GradeRecord{Course: course, Grade: grade}, true
}

func isOnScale(val float64) bool {
	return !math.IsNaN(val) && val >= 0 && val < MaxGrade
}
