package grade

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/alama/core"
)

// fields grades can be ordered by
var OrderingFields = []string{"course", "grade", "created_at", "updated_at"}

// Grade is a persisted course grade of a user.
type Grade struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Course    string    `json:"course"`
	Grade     float64   `json:"grade"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// CourseKey is the normalized course name grades are merged by.
func (g Grade) CourseKey() string {
	return CourseKey(g.Course)
}

// CourseKey normalizes a course name: course names match case-insensitively.
func CourseKey(course string) string {
	return core.CleanString(course, true /* lower */)
}

// NewGrade contains information needed to create a new Grade.
type NewGrade struct {
	Course string  `json:"course" validate:"required,max=255"`
	Grade  float64 `json:"grade" validate:"gte=0,lt=20"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Course = core.CleanString(ng.Course)
	return validate.Struct(ng)
}

// UpdateGrade defines what information may be provided to modify an existing Grade.
type UpdateGrade struct {
	Course string   `json:"course" validate:"omitempty,max=255"`
	Grade  *float64 `json:"grade" validate:"omitempty,gte=0,lt=20"`
}

func (ug *UpdateGrade) Validate(validate *validator.Validate) error {
	ug.Course = core.CleanString(ug.Course)
	return validate.Struct(ug)
}

// ParseRequest carries OCR (or pasted) transcript text. Any text parses, the empty one included.
type ParseRequest struct {
	Text string `json:"text"`
}

// ImportTextRequest carries the transcript text to import.
type ImportTextRequest struct {
	Text string `json:"text" validate:"required"`
}

func (ir ImportTextRequest) Validate(validate *validator.Validate) error { return validate.Struct(ir) }

type QueryFilter struct {
	Search string `query:"search"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// GetFilter looks up a single Grade. ID takes precedence over CourseKey.
type GetFilter struct {
	ID        string
	OwnerID   string
	CourseKey string
}

// ImportResult reports what an import did to the user's grades.
type ImportResult struct {
	Created []Grade `json:"created"`
	Updated []Grade `json:"updated"`
	Skipped int     `json:"skipped"`
}
