package model

// Category groups subjects. Long runs of one category are limited by the
// sequencer policy.
type Category string

const (
	CategoryPolitical Category = "CT"
	CategoryMilitary  Category = "QS"
)

var categoryLabels = map[Category]string{
	CategoryPolitical: "Political",
	CategoryMilitary:  "Military",
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human-readable name of the category.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

type Subject struct {
	ID             int64    `json:"id"`
	Name           string   `json:"name"`
	Category       Category `json:"category"`
	PrerequisiteID *int64   `json:"prerequisite_id"` // nil when the subject has no prerequisite
}

// HasPrerequisite reports whether the subject depends on another subject.
func (s *Subject) HasPrerequisite() bool {
	return s.PrerequisiteID != nil
}
