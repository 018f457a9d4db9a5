package model

// Program is the training program a team follows. Every program has exactly
// one curriculum.
type Program string

const (
	ProgramDH Program = "DH"
	ProgramCD Program = "CD"
)

var programLabels = map[Program]string{
	ProgramDH: "University",
	ProgramCD: "College",
}

// Valid reports whether p is one of the known programs.
func (p Program) Valid() bool {
	_, ok := programLabels[p]
	return ok
}

// Label returns the human-readable name of the program.
func (p Program) Label() string {
	if label, ok := programLabels[p]; ok {
		return label
	}
	return string(p)
}

// Team is a class of trainees scheduled together.
type Team struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Program      Program `json:"program"`
	CourseID     int64   `json:"course_id"`
	UniversityID int64   `json:"university_id"`
	TeamLeaderID *int64  `json:"team_leader_id"`
}

// Curriculum is the ordered list of subjects required by a program. A
// subject listed twice is scheduled twice.
type Curriculum struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Program    Program `json:"program"`
	SubjectIDs []int64 `json:"subject_ids"`
}
