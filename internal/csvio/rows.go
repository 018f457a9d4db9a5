// Package csvio reads reference data from CSV files and keeps schedules as
// CSV files bucketed per team and per week.
package csvio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/training_scheduler/internal/model"
)

// Id lists such as specializations are stored in one cell separated by this.
const listSep = "|"

type SubjectCSV struct {
	ID             int64  `csv:"id"`
	Name           string `csv:"name"`
	Category       string `csv:"category"`
	PrerequisiteID string `csv:"prerequisite_id"`
}

type LecturerCSV struct {
	ID                 int64  `csv:"id"`
	FullName           string `csv:"full_name"`
	Faculty            string `csv:"faculty"`
	MaxSessionsPerWeek int    `csv:"max_sessions_per_week"`
	Specializations    string `csv:"specializations"`
}

type LocationCSV struct {
	ID       int64  `csv:"id"`
	Name     string `csv:"name"`
	Capacity int    `csv:"capacity"`
	Subjects string `csv:"subjects"`
}

type HolidayCSV struct {
	Date string `csv:"date"`
	Name string `csv:"name"`
}

type TeamCSV struct {
	ID           int64  `csv:"id"`
	Name         string `csv:"name"`
	Program      string `csv:"program"`
	CourseID     int64  `csv:"course_id"`
	UniversityID int64  `csv:"university_id"`
	TeamLeaderID string `csv:"team_leader_id"`
}

type CurriculumCSV struct {
	ID       int64  `csv:"id"`
	Name     string `csv:"name"`
	Program  string `csv:"program"`
	Subjects string `csv:"subjects"` // ordered, repeats allowed
}

type CourseCSV struct {
	ID        int64  `csv:"id"`
	Name      string `csv:"name"`
	StartDate string `csv:"start_date"`
	EndDate   string `csv:"end_date"`
	Status    string `csv:"status"`
}

type SessionCSV struct {
	Week       int    `csv:"week"`
	TeamID     int64  `csv:"team_id"`
	SubjectID  int64  `csv:"subject_id"`
	Date       string `csv:"date"`
	DayOfWeek  string `csv:"day_of_week"`
	Session    string `csv:"session"`
	LecturerID string `csv:"lecturer_id"`
	LocationID string `csv:"location_id"`
}

func sessionRow(s *model.Session) *SessionCSV {
	return &SessionCSV{
		Week:       s.Week,
		TeamID:     s.TeamID,
		SubjectID:  s.SubjectID,
		Date:       model.DateKey(s.Date),
		DayOfWeek:  s.DayOfWeek,
		Session:    string(s.Period),
		LecturerID: formatOptional(s.LecturerID),
		LocationID: formatOptional(s.LocationID),
	}
}

func (r *SessionCSV) toModel() (model.Session, error) {
	date, err := model.ParseDate(r.Date)
	if err != nil {
		return model.Session{}, err
	}
	lecturer, err := parseOptional(r.LecturerID)
	if err != nil {
		return model.Session{}, fmt.Errorf("lecturer_id: %w", err)
	}
	location, err := parseOptional(r.LocationID)
	if err != nil {
		return model.Session{}, fmt.Errorf("location_id: %w", err)
	}
	return model.Session{
		Week:       r.Week,
		TeamID:     r.TeamID,
		SubjectID:  r.SubjectID,
		Date:       date,
		DayOfWeek:  r.DayOfWeek,
		Period:     model.Period(r.Session),
		LecturerID: lecturer,
		LocationID: location,
	}, nil
}

func parseOptional(cell string) (*int64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func formatOptional(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func parseList(cell string) ([]int64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	parts := strings.Split(cell, listSep)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse id %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
