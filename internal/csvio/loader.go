package csvio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/Freeeeeet/training_scheduler/internal/catalog"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

// Reference is everything a file based run needs.
type Reference struct {
	Input   catalog.Input
	Courses []model.Course
}

// Course returns the course with the given id.
func (r *Reference) Course(id int64) (model.Course, bool) {
	for _, c := range r.Courses {
		if c.ID == id {
			return c, true
		}
	}
	return model.Course{}, false
}

// LoadReference reads subjects.csv, lecturers.csv, locations.csv, teams.csv,
// curricula.csv and courses.csv from dir. holidays.csv is optional.
func LoadReference(dir string) (*Reference, error) {
	ref := &Reference{}

	var subjects []*SubjectCSV
	if err := unmarshal(dir, "subjects.csv", &subjects, true); err != nil {
		return nil, err
	}
	for _, row := range subjects {
		prereq, err := parseOptional(row.PrerequisiteID)
		if err != nil {
			return nil, fmt.Errorf("subjects.csv: subject %d prerequisite_id: %w", row.ID, err)
		}
		ref.Input.Subjects = append(ref.Input.Subjects, model.Subject{
			ID:             row.ID,
			Name:           row.Name,
			Category:       model.Category(row.Category),
			PrerequisiteID: prereq,
		})
	}

	var lecturers []*LecturerCSV
	if err := unmarshal(dir, "lecturers.csv", &lecturers, true); err != nil {
		return nil, err
	}
	for _, row := range lecturers {
		specs, err := parseList(row.Specializations)
		if err != nil {
			return nil, fmt.Errorf("lecturers.csv: lecturer %d: %w", row.ID, err)
		}
		ref.Input.Lecturers = append(ref.Input.Lecturers, model.Lecturer{
			ID:                 row.ID,
			FullName:           row.FullName,
			Faculty:            model.Category(row.Faculty),
			MaxSessionsPerWeek: row.MaxSessionsPerWeek,
			SpecializationIDs:  specs,
		})
	}

	var locations []*LocationCSV
	if err := unmarshal(dir, "locations.csv", &locations, true); err != nil {
		return nil, err
	}
	for _, row := range locations {
		subjects, err := parseList(row.Subjects)
		if err != nil {
			return nil, fmt.Errorf("locations.csv: location %d: %w", row.ID, err)
		}
		ref.Input.Locations = append(ref.Input.Locations, model.Location{
			ID:          row.ID,
			Name:        row.Name,
			Capacity:    row.Capacity,
			AffinityIDs: subjects,
		})
	}

	var holidays []*HolidayCSV
	if err := unmarshal(dir, "holidays.csv", &holidays, false); err != nil {
		return nil, err
	}
	for i, row := range holidays {
		date, err := model.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("holidays.csv: row %d: %w", i+1, err)
		}
		ref.Input.Holidays = append(ref.Input.Holidays, model.Holiday{ID: int64(i + 1), Date: date, Name: row.Name})
	}

	var teams []*TeamCSV
	if err := unmarshal(dir, "teams.csv", &teams, true); err != nil {
		return nil, err
	}
	for _, row := range teams {
		leader, err := parseOptional(row.TeamLeaderID)
		if err != nil {
			return nil, fmt.Errorf("teams.csv: team %d team_leader_id: %w", row.ID, err)
		}
		ref.Input.Teams = append(ref.Input.Teams, model.Team{
			ID:           row.ID,
			Name:         row.Name,
			Program:      model.Program(row.Program),
			CourseID:     row.CourseID,
			UniversityID: row.UniversityID,
			TeamLeaderID: leader,
		})
	}

	var curricula []*CurriculumCSV
	if err := unmarshal(dir, "curricula.csv", &curricula, true); err != nil {
		return nil, err
	}
	for _, row := range curricula {
		subjects, err := parseList(row.Subjects)
		if err != nil {
			return nil, fmt.Errorf("curricula.csv: curriculum %d: %w", row.ID, err)
		}
		ref.Input.Curricula = append(ref.Input.Curricula, model.Curriculum{
			ID:         row.ID,
			Name:       row.Name,
			Program:    model.Program(row.Program),
			SubjectIDs: subjects,
		})
	}

	var courses []*CourseCSV
	if err := unmarshal(dir, "courses.csv", &courses, true); err != nil {
		return nil, err
	}
	for _, row := range courses {
		start, err := model.ParseDate(row.StartDate)
		if err != nil {
			return nil, fmt.Errorf("courses.csv: course %d start_date: %w", row.ID, err)
		}
		end, err := model.ParseDate(row.EndDate)
		if err != nil {
			return nil, fmt.Errorf("courses.csv: course %d end_date: %w", row.ID, err)
		}
		status := model.CourseStatus(row.Status)
		if status == "" {
			status = model.CourseStatusDraft
		}
		if !status.Valid() {
			return nil, model.Invalid(model.Ref("course", row.ID), "unknown status %q", row.Status)
		}
		ref.Courses = append(ref.Courses, model.Course{ID: row.ID, Name: row.Name, StartDate: start, EndDate: end, Status: status})
	}

	return ref, nil
}

func unmarshal(dir, name string, out any, required bool) error {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if err := gocsv.UnmarshalFile(f, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil
		}
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}
