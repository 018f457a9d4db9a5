// Package export renders course timetables as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Freeeeeet/training_scheduler/internal/assigner"
	"github.com/Freeeeeet/training_scheduler/internal/catalog"
	"github.com/Freeeeeet/training_scheduler/internal/model"
)

const (
	timetableSheet = "Timetable"
	summarySheet   = "Summary"
	resourcesSheet = "Resources"
	holidaysSheet  = "Holidays"
)

// Timetable writes a workbook with one row per slot and one column per team.
// A cell holds the subject name followed by the lecturer and location once
// the session is resourced. Further sheets count sessions per team, show
// how many timetable slots each lecturer and location is booked for, and
// list the holidays inside the course.
func Timetable(w io.Writer, course model.Course, cat *catalog.Catalog, sessions []model.Session) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", timetableSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	teams := teamColumns(sessions)
	slots, cells := grid(sessions)

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	body, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("create body style: %w", err)
	}

	title := fmt.Sprintf("%s (%s to %s)", course.Name, model.DateKey(course.StartDate), model.DateKey(course.EndDate))
	if err := f.SetCellValue(timetableSheet, "A1", title); err != nil {
		return err
	}

	columns := []string{"Date", "Day", "Session"}
	for _, id := range teams {
		name := fmt.Sprintf("Team %d", id)
		if t, ok := cat.Team(id); ok && t.Name != "" {
			name = t.Name
		}
		columns = append(columns, name)
	}
	for i, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(timetableSheet, cell, name); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 2)
	if err := f.SetCellStyle(timetableSheet, "A2", last, header); err != nil {
		return err
	}

	for r, slot := range slots {
		row := r + 3
		date, _ := model.ParseDate(slot.Date)
		values := []any{slot.Date, model.WeekdayLabel(date), string(slot.Period)}
		for _, id := range teams {
			text := ""
			if s, ok := cells[cellKey{slot, id}]; ok {
				text = describe(cat, s)
			}
			values = append(values, text)
		}
		first, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(timetableSheet, first, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
	}
	if len(slots) > 0 {
		end, _ := excelize.CoordinatesToCellName(len(columns), len(slots)+2)
		if err := f.SetCellStyle(timetableSheet, "A3", end, body); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(timetableSheet, "A", "C", 12); err != nil {
		return err
	}
	if len(teams) > 0 {
		firstTeam, _ := excelize.ColumnNumberToName(4)
		lastTeam, _ := excelize.ColumnNumberToName(len(columns))
		if err := f.SetColWidth(timetableSheet, firstTeam, lastTeam, 28); err != nil {
			return err
		}
	}

	if err := writeSummary(f, cat, teams, sessions, header); err != nil {
		return err
	}
	if err := writeResources(f, cat, slots, sessions, header); err != nil {
		return err
	}
	if err := writeHolidays(f, course, cat, header); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, cat *catalog.Catalog, teams []int64, sessions []model.Session, header int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	head := []any{"Team", "Program", "Sessions", "Resourced", "Pending"}
	if err := f.SetSheetRow(summarySheet, "A1", &head); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "E1", header); err != nil {
		return err
	}

	total := make(map[int64]int)
	done := make(map[int64]int)
	for i := range sessions {
		total[sessions[i].TeamID]++
		if sessions[i].IsResourced() {
			done[sessions[i].TeamID]++
		}
	}

	for i, id := range teams {
		name, program := fmt.Sprintf("Team %d", id), ""
		if t, ok := cat.Team(id); ok {
			name, program = t.Name, t.Program.Label()
		}
		row := []any{name, program, total[id], done[id], total[id] - done[id]}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeResources(f *excelize.File, cat *catalog.Catalog, slots []model.SlotKey, sessions []model.Session, header int) error {
	if _, err := f.NewSheet(resourcesSheet); err != nil {
		return fmt.Errorf("create resources sheet: %w", err)
	}
	head := []any{"Kind", "Name", "Booked", "Free"}
	if err := f.SetSheetRow(resourcesSheet, "A1", &head); err != nil {
		return err
	}
	if err := f.SetCellStyle(resourcesSheet, "A1", "D1", header); err != nil {
		return err
	}

	busy := assigner.Unavailable(sessions)
	var rows [][]any
	for _, l := range cat.Lecturers() {
		booked := 0
		for _, slot := range slots {
			if busy.LecturerBusy(slot, l.ID) {
				booked++
			}
		}
		rows = append(rows, []any{"Lecturer", l.FullName, booked, len(slots) - booked})
	}
	for _, loc := range cat.Locations() {
		booked := 0
		for _, slot := range slots {
			if busy.LocationBusy(slot, loc.ID) {
				booked++
			}
		}
		rows = append(rows, []any{"Location", loc.Name, booked, len(slots) - booked})
	}

	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(resourcesSheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func writeHolidays(f *excelize.File, course model.Course, cat *catalog.Catalog, header int) error {
	if _, err := f.NewSheet(holidaysSheet); err != nil {
		return fmt.Errorf("create holidays sheet: %w", err)
	}
	head := []any{"Date", "Day"}
	if err := f.SetSheetRow(holidaysSheet, "A1", &head); err != nil {
		return err
	}
	if err := f.SetCellStyle(holidaysSheet, "A1", "B1", header); err != nil {
		return err
	}

	row := 2
	start, end := model.DateOnly(course.StartDate), model.DateOnly(course.EndDate)
	for _, d := range cat.HolidayDates() {
		if d.Before(start) || d.After(end) {
			continue
		}
		values := []any{model.DateKey(d), model.WeekdayLabel(d)}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(holidaysSheet, cell, &values); err != nil {
			return err
		}
		row++
	}
	return nil
}

type cellKey struct {
	slot   model.SlotKey
	teamID int64
}

func teamColumns(sessions []model.Session) []int64 {
	var ids []int64
	for i := range sessions {
		if !slices.Contains(ids, sessions[i].TeamID) {
			ids = append(ids, sessions[i].TeamID)
		}
	}
	slices.Sort(ids)
	return ids
}

func grid(sessions []model.Session) ([]model.SlotKey, map[cellKey]*model.Session) {
	sorted := slices.Clone(sessions)
	slices.SortStableFunc(sorted, model.CompareSessions)

	var slots []model.SlotKey
	cells := make(map[cellKey]*model.Session, len(sorted))
	for i := range sorted {
		s := &sorted[i]
		slot := s.Slot()
		if len(slots) == 0 || slots[len(slots)-1] != slot {
			slots = append(slots, slot)
		}
		cells[cellKey{slot, s.TeamID}] = s
	}
	return slots, cells
}

func describe(cat *catalog.Catalog, s *model.Session) string {
	subject := fmt.Sprintf("Subject %d", s.SubjectID)
	if subj, ok := cat.Subject(s.SubjectID); ok {
		subject = subj.Name
	}
	if !s.IsResourced() {
		return subject
	}

	lines := []string{subject}
	if l, ok := cat.Lecturer(*s.LecturerID); ok {
		lines = append(lines, l.FullName)
	}
	if loc, ok := cat.Location(*s.LocationID); ok {
		lines = append(lines, loc.Name)
	}
	return strings.Join(lines, "\n")
}
