package roster

import (
	"context"

	"attendtrack/internal/attendance"
)

// Static serves a fixed roster, used when no roster service is configured.
type Static struct {
	Roster attendance.Roster
}

// NewStatic returns the built-in demo roster.
func NewStatic() *Static {
	return &Static{Roster: Demo()}
}

// Load returns the roster with one Section per name and no remote ids.
func (s *Static) Load(context.Context) (attendance.Roster, []attendance.Section, error) {
	sections := make([]attendance.Section, 0, len(s.Roster))
	for name := range s.Roster {
		sections = append(sections, attendance.Section{Name: name})
	}
	return s.Roster, sections, nil
}

// Demo is the three-section roster shipped for local use.
func Demo() attendance.Roster {
	return attendance.Roster{
		"Section A": {
			{ID: "1", Name: "Alice Johnson", RollNumber: "A001"},
			{ID: "2", Name: "Bob Smith", RollNumber: "A002"},
			{ID: "3", Name: "Charlie Brown", RollNumber: "A003"},
			{ID: "4", Name: "Diana Prince", RollNumber: "A004"},
			{ID: "5", Name: "Edward Norton", RollNumber: "A005"},
			{ID: "6", Name: "Fiona Apple", RollNumber: "A006"},
			{ID: "7", Name: "George Washington", RollNumber: "A007"},
			{ID: "8", Name: "Helen Keller", RollNumber: "A008"},
		},
		"Section B": {
			{ID: "9", Name: "Ivan Petrov", RollNumber: "B001"},
			{ID: "10", Name: "Julia Roberts", RollNumber: "B002"},
			{ID: "11", Name: "Kevin Hart", RollNumber: "B003"},
			{ID: "12", Name: "Linda Hamilton", RollNumber: "B004"},
			{ID: "13", Name: "Michael Jordan", RollNumber: "B005"},
			{ID: "14", Name: "Natalie Portman", RollNumber: "B006"},
		},
		"Section C": {
			{ID: "15", Name: "Oliver Twist", RollNumber: "C001"},
			{ID: "16", Name: "Penelope Cruz", RollNumber: "C002"},
			{ID: "17", Name: "Quincy Jones", RollNumber: "C003"},
			{ID: "18", Name: "Rachel Green", RollNumber: "C004"},
			{ID: "19", Name: "Samuel Jackson", RollNumber: "C005"},
			{ID: "20", Name: "Tina Turner", RollNumber: "C006"},
		},
	}
}
