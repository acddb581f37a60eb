package attendance

import "time"

// Status is a present/absent decision for one student.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// Date and time layouts used on records and sessions.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Student is a roster entry. Immutable once loaded.
type Student struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	RollNumber string `json:"rollNumber"`
}

// Section is metadata about a section as reported by the roster service.
type Section struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Branch string `json:"branch,omitempty"`
	Year   int    `json:"year,omitempty"`
}

// Roster maps section name to its ordered students.
type Roster map[string][]Student

// Record is one finalized attendance decision.
type Record struct {
	StudentID string `json:"studentId"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Status    Status `json:"status"`
	Section   string `json:"section"`
}

// Session is one completed pass over a section's roster.
type Session struct {
	ID            string   `json:"id"`
	Date          string   `json:"date"`
	Time          string   `json:"time"`
	Section       string   `json:"section"`
	TotalStudents int      `json:"totalStudents"`
	PresentCount  int      `json:"presentCount"`
	AbsentCount   int      `json:"absentCount"`
	Records       []Record `json:"records"`
}

func (s Session) clone() Session {
	out := s
	out.Records = append([]Record(nil), s.Records...)
	return out
}

// PeriodFilter narrows percentage queries. Month and Year apply independently;
// a nil field does not filter.
type PeriodFilter struct {
	Month *time.Month
	Year  *int
}

// InMonth builds a filter for one calendar month.
func InMonth(month time.Month, year int) PeriodFilter {
	return PeriodFilter{Month: &month, Year: &year}
}

// InYear builds a filter for a whole year.
func InYear(year int) PeriodFilter {
	return PeriodFilter{Year: &year}
}

func (f PeriodFilter) match(r Record) bool {
	if f.Month == nil && f.Year == nil {
		return true
	}
	d, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return false
	}
	if f.Month != nil && d.Month() != *f.Month {
		return false
	}
	if f.Year != nil && d.Year() != *f.Year {
		return false
	}
	return true
}

// Progress summarises the in-progress session for the selected section.
type Progress struct {
	SessionID string `json:"session_id"`
	Section   string `json:"section"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Remaining int    `json:"remaining"`
	Present   int    `json:"present"`
	Absent    int    `json:"absent"`
	Percent   int    `json:"percent"`
	Complete  bool   `json:"complete"`
}

// SectionSummary is a section name with its roster size.
type SectionSummary struct {
	Name     string `json:"name"`
	ID       string `json:"id,omitempty"`
	Students int    `json:"students"`
}
