package attendance

import (
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sentinels returned by lookups that callers may want to display.
const (
	UnknownStudent = "Unknown Student"
	UnknownRoll    = "N/A"
)

// ErrInvalidStatus is returned when a mark carries neither present nor absent.
var ErrInvalidStatus = errors.New("status must be present or absent")

// state is everything the manager owns. It is serialised as a whole.
type state struct {
	Authenticated    bool              `json:"isAuthenticated"`
	TeacherName      string            `json:"teacherName"`
	TeacherID        string            `json:"teacherId"`
	SelectedSection  string            `json:"selectedSection"`
	CurrentSessionID string            `json:"currentSessionId"`
	Students         Roster            `json:"students"`
	Sections         []Section         `json:"sections"`
	Sessions         []Session         `json:"attendanceSessions"`
	History          []Record          `json:"attendanceHistory"`
	Marks            map[string]Status `json:"currentAttendance"`
	Processed        []string          `json:"processedStudents"`
}

func (s *state) normalize() {
	if s.Students == nil {
		s.Students = Roster{}
	}
	if s.Sections == nil {
		s.Sections = []Section{}
	}
	if s.Sessions == nil {
		s.Sessions = []Session{}
	}
	for i := range s.Sessions {
		if s.Sessions[i].Records == nil {
			s.Sessions[i].Records = []Record{}
		}
	}
	if s.History == nil {
		s.History = []Record{}
	}
	if s.Marks == nil {
		s.Marks = map[string]Status{}
	}
	if s.Processed == nil {
		s.Processed = []string{}
	}
}

// Manager is the attendance session state container. It performs no I/O and
// is not safe for concurrent use; Service serialises access to it.
type Manager struct {
	st    state
	now   func() time.Time
	newID func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used to stamp sessions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithRoster seeds the roster.
func WithRoster(r Roster) Option {
	return func(m *Manager) { m.st.Students = r.clone() }
}

// NewManager returns an idle, unauthenticated manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		now:   time.Now,
		newID: func() string { return "session_" + uuid.NewString() },
	}
	m.st.normalize()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login gates the teacher UI. There is no credential check here; both
// values must be non-empty.
func (m *Manager) Login(identifier, secret string) bool {
	if identifier == "" || secret == "" {
		return false
	}
	name, _, _ := strings.Cut(identifier, "@")
	m.st.Authenticated = true
	m.st.TeacherName = name
	m.st.TeacherID = identifier
	return true
}

// Logout clears auth and in-progress state. Sessions and history survive.
func (m *Manager) Logout() {
	m.st.Authenticated = false
	m.st.TeacherName = ""
	m.st.TeacherID = ""
	m.st.SelectedSection = ""
	m.st.CurrentSessionID = ""
	m.resetMarks()
}

// Authenticated reports the auth flag.
func (m *Manager) Authenticated() bool { return m.st.Authenticated }

// TeacherName returns the display name derived at login.
func (m *Manager) TeacherName() string { return m.st.TeacherName }

// TeacherID returns the full identifier the teacher logged in with.
func (m *Manager) TeacherID() string { return m.st.TeacherID }

// SetRoster replaces the roster and section metadata.
func (m *Manager) SetRoster(r Roster, sections []Section) {
	m.st.Students = r.clone()
	m.st.Sections = append([]Section{}, sections...)
}

// SelectSection sets the section for the next attendance pass. Unknown names
// are accepted and behave as an empty roster.
func (m *Manager) SelectSection(name string) {
	m.st.SelectedSection = name
}

// SelectedSection returns the active section name.
func (m *Manager) SelectedSection() string { return m.st.SelectedSection }

// Students returns the roster of a section, empty when unknown.
func (m *Manager) Students(section string) []Student {
	return append([]Student{}, m.st.Students[section]...)
}

// StartSession begins a new pass, discarding any provisional marks.
func (m *Manager) StartSession() string {
	m.st.CurrentSessionID = m.newID()
	m.resetMarks()
	return m.st.CurrentSessionID
}

// CurrentSessionID returns the in-progress session id, empty when idle.
func (m *Manager) CurrentSessionID() string { return m.st.CurrentSessionID }

// MarkStudent records a provisional status. The last mark wins.
func (m *Manager) MarkStudent(studentID string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if _, seen := m.st.Marks[studentID]; !seen {
		m.st.Processed = append(m.st.Processed, studentID)
	}
	m.st.Marks[studentID] = status
	return nil
}

// SubmitSession finalizes the pass over the selected section. Students
// without a mark are recorded absent.
func (m *Manager) SubmitSession() Session {
	now := m.now()
	date, clock := now.Format(DateLayout), now.Format(TimeLayout)
	section := m.st.SelectedSection
	roster := m.st.Students[section]

	id := m.st.CurrentSessionID
	if id == "" {
		id = m.newID()
	}

	records := make([]Record, 0, len(roster))
	for _, st := range roster {
		status, ok := m.st.Marks[st.ID]
		if !ok {
			status = StatusAbsent
		}
		records = append(records, Record{
			StudentID: st.ID,
			Date:      date,
			Time:      clock,
			Status:    status,
			Section:   section,
		})
	}
	present, absent := countStatuses(records)
	sess := Session{
		ID:            id,
		Date:          date,
		Time:          clock,
		Section:       section,
		TotalStudents: len(roster),
		PresentCount:  present,
		AbsentCount:   absent,
		Records:       records,
	}

	m.st.Sessions = append(m.st.Sessions, sess)
	m.st.History = append(m.st.History, records...)
	m.st.CurrentSessionID = ""
	m.resetMarks()
	return sess.clone()
}

// CorrectRecord flips an absent record to present in both the session and
// the flat history. Any other request is ignored and reports false.
func (m *Manager) CorrectRecord(sessionID, studentID string, newStatus Status) bool {
	if newStatus != StatusPresent {
		return false
	}
	si := m.sessionIndex(sessionID)
	if si < 0 {
		return false
	}
	sess := &m.st.Sessions[si]
	ri := -1
	for i, r := range sess.Records {
		if r.StudentID == studentID {
			ri = i
			break
		}
	}
	if ri < 0 || sess.Records[ri].Status != StatusAbsent {
		return false
	}

	records := append([]Record(nil), sess.Records...)
	records[ri].Status = StatusPresent
	sess.Records = records
	sess.PresentCount, sess.AbsentCount = countStatuses(records)

	// History has no record ids; (student, date, section) identifies the entry.
	for i := range m.st.History {
		h := &m.st.History[i]
		if h.StudentID == studentID && h.Date == sess.Date && h.Section == sess.Section && h.Status == StatusAbsent {
			h.Status = StatusPresent
		}
	}
	return true
}

// StudentHistory returns the student's records in append order.
func (m *Manager) StudentHistory(studentID, section string) []Record {
	out := []Record{}
	for _, r := range m.st.History {
		if r.StudentID == studentID && r.Section == section {
			out = append(out, r)
		}
	}
	return out
}

// AttendancePercentage returns round(present/total*100) over the matching
// history, or 0 when nothing matches.
func (m *Manager) AttendancePercentage(studentID, section string, filter PeriodFilter) int {
	var total, present int
	for _, r := range m.st.History {
		if r.StudentID != studentID || r.Section != section || !filter.match(r) {
			continue
		}
		total++
		if r.Status == StatusPresent {
			present++
		}
	}
	return percent(present, total)
}

// Progress reports how far the in-progress pass has got. Marks for students
// outside the selected section's roster are not counted.
func (m *Manager) Progress() Progress {
	roster := m.st.Students[m.st.SelectedSection]
	p := Progress{
		SessionID: m.st.CurrentSessionID,
		Section:   m.st.SelectedSection,
		Total:     len(roster),
	}
	for _, st := range roster {
		status, ok := m.st.Marks[st.ID]
		if !ok {
			continue
		}
		p.Processed++
		if status == StatusPresent {
			p.Present++
		} else {
			p.Absent++
		}
	}
	p.Remaining = p.Total - p.Processed
	p.Percent = percent(p.Processed, p.Total)
	p.Complete = p.Processed >= p.Total
	return p
}

// OnRoster reports whether studentID belongs to the selected section.
func (m *Manager) OnRoster(studentID string) bool {
	_, ok := m.lookup(m.st.SelectedSection, studentID)
	return ok
}

// Sessions returns all completed sessions, oldest first.
func (m *Manager) Sessions() []Session {
	out := make([]Session, 0, len(m.st.Sessions))
	for _, s := range m.st.Sessions {
		out = append(out, s.clone())
	}
	return out
}

// Session looks a session up by id.
func (m *Manager) Session(id string) (Session, bool) {
	i := m.sessionIndex(id)
	if i < 0 {
		return Session{}, false
	}
	return m.st.Sessions[i].clone(), true
}

// LatestSession returns the most recently submitted session.
func (m *Manager) LatestSession() (Session, bool) {
	if len(m.st.Sessions) == 0 {
		return Session{}, false
	}
	return m.st.Sessions[len(m.st.Sessions)-1].clone(), true
}

// SessionRate is the share of present students in a session.
func SessionRate(s Session) int {
	return percent(s.PresentCount, s.TotalStudents)
}

// StudentName resolves a display name, falling back to UnknownStudent.
func (m *Manager) StudentName(section, studentID string) string {
	if st, ok := m.lookup(section, studentID); ok {
		return st.Name
	}
	return UnknownStudent
}

// StudentRollNumber resolves a roll number, falling back to UnknownRoll.
func (m *Manager) StudentRollNumber(section, studentID string) string {
	if st, ok := m.lookup(section, studentID); ok {
		return st.RollNumber
	}
	return UnknownRoll
}

// Sections lists roster sections by name with their sizes.
func (m *Manager) Sections() []SectionSummary {
	ids := make(map[string]string, len(m.st.Sections))
	for _, s := range m.st.Sections {
		ids[s.Name] = s.ID
	}
	out := make([]SectionSummary, 0, len(m.st.Students))
	for name, students := range m.st.Students {
		out = append(out, SectionSummary{Name: name, ID: ids[name], Students: len(students)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SectionID returns the remote id of a section, or its name if none is known.
func (m *Manager) SectionID(name string) string {
	for _, s := range m.st.Sections {
		if s.Name == name && s.ID != "" {
			return s.ID
		}
	}
	return name
}

// AverageSectionSize is the rounded mean roster size across sections.
func (m *Manager) AverageSectionSize() int {
	var students int
	for _, s := range m.st.Students {
		students += len(s)
	}
	if len(m.st.Students) == 0 {
		return 0
	}
	return int(math.Floor(float64(students)/float64(len(m.st.Students)) + 0.5))
}

func (m *Manager) lookup(section, studentID string) (Student, bool) {
	for _, st := range m.st.Students[section] {
		if st.ID == studentID {
			return st, true
		}
	}
	return Student{}, false
}

func (m *Manager) sessionIndex(id string) int {
	for i, s := range m.st.Sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) resetMarks() {
	m.st.Marks = map[string]Status{}
	m.st.Processed = []string{}
}

func countStatuses(records []Record) (present, absent int) {
	for _, r := range records {
		if r.Status == StatusPresent {
			present++
		} else {
			absent++
		}
	}
	return present, absent
}

// percent rounds half up.
func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Floor(float64(part)/float64(total)*100 + 0.5))
}

func (r Roster) clone() Roster {
	out := make(Roster, len(r))
	for name, students := range r {
		out[name] = append([]Student{}, students...)
	}
	return out
}
