package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"attendtrack/internal/metrics"
	"attendtrack/internal/queue"
)

// ErrInvalidCredentials is returned when login is refused.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SnapshotStore persists serialised manager state under a key. Save replaces
// the whole value.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Authenticator verifies teacher credentials against a remote service.
type Authenticator interface {
	SignIn(ctx context.Context, identifier, secret string) (string, error)
}

// RosterSource supplies sections and their students.
type RosterSource interface {
	Load(ctx context.Context) (Roster, []Section, error)
}

// Service owns a Manager, serialises access to it and persists a snapshot
// after every state change.
type Service struct {
	mu     sync.Mutex
	m      *Manager
	store  SnapshotStore
	queue  queue.Queue
	auth   Authenticator
	roster RosterSource
	key    string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithQueue publishes session.submitted events after each submit.
func WithQueue(q queue.Queue) ServiceOption {
	return func(s *Service) { s.queue = q }
}

// WithAuthenticator requires a remote sign-in before the local login.
func WithAuthenticator(a Authenticator) ServiceOption {
	return func(s *Service) { s.auth = a }
}

// WithRosterSource reloads the roster after each login.
func WithRosterSource(r RosterSource) ServiceOption {
	return func(s *Service) { s.roster = r }
}

// WithSnapshotKey overrides SnapshotKey.
func WithSnapshotKey(key string) ServiceOption {
	return func(s *Service) { s.key = key }
}

// NewService wraps m. A nil store keeps state in memory only.
func NewService(m *Manager, store SnapshotStore, opts ...ServiceOption) *Service {
	if m == nil {
		m = NewManager()
	}
	s := &Service{m: m, store: store, key: SnapshotKey}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate restores the last saved state. A missing snapshot is not an error.
func (s *Service) Hydrate(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	data, err := s.store.Load(ctx, s.key)
	if errors.Is(err, ErrNoSnapshot) {
		log.Printf("no snapshot under %q, starting fresh", s.key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.m.Restore(data); err != nil {
		return err
	}
	metrics.HistoryRecords.Set(float64(len(s.m.st.History)))
	log.Printf("restored %d sessions from snapshot", len(s.m.st.Sessions))
	return nil
}

// Login signs the teacher in. Remote failures leave state untouched.
func (s *Service) Login(ctx context.Context, identifier, secret string) (string, error) {
	if identifier == "" || secret == "" {
		metrics.Logins.WithLabelValues("rejected").Inc()
		return "", ErrInvalidCredentials
	}
	if s.auth != nil {
		if _, err := s.auth.SignIn(ctx, identifier, secret); err != nil {
			metrics.Logins.WithLabelValues("rejected").Inc()
			log.Printf("sign-in failed for %s: %v", identifier, err)
			return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
	}
	var roster Roster
	var sections []Section
	if s.roster != nil {
		var err error
		if roster, sections, err = s.roster.Load(ctx); err != nil {
			metrics.Logins.WithLabelValues("error").Inc()
			return "", fmt.Errorf("load roster: %w", err)
		}
	}

	var name string
	err := s.mutate(ctx, func(m *Manager) {
		if roster != nil {
			m.SetRoster(roster, sections)
		}
		m.Login(identifier, secret)
		name = m.TeacherName()
	})
	if err != nil {
		metrics.Logins.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.Logins.WithLabelValues("ok").Inc()
	return name, nil
}

// Logout clears the session-scoped state.
func (s *Service) Logout(ctx context.Context) error {
	return s.mutate(ctx, func(m *Manager) { m.Logout() })
}

// SelectSection sets the active section.
func (s *Service) SelectSection(ctx context.Context, name string) error {
	return s.mutate(ctx, func(m *Manager) { m.SelectSection(name) })
}

// StartSession begins a new attendance pass.
func (s *Service) StartSession(ctx context.Context) (string, error) {
	var id string
	err := s.mutate(ctx, func(m *Manager) { id = m.StartSession() })
	return id, err
}

// MarkStudent records a provisional mark.
func (s *Service) MarkStudent(ctx context.Context, studentID string, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	err := s.mutate(ctx, func(m *Manager) { _ = m.MarkStudent(studentID, status) })
	if err == nil {
		metrics.Marks.WithLabelValues(string(status)).Inc()
	}
	return err
}

// SubmitSession finalizes the current pass and announces it on the queue.
func (s *Service) SubmitSession(ctx context.Context) (Session, error) {
	var sess Session
	var history int
	err := s.mutate(ctx, func(m *Manager) {
		sess = m.SubmitSession()
		history = len(m.st.History)
	})
	if err != nil {
		return Session{}, err
	}
	metrics.SessionsSubmitted.WithLabelValues(sess.Section).Inc()
	metrics.HistoryRecords.Set(float64(history))
	log.Printf("session %s submitted: section=%q present=%d absent=%d", sess.ID, sess.Section, sess.PresentCount, sess.AbsentCount)

	if s.queue != nil {
		msg := queue.Message{Type: queue.TypeSessionSubmitted, Body: []byte(sess.ID)}
		if err := s.queue.Publish(ctx, msg); err != nil {
			log.Printf("queue publish failed for %s: %v", sess.ID, err)
		}
	}
	return sess, nil
}

// CorrectRecord applies an absent to present correction. It reports false,
// without error, when the request does not apply.
func (s *Service) CorrectRecord(ctx context.Context, sessionID, studentID string, status Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.m.Snapshot()
	if err != nil {
		return false, err
	}
	if !s.m.CorrectRecord(sessionID, studentID, status) {
		metrics.Corrections.WithLabelValues("ignored").Inc()
		return false, nil
	}
	if err := s.persist(ctx, before); err != nil {
		return false, err
	}
	metrics.Corrections.WithLabelValues("applied").Inc()
	return true, nil
}

// Authenticated reports whether a teacher is logged in.
func (s *Service) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Authenticated()
}

// TeacherName returns the logged-in display name.
func (s *Service) TeacherName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.TeacherName()
}

// TeacherID returns the identifier used at login.
func (s *Service) TeacherID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.TeacherID()
}

// OnRoster reports whether studentID is in the selected section.
func (s *Service) OnRoster(studentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.OnRoster(studentID)
}

// AverageSectionSize is the rounded mean roster size.
func (s *Service) AverageSectionSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.AverageSectionSize()
}

// SectionID resolves the remote id for a section name.
func (s *Service) SectionID(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.SectionID(name)
}

// Sections lists sections with their sizes.
func (s *Service) Sections() []SectionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Sections()
}

// Students returns a section's roster.
func (s *Service) Students(section string) []Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Students(section)
}

// Progress reports on the in-progress pass.
func (s *Service) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Progress()
}

// Sessions lists completed sessions.
func (s *Service) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Sessions()
}

// Session looks up a completed session.
func (s *Service) Session(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Session(id)
}

// LatestSession returns the last submitted session.
func (s *Service) LatestSession() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.LatestSession()
}

// StudentHistory returns a student's records in append order.
func (s *Service) StudentHistory(studentID, section string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.StudentHistory(studentID, section)
}

// AttendancePercentage returns the student's rounded attendance rate.
func (s *Service) AttendancePercentage(studentID, section string, filter PeriodFilter) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.AttendancePercentage(studentID, section, filter)
}

// StudentName resolves a display name with the Unknown Student fallback.
func (s *Service) StudentName(section, studentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.StudentName(section, studentID)
}

// StudentRollNumber resolves a roll number with the N/A fallback.
func (s *Service) StudentRollNumber(section, studentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.StudentRollNumber(section, studentID)
}

// mutate runs fn under the lock and saves the result. When the save fails
// the previous state is put back so memory never runs ahead of the store.
func (s *Service) mutate(ctx context.Context, fn func(*Manager)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.m.Snapshot()
	if err != nil {
		return err
	}
	fn(s.m)
	return s.persist(ctx, before)
}

// persist must be called with mu held.
func (s *Service) persist(ctx context.Context, before []byte) error {
	if s.store == nil {
		return nil
	}
	data, err := s.m.Snapshot()
	if err == nil {
		err = s.store.Save(ctx, s.key, data)
	}
	metrics.SnapshotWrites.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		if rerr := s.m.Restore(before); rerr != nil {
			log.Printf("rollback after failed save: %v", rerr)
		}
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
