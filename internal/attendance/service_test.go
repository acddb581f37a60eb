package attendance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendtrack/internal/queue"
)

type fakeStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	saves    int
	failSave bool
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string][]byte{}} }

func (f *fakeStore) Load(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.data[key]
	if !ok {
		return nil, ErrNoSnapshot
	}
	return d, nil
}

func (f *fakeStore) Save(_ context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("disk full")
	}
	f.saves++
	f.data[key] = append([]byte(nil), data...)
	return nil
}

type fakeAuth struct{ err error }

func (a fakeAuth) SignIn(context.Context, string, string) (string, error) {
	return "token", a.err
}

type fakeRoster struct {
	roster   Roster
	sections []Section
	err      error
}

func (r fakeRoster) Load(context.Context) (Roster, []Section, error) {
	return r.roster, r.sections, r.err
}

func newTestService(store SnapshotStore, opts ...ServiceOption) *Service {
	return NewService(newTestManager(), store, opts...)
}

func TestServicePersistsEveryChange(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc := newTestService(st)

	_, err := svc.Login(ctx, "teacher@school.com", "pw")
	require.NoError(t, err)
	require.NoError(t, svc.SelectSection(ctx, "Section A"))
	_, err = svc.StartSession(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.MarkStudent(ctx, "1", StatusPresent))
	sess, err := svc.SubmitSession(ctx)
	require.NoError(t, err)
	ok, err := svc.CorrectRecord(ctx, sess.ID, "2", StatusPresent)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 6, st.saves)

	ok, err = svc.CorrectRecord(ctx, sess.ID, "2", StatusPresent)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 6, st.saves, "ignored corrections are not written")

	require.NoError(t, svc.Logout(ctx))

	restored := NewService(nil, st)
	require.NoError(t, restored.Hydrate(ctx))
	assert.False(t, restored.Authenticated())
	got, found := restored.Session(sess.ID)
	require.True(t, found)
	assert.Equal(t, 2, got.PresentCount)
	assert.Equal(t, 100, restored.AttendancePercentage("2", "Section A", PeriodFilter{}))
	assert.Equal(t, 0, restored.AttendancePercentage("3", "Section A", PeriodFilter{}))
	assert.Len(t, restored.StudentHistory("2", "Section A"), 1)
}

func TestServiceHydrateWithoutSnapshot(t *testing.T) {
	svc := newTestService(newFakeStore())
	require.NoError(t, svc.Hydrate(context.Background()))
	assert.Len(t, svc.Students("Section A"), 4)

	require.NoError(t, NewService(nil, nil).Hydrate(context.Background()))
}

func TestServiceRollsBackOnSaveFailure(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc := newTestService(st)
	require.NoError(t, svc.SelectSection(ctx, "Section A"))

	st.failSave = true
	_, err := svc.SubmitSession(ctx)
	assert.Error(t, err)
	assert.Empty(t, svc.Sessions())

	_, err = svc.Login(ctx, "a@b.com", "p")
	assert.Error(t, err)
	assert.False(t, svc.Authenticated())
}

func TestServiceLogin(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(nil)
	_, err := svc.Login(ctx, "", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	name, err := svc.Login(ctx, "a@b.com", "p")
	require.NoError(t, err)
	assert.Equal(t, "a", name)
	assert.True(t, svc.Authenticated())
}

func TestServiceLoginRemoteFailureKeepsState(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(nil, WithAuthenticator(fakeAuth{err: errors.New("401")}))
	_, err := svc.Login(ctx, "a@b.com", "p")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.False(t, svc.Authenticated())

	svc = newTestService(nil,
		WithAuthenticator(fakeAuth{}),
		WithRosterSource(fakeRoster{err: errors.New("timeout")}))
	_, err = svc.Login(ctx, "a@b.com", "p")
	assert.Error(t, err)
	assert.False(t, svc.Authenticated())
	assert.Len(t, svc.Students("Section A"), 4)
}

func TestServiceLoginLoadsRoster(t *testing.T) {
	ctx := context.Background()
	remote := Roster{"CSE-A": {{ID: "s1", Name: "Ravi", RollNumber: "21CS001"}}}
	svc := newTestService(nil,
		WithAuthenticator(fakeAuth{}),
		WithRosterSource(fakeRoster{roster: remote, sections: []Section{{ID: "64f", Name: "CSE-A"}}}))

	_, err := svc.Login(ctx, "t@x.io", "p")
	require.NoError(t, err)
	assert.Equal(t, []SectionSummary{{Name: "CSE-A", ID: "64f", Students: 1}}, svc.Sections())
	assert.Equal(t, "64f", svc.SectionID("CSE-A"))
	assert.Equal(t, "Ravi", svc.StudentName("CSE-A", "s1"))
	assert.Equal(t, "21CS001", svc.StudentRollNumber("CSE-A", "s1"))
}

func TestServicePublishesSubmittedSessions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := queue.NewInMemory(4)
	svc := newTestService(nil, WithQueue(q))
	require.NoError(t, svc.SelectSection(ctx, "Section B"))
	_, err := svc.StartSession(ctx)
	require.NoError(t, err)
	sess, err := svc.SubmitSession(ctx)
	require.NoError(t, err)

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		assert.Equal(t, queue.TypeSessionSubmitted, msg.Type)
		assert.Equal(t, sess.ID, string(msg.Body))
	case <-ctx.Done():
		t.Fatal("no message published")
	}
}

func TestServiceRejectsInvalidMark(t *testing.T) {
	st := newFakeStore()
	svc := newTestService(st)
	assert.ErrorIs(t, svc.MarkStudent(context.Background(), "1", "maybe"), ErrInvalidStatus)
	assert.Zero(t, st.saves)
}

func TestServiceConcurrentMarks(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeStore())
	require.NoError(t, svc.SelectSection(ctx, "Section A"))
	_, err := svc.StartSession(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range []string{"1", "2", "3", "4"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = svc.MarkStudent(ctx, id, StatusPresent)
		}(id)
	}
	wg.Wait()

	p := svc.Progress()
	assert.Equal(t, 4, p.Processed)
	assert.True(t, p.Complete)
}
