package submission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendtrack/internal/attendance"
	"attendtrack/internal/queue"
	"attendtrack/internal/store"
)

type recordingSubmitter struct {
	got []Payload
	err error
}

func (r *recordingSubmitter) Submit(_ context.Context, p Payload) error {
	r.got = append(r.got, p)
	return r.err
}

func submittedSession(t *testing.T, st attendance.SnapshotStore, q queue.Queue) attendance.Session {
	t.Helper()
	ctx := context.Background()
	roster := attendance.Roster{"CSE-A": {{ID: "u1", Name: "Ravi", RollNumber: "21CS001"}}}
	m := attendance.NewManager(attendance.WithClock(func() time.Time {
		return time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)
	}))
	m.SetRoster(roster, []attendance.Section{{ID: "s1", Name: "CSE-A"}})

	svc := attendance.NewService(m, st, attendance.WithQueue(q))
	_, err := svc.Login(ctx, "meera@school.edu", "pw")
	require.NoError(t, err)
	require.NoError(t, svc.SelectSection(ctx, "CSE-A"))
	_, err = svc.StartSession(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.MarkStudent(ctx, "u1", attendance.StatusPresent))
	sess, err := svc.SubmitSession(ctx)
	require.NoError(t, err)
	return sess
}

func TestForwarderHandle(t *testing.T) {
	st := store.NewMemory()
	q := queue.NewInMemory(1)
	sess := submittedSession(t, st, q)

	sub := &recordingSubmitter{}
	f := &Forwarder{Store: st, Submitter: sub, Location: time.UTC}
	require.NoError(t, f.Handle(context.Background(), queue.Message{Type: queue.TypeSessionSubmitted, Body: []byte(sess.ID)}))

	require.Len(t, sub.got, 1)
	assert.Equal(t, Payload{
		SectionID: "s1",
		Date:      "2024-03-04T09:30:00Z",
		MarkedBy:  "meera",
		Records:   []RecordEntry{{Student: "u1", Status: "Present"}},
	}, sub.got[0])

	assert.NoError(t, f.Handle(context.Background(), queue.Message{Type: "other"}))
	assert.Error(t, f.Handle(context.Background(), queue.Message{Type: queue.TypeSessionSubmitted, Body: []byte("missing")}))
}

func TestForwarderRunDrainsQueue(t *testing.T) {
	st := store.NewMemory()
	q := queue.NewInMemory(4)
	submittedSession(t, st, q)
	require.NoError(t, q.Publish(context.Background(), queue.Message{Type: queue.TypeSessionSubmitted, Body: []byte("missing")}))

	sub := &recordingSubmitter{err: errors.New("down")}
	f := &Forwarder{Store: st, Submitter: sub, Location: time.UTC}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, f.Run(ctx, q))
	assert.Len(t, sub.got, 1)
}

func TestForwarderWithoutSnapshot(t *testing.T) {
	f := &Forwarder{Store: store.NewMemory(), Submitter: &recordingSubmitter{}}
	err := f.Handle(context.Background(), queue.Message{Type: queue.TypeSessionSubmitted, Body: []byte("x")})
	assert.ErrorIs(t, err, attendance.ErrNoSnapshot)
}
