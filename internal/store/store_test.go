package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendtrack/internal/attendance"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, attendance.SnapshotKey)
	assert.ErrorIs(t, err, attendance.ErrNoSnapshot)

	require.NoError(t, s.Save(ctx, attendance.SnapshotKey, []byte(`{"v":1}`)))
	require.NoError(t, s.Save(ctx, attendance.SnapshotKey, []byte(`{"v":2}`)))

	data, err := s.Load(ctx, attendance.SnapshotKey)
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, string(data))

	_, err = s.Load(ctx, "other")
	assert.ErrorIs(t, err, attendance.ErrNoSnapshot)
	assert.True(t, s.Healthy(ctx))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	exerciseStore(t, s)

	data, err := s.Load(context.Background(), attendance.SnapshotKey)
	require.NoError(t, err)
	data[0] = 'x'
	again, _ := s.Load(context.Background(), attendance.SnapshotKey)
	assert.Equal(t, byte('{'), again[0], "Load must hand out copies")
}

func TestSQLiteStoreInMemory(t *testing.T) {
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStorePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "attendtrack.db")
	ctx := context.Background()

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, attendance.SnapshotKey, []byte("state")))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	data, err := s.Load(ctx, attendance.SnapshotKey)
	require.NoError(t, err)
	assert.Equal(t, "state", string(data))
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, Options{Backend: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Options{Backend: "redis", RedisAddr: "localhost:0"})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Backend: "etcd"})
	assert.Error(t, err)
}

func TestServiceOverSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	roster := attendance.Roster{"Section A": {{ID: "1", Name: "Alice", RollNumber: "A001"}}}
	svc := attendance.NewService(attendance.NewManager(attendance.WithRoster(roster)), s)
	_, err = svc.Login(ctx, "teacher@school.com", "pw")
	require.NoError(t, err)
	require.NoError(t, svc.SelectSection(ctx, "Section A"))
	_, err = svc.StartSession(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.MarkStudent(ctx, "1", attendance.StatusPresent))
	sess, err := svc.SubmitSession(ctx)
	require.NoError(t, err)

	restored := attendance.NewService(nil, s)
	require.NoError(t, restored.Hydrate(ctx))
	got, ok := restored.Session(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess, got)
	assert.Equal(t, "teacher", restored.TeacherName())
}
