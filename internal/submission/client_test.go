package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendtrack/internal/attendance"
)

var session = attendance.Session{
	ID:            "session_1",
	Date:          "2024-03-04",
	Time:          "09:30:00",
	Section:       "Section A",
	TotalStudents: 2,
	PresentCount:  1,
	AbsentCount:   1,
	Records: []attendance.Record{
		{StudentID: "1", Date: "2024-03-04", Time: "09:30:00", Status: attendance.StatusPresent, Section: "Section A"},
		{StudentID: "2", Date: "2024-03-04", Time: "09:30:00", Status: attendance.StatusAbsent, Section: "Section A"},
	},
}

func TestBuildPayload(t *testing.T) {
	p, err := BuildPayload(session, "64fa", "teacher", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, Payload{
		SectionID: "64fa",
		Date:      "2024-03-04T09:30:00Z",
		MarkedBy:  "teacher",
		Records: []RecordEntry{
			{Student: "1", Status: "Present"},
			{Student: "2", Status: "Absent"},
		},
	}, p)

	p, err = BuildPayload(session, "", "teacher", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "Section A", p.SectionID)

	bad := session
	bad.Date = "04/03/2024"
	_, err = BuildPayload(bad, "", "", time.UTC)
	assert.Error(t, err)
}

func TestSubmit(t *testing.T) {
	var got Payload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/attendance/mark", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p, err := BuildPayload(session, "64fa", "teacher", time.UTC)
	require.NoError(t, err)
	require.NoError(t, New(srv.URL, "tok", false).Submit(context.Background(), p))
	assert.Equal(t, p, got)
	assert.Equal(t, "Bearer tok", auth)
}

func TestSubmitErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "section closed", http.StatusConflict)
	}))
	defer srv.Close()

	err := New(srv.URL, "", false).Submit(context.Background(), Payload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section closed")

	assert.NoError(t, New("http://127.0.0.1:0", "", true).Submit(context.Background(), Payload{}))
}
