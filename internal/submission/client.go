package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"attendtrack/internal/attendance"
)

// RecordEntry is one student's status in the remote format.
type RecordEntry struct {
	Student string `json:"student"`
	Status  string `json:"status"`
}

// Payload is the body accepted by the attendance submission service.
type Payload struct {
	SectionID string        `json:"sectionId"`
	Date      string        `json:"date"`
	MarkedBy  string        `json:"markedBy"`
	Records   []RecordEntry `json:"records"`
}

// BuildPayload converts a finalized session. The date is the session's
// local date and time rendered as RFC 3339 in loc.
func BuildPayload(s attendance.Session, sectionID, markedBy string, loc *time.Location) (Payload, error) {
	if loc == nil {
		loc = time.Local
	}
	when, err := time.ParseInLocation(attendance.DateLayout+" "+attendance.TimeLayout, s.Date+" "+s.Time, loc)
	if err != nil {
		return Payload{}, fmt.Errorf("session %s: bad timestamp: %w", s.ID, err)
	}
	if sectionID == "" {
		sectionID = s.Section
	}
	p := Payload{
		SectionID: sectionID,
		Date:      when.Format(time.RFC3339),
		MarkedBy:  markedBy,
		Records:   make([]RecordEntry, 0, len(s.Records)),
	}
	for _, r := range s.Records {
		status := "Absent"
		if r.Status == attendance.StatusPresent {
			status = "Present"
		}
		p.Records = append(p.Records, RecordEntry{Student: r.StudentID, Status: status})
	}
	return p, nil
}

// Client posts finalized sessions to the submission service.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, Submit only logs.
func New(baseURL, token string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Submit sends one payload.
func (c *Client) Submit(ctx context.Context, p Payload) error {
	if c.Skip {
		log.Printf("submission skipped: section=%s records=%d", p.SectionID, len(p.Records))
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/attendance/mark", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("submission service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("submission service error %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}
