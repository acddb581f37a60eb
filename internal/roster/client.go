package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"attendtrack/internal/attendance"
)

// ErrNotSignedIn is returned when roster calls are made before SignIn.
var ErrNotSignedIn = errors.New("roster: not signed in")

// RemoteSection is a section as listed by the roster service.
type RemoteSection struct {
	ID     string `json:"_id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Branch string `json:"branch"`
	Year   int    `json:"year" validate:"gte=0"`
}

// RemoteStudent is a roster entry as listed by the roster service.
type RemoteStudent struct {
	ID        string `json:"_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	StudentID string `json:"studentId" validate:"required"`
}

// Client calls the authentication/roster service.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	validate *validator.Validate
	mu       sync.RWMutex
	token    string
}

// NewClient creates a client with a request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:  baseURL,
		HTTP:     &http.Client{Timeout: timeout},
		validate: validator.New(),
	}
}

// SetToken replaces the bearer token used for roster calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SignIn exchanges credentials for a token and keeps it for later calls.
func (c *Client) SignIn(ctx context.Context, identifier, secret string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	payload := map[string]string{"email": identifier, "password": secret}
	if err := c.do(ctx, http.MethodPost, "/api/auth/signin", payload, &out, false); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("roster: sign-in returned no token")
	}
	c.SetToken(out.Token)
	return out.Token, nil
}

// Sections lists all sections.
func (c *Client) Sections(ctx context.Context) ([]RemoteSection, error) {
	var out []RemoteSection
	if err := c.do(ctx, http.MethodGet, "/api/sections", nil, &out, true); err != nil {
		return nil, err
	}
	for i := range out {
		if err := c.validate.Struct(out[i]); err != nil {
			return nil, fmt.Errorf("roster: invalid section %d: %w", i, err)
		}
	}
	return out, nil
}

// Students lists the students of one section.
func (c *Client) Students(ctx context.Context, sectionID string) ([]RemoteStudent, error) {
	var out []RemoteStudent
	path := "/api/sections/" + url.PathEscape(sectionID) + "/students"
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	for i := range out {
		if err := c.validate.Struct(out[i]); err != nil {
			return nil, fmt.Errorf("roster: invalid student in %s: %w", sectionID, err)
		}
	}
	return out, nil
}

// Load fetches every section and its students and builds a Roster keyed by
// section name. Duplicate students within a section are dropped.
func (c *Client) Load(ctx context.Context) (attendance.Roster, []attendance.Section, error) {
	remote, err := c.Sections(ctx)
	if err != nil {
		return nil, nil, err
	}
	roster := make(attendance.Roster, len(remote))
	sections := make([]attendance.Section, 0, len(remote))
	for _, rs := range remote {
		students, err := c.Students(ctx, rs.ID)
		if err != nil {
			return nil, nil, err
		}
		seen := make(map[string]bool, len(students))
		list := make([]attendance.Student, 0, len(students))
		for _, st := range students {
			if seen[st.ID] {
				continue
			}
			seen[st.ID] = true
			list = append(list, attendance.Student{ID: st.ID, Name: st.Name, RollNumber: st.StudentID})
		}
		roster[rs.Name] = list
		sections = append(sections, attendance.Section{ID: rs.ID, Name: rs.Name, Branch: rs.Branch, Year: rs.Year})
	}
	return roster, sections, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		c.mu.RLock()
		token := c.token
		c.mu.RUnlock()
		if token == "" {
			return ErrNotSignedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("roster service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("roster service error %s: %s", resp.Status, string(bodyBytes))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
