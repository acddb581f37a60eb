package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"attendtrack/internal/attendance"
	"attendtrack/internal/auth"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the attendance API.
type Handler struct {
	svc    *attendance.Service
	issuer *auth.Issuer
	checks map[string]HealthCheck
}

// New creates a handler. checks are reported by Healthz.
func New(svc *attendance.Service, issuer *auth.Issuer, checks map[string]HealthCheck) *Handler {
	return &Handler{svc: svc, issuer: issuer, checks: checks}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.checks {
		ok := check(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Auth ----------

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name, err := h.svc.Login(c.Request.Context(), req.Identifier, req.Secret)
	if errors.Is(err, attendance.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		log.Printf("login failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "login failed"})
		return
	}
	h.issueTokens(c, req.Identifier, name)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := h.issuer.Parse(req.RefreshToken, auth.KindRefresh)
	if err != nil || !h.svc.Authenticated() || claims.Subject != h.svc.TeacherID() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	h.issueTokens(c, claims.Subject, claims.Teacher)
}

func (h *Handler) issueTokens(c *gin.Context, subject, teacher string) {
	tokens, err := h.issuer.Issue(subject, teacher)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"teacher":       teacher,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context()); err != nil {
		h.storeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RequireLogin rejects requests once the teacher has logged out, even when
// their token has not expired yet, and tokens issued to another identifier.
func (h *Handler) RequireLogin(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	if !h.svc.Authenticated() || claims.Subject != h.svc.TeacherID() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}
	c.Next()
}

// ---------- Sections ----------

func (h *Handler) ListSections(c *gin.Context) {
	sections := h.svc.Sections()
	total := 0
	for _, s := range sections {
		total += s.Students
	}
	c.JSON(http.StatusOK, gin.H{
		"sections":       sections,
		"total_students": total,
		"average_size":   h.svc.AverageSectionSize(),
	})
}

func (h *Handler) ListStudents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"students": h.svc.Students(c.Param("name"))})
}

type selectRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) SelectSection(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.SelectSection(c.Request.Context(), req.Name); err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"section": req.Name, "students": len(h.svc.Students(req.Name))})
}

// ---------- Sessions ----------

func (h *Handler) StartSession(c *gin.Context) {
	id, err := h.svc.StartSession(c.Request.Context())
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session_id": id, "progress": h.svc.Progress()})
}

func (h *Handler) CurrentSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Progress())
}

type markRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Status    string `json:"status" binding:"required,oneof=present absent"`
}

func (h *Handler) MarkStudent(c *gin.Context) {
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.svc.OnRoster(req.StudentID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not in selected section"})
		return
	}
	err := h.svc.MarkStudent(c.Request.Context(), req.StudentID, attendance.Status(req.Status))
	if errors.Is(err, attendance.ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Progress())
}

func (h *Handler) SubmitSession(c *gin.Context) {
	sess, err := h.svc.SubmitSession(c.Request.Context())
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.sessionView(sess))
}

func (h *Handler) ListSessions(c *gin.Context) {
	sessions := h.svc.Sessions()
	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, summarize(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (h *Handler) LatestSession(c *gin.Context) {
	sess, ok := h.svc.LatestSession()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no attendance records"})
		return
	}
	c.JSON(http.StatusOK, h.sessionView(sess))
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, ok := h.svc.Session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, h.sessionView(sess))
}

type correctionRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	Status    string `json:"status" binding:"required"`
}

func (h *Handler) CorrectRecord(c *gin.Context) {
	var req correctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	changed, err := h.svc.CorrectRecord(c.Request.Context(), id, req.StudentID, attendance.Status(req.Status))
	if err != nil {
		h.storeError(c, err)
		return
	}
	body := gin.H{"changed": changed}
	if sess, ok := h.svc.Session(id); ok {
		body["session"] = h.sessionView(sess)
	}
	c.JSON(http.StatusOK, body)
}

// ---------- Students ----------

func (h *Handler) StudentHistory(c *gin.Context) {
	section := c.Query("section")
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"student_id":  id,
		"name":        h.svc.StudentName(section, id),
		"roll_number": h.svc.StudentRollNumber(section, id),
		"records":     h.svc.StudentHistory(id, section),
	})
}

func (h *Handler) StudentPercentage(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := c.Param("id")
	c.JSON(http.StatusOK, gin.H{
		"student_id": id,
		"percentage": h.svc.AttendancePercentage(id, c.Query("section"), filter),
	})
}

func parseFilter(c *gin.Context) (attendance.PeriodFilter, error) {
	var f attendance.PeriodFilter
	if v := c.Query("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			return f, errors.New("month must be 1-12")
		}
		month := time.Month(n)
		f.Month = &month
	}
	if v := c.Query("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, errors.New("year must be a positive integer")
		}
		f.Year = &n
	}
	return f, nil
}

// ---------- Views ----------

type sessionSummary struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Section      string `json:"section"`
	Total        int    `json:"total_students"`
	PresentCount int    `json:"present_count"`
	AbsentCount  int    `json:"absent_count"`
	Rate         int    `json:"rate"`
}

type recordView struct {
	attendance.Record
	Name       string `json:"name"`
	RollNumber string `json:"rollNumber"`
}

type sessionView struct {
	sessionSummary
	Records []recordView `json:"records"`
}

func summarize(s attendance.Session) sessionSummary {
	return sessionSummary{
		ID:           s.ID,
		Date:         s.Date,
		Time:         s.Time,
		Section:      s.Section,
		Total:        s.TotalStudents,
		PresentCount: s.PresentCount,
		AbsentCount:  s.AbsentCount,
		Rate:         attendance.SessionRate(s),
	}
}

func (h *Handler) sessionView(s attendance.Session) sessionView {
	v := sessionView{sessionSummary: summarize(s), Records: make([]recordView, 0, len(s.Records))}
	for _, r := range s.Records {
		v.Records = append(v.Records, recordView{
			Record:     r,
			Name:       h.svc.StudentName(r.Section, r.StudentID),
			RollNumber: h.svc.StudentRollNumber(r.Section, r.StudentID),
		})
	}
	return v
}

func (h *Handler) storeError(c *gin.Context, err error) {
	log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "state could not be saved"})
}
