package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"attendtrack/internal/auth"
)

func TestAllowRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	now = now.Add(time.Hour)
	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"), "refill is capped at capacity")
}

func TestGinMiddlewareKeysByTeacher(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewTokenBucket(1, 1)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		if name := c.GetHeader("X-Teacher"); name != "" {
			claims := auth.Claims{Teacher: name}
			claims.Subject = name + "@school.edu"
			c.Set(auth.ContextKey, claims)
		}
		c.Next()
	}, l.GinMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(teacher string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if teacher != "" {
			req.Header.Set("X-Teacher", teacher)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("meera"))
	assert.Equal(t, http.StatusTooManyRequests, do("meera"))
	assert.Equal(t, http.StatusOK, do("ravi"))
	assert.Equal(t, http.StatusOK, do(""))
	assert.Equal(t, http.StatusTooManyRequests, do(""))
}

func TestSweepEvictsRefilledBuckets(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("b"))
	assert.Len(t, l.buckets, 2)

	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("c"))
	assert.Len(t, l.buckets, 1)
}
