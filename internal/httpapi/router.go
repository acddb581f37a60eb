package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendtrack/internal/auth"
	"attendtrack/internal/httpmiddleware"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Issuer          *auth.Issuer
	RateLimitPerMin int
	CORSOrigins     string // comma separated, "*" for any
	AccessLog       bool
}

// NewRouter wires the API routes onto a fresh gin engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.AccessLog {
		r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
			SkipPaths: []string{"/healthz", "/metrics"},
		}))
	}
	r.Use(cors.New(corsConfig(opts.CORSOrigins)))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	limiter := httpmiddleware.NewTokenBucket(opts.RateLimitPerMin, opts.RateLimitPerMin)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", limiter.GinMiddleware(), h.Login)
	v1.POST("/auth/refresh", limiter.GinMiddleware(), h.Refresh)

	authed := v1.Group("", auth.TeacherAuth(opts.Issuer), limiter.GinMiddleware(), h.RequireLogin)
	{
		authed.POST("/auth/logout", h.Logout)

		authed.GET("/sections", h.ListSections)
		authed.GET("/sections/:name/students", h.ListStudents)
		authed.PUT("/sections/selected", h.SelectSection)

		authed.POST("/sessions", h.StartSession)
		authed.GET("/sessions", h.ListSessions)
		authed.GET("/sessions/current", h.CurrentSession)
		authed.POST("/sessions/current/marks", h.MarkStudent)
		authed.POST("/sessions/current/submit", h.SubmitSession)
		authed.GET("/sessions/latest", h.LatestSession)
		authed.GET("/sessions/:id", h.GetSession)
		authed.POST("/sessions/:id/corrections", h.CorrectRecord)

		authed.GET("/students/:id/history", h.StudentHistory)
		authed.GET("/students/:id/percentage", h.StudentPercentage)
	}
	return r
}

func corsConfig(origins string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if origins == "" || origins == "*" {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, o)
		}
	}
	return cfg
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
