package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"attendtrack/internal/attendance"
	"attendtrack/internal/auth"
	"attendtrack/internal/config"
	"attendtrack/internal/httpapi"
	"attendtrack/internal/queue"
	"attendtrack/internal/roster"
	"attendtrack/internal/store"
	"attendtrack/internal/submission"
)

func main() {
	cfg := config.Load()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: cfg.RedisPrefix,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	log.Printf("snapshot store: %s", backendName(cfg.StoreBackend))

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		redisClient := store.NewRedis(cfg.RedisAddr, "")
		defer func() { _ = redisClient.Close() }()
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	} else {
		q = queue.NewInMemory(64)
		// No separate worker can see an in-process queue, so forward here.
		fwd := &submission.Forwarder{
			Store:     st,
			Key:       cfg.SnapshotKey,
			Submitter: submission.New(cfg.SubmissionURL, cfg.SubmissionToken, cfg.SubmissionSkip),
			Location:  time.Local,
		}
		go func() {
			if err := fwd.Run(ctx, q); err != nil {
				log.Printf("forwarder stopped: %v", err)
			}
		}()
	}

	opts := []attendance.ServiceOption{
		attendance.WithQueue(q),
		attendance.WithSnapshotKey(cfg.SnapshotKey),
	}
	if cfg.RosterSource == "remote" {
		client := roster.NewClient(cfg.RosterServiceURL, cfg.RemoteTimeout)
		opts = append(opts, attendance.WithAuthenticator(client), attendance.WithRosterSource(client))
		log.Printf("roster service: %s", cfg.RosterServiceURL)
	} else {
		opts = append(opts, attendance.WithRosterSource(roster.NewStatic()))
		log.Println("roster service not configured, using built-in sections")
	}

	svc := attendance.NewService(attendance.NewManager(attendance.WithRoster(roster.Demo())), st, opts...)
	if err := svc.Hydrate(ctx); err != nil {
		return err
	}

	issuer := auth.NewIssuer(cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
	h := httpapi.New(svc, issuer, map[string]httpapi.HealthCheck{"store": st.Healthy})
	r := httpapi.NewRouter(h, httpapi.RouterOptions{
		Issuer:          issuer,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
		AccessLog:       true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func backendName(b string) string {
	if b == "" {
		return "memory"
	}
	return b
}
