package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendtrack/internal/config"
	"attendtrack/internal/queue"
	"attendtrack/internal/store"
	"attendtrack/internal/submission"
)

// Worker forwards submitted sessions to the submission service.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		log.Fatalf("worker needs QUEUE_BACKEND=redis, got %q", cfg.QueueBackend)
	}
	if cfg.StoreBackend == "" || cfg.StoreBackend == "memory" {
		log.Fatalf("worker cannot read an in-process store; set STORE_BACKEND")
	}

	st, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: cfg.RedisPrefix,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		log.Fatalf("store open failed: %v", err)
	}
	defer st.Close()

	redisClient := store.NewRedis(cfg.RedisAddr, "")
	defer redisClient.Close()
	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)

	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis not reachable at %s, will keep retrying", cfg.RedisAddr)
	}
	if cfg.SubmissionSkip {
		log.Println("SUBMISSION_SKIP set, sessions are logged and not sent")
	}

	fwd := &submission.Forwarder{
		Store:     st,
		Key:       cfg.SnapshotKey,
		Submitter: submission.New(cfg.SubmissionURL, cfg.SubmissionToken, cfg.SubmissionSkip),
		Location:  time.Local,
	}

	log.Println("worker started, waiting for messages...")
	if err := fwd.Run(ctx, q); err != nil {
		log.Fatalf("worker failed: %v", err)
	}
	log.Println("worker stopped")
}
