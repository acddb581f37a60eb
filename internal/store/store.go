package store

import (
	"context"
	"fmt"

	"attendtrack/internal/attendance"
)

// Store is a snapshot store with lifecycle hooks.
type Store interface {
	attendance.SnapshotStore
	Healthy(ctx context.Context) bool
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string // memory, redis, postgres, sqlite
	RedisAddr   string
	RedisPrefix string
	DatabaseURL string
	SQLitePath  string
}

// Open builds the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(opts.RedisAddr, opts.RedisPrefix), nil
	case "postgres":
		pg, err := NewPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case "sqlite":
		sq, err := NewSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return sq, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
