package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"attendtrack/internal/attendance"
)

// Redis keeps each snapshot as a plain string value.
type Redis struct {
	Client *redis.Client
	prefix string
}

// NewRedis connects to redis with short timeouts. Keys are prefixed with
// prefix when it is non-empty.
func NewRedis(addr, prefix string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client, prefix: prefix}
}

// Load returns the snapshot stored under key.
func (r *Redis) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.Client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, attendance.ErrNoSnapshot
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load snapshot %s", key)
	}
	return data, nil
}

// Save replaces the snapshot stored under key.
func (r *Redis) Save(ctx context.Context, key string, data []byte) error {
	return errors.Wrapf(r.Client.Set(ctx, r.prefix+key, data, 0).Err(), "save snapshot %s", key)
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// Close closes the client.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
