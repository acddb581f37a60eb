package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"attendtrack/internal/attendance"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Postgres keeps snapshots in a single table via the pgx driver.
type Postgres struct {
	Client *sql.DB
}

// NewPostgres opens a Postgres connection with sane defaults and ensures the
// snapshots table exists.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate postgres")
	}
	return &Postgres{Client: db}, nil
}

// Load returns the snapshot stored under key.
func (p *Postgres) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := p.Client.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, attendance.ErrNoSnapshot
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load snapshot %s", key)
	}
	return data, nil
}

// Save replaces the snapshot stored under key.
func (p *Postgres) Save(ctx context.Context, key string, data []byte) error {
	_, err := p.Client.ExecContext(ctx, `
		INSERT INTO snapshots (key, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, key, data)
	return errors.Wrapf(err, "save snapshot %s", key)
}

// Healthy pings the database.
func (p *Postgres) Healthy(ctx context.Context) bool {
	return p != nil && p.Client != nil && p.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (p *Postgres) Close() error {
	if p == nil || p.Client == nil {
		return nil
	}
	return p.Client.Close()
}
