package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver selects the backing engine. SQLite is the default for a
// single-machine classroom deployment; Postgres is available when the host
// already runs one.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Config struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Open connects, applies pool settings, pings, and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	return OpenWithConfig(ctx, driver, dsn, DefaultConfig())
}

func OpenWithConfig(ctx context.Context, driver Driver, dsn string, cfg Config) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite"
		if dsn == "" {
			dsn = "file:quizhost.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/quizhost?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	conn, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}

	if driver == DriverSQLite {
		// A single writer connection sidesteps SQLITE_BUSY under the
		// write-heavy scoring actions.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := ensureSchema(ctx, conn, driver); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return conn, nil
}

func ensureSchema(ctx context.Context, conn *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := conn.ExecContext(ctx, schema)
	return err
}

// Timestamps are Unix seconds (BIGINT) in both dialects so scans behave
// identically. Queries use $N placeholders, which both drivers accept.

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS seeds (
  sid INTEGER PRIMARY KEY,
  r INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS students (
  sid INTEGER PRIMARY KEY,
  score REAL NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  preset_id TEXT,
  content TEXT NOT NULL,
  options_json TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  settled_at INTEGER
);

CREATE TABLE IF NOT EXISTS answers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sid INTEGER NOT NULL,
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  option_index INTEGER NOT NULL,
  cipher INTEGER NOT NULL,
  submitted_at INTEGER NOT NULL,
  score_delta REAL NOT NULL DEFAULT 0,
  UNIQUE (sid, question_id)
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS seeds (
  sid INTEGER PRIMARY KEY,
  r INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS students (
  sid INTEGER PRIMARY KEY,
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id BIGSERIAL PRIMARY KEY,
  preset_id TEXT,
  content TEXT NOT NULL,
  options_json TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT FALSE,
  created_at BIGINT NOT NULL,
  settled_at BIGINT
);

CREATE TABLE IF NOT EXISTS answers (
  id BIGSERIAL PRIMARY KEY,
  sid INTEGER NOT NULL,
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  option_index INTEGER NOT NULL,
  cipher BIGINT NOT NULL,
  submitted_at BIGINT NOT NULL,
  score_delta DOUBLE PRECISION NOT NULL DEFAULT 0,
  UNIQUE (sid, question_id)
);
`
