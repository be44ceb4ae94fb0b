package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects the database/sql driver and placeholder style.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var placeholder = regexp.MustCompile(`\$\d+`)

// rebind rewrites $N placeholders to ? for SQLite. Queries bind each
// argument once, in order.
func (d Dialect) rebind(query string) string {
	if d != SQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?")
}

func (d Dialect) driver() string {
	if d == SQLite {
		return "sqlite"
	}
	return "pgx"
}

// OpenDB opens and pings a database. For SQLite the dsn is a file path whose
// directory is created if needed.
func OpenDB(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	if d == SQLite && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open(d.driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if d == SQLite {
		// single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetConnMaxIdleTime(5 * time.Minute)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetMaxIdleConns(10)
		db.SetMaxOpenConns(20)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// SQLKV stores preferences in the preferences table.
type SQLKV struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLKV opens the database and applies pending migrations.
func NewSQLKV(ctx context.Context, d Dialect, dsn string) (*SQLKV, error) {
	db, err := OpenDB(ctx, d, dsn)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(ctx, db, d, migrationsFS); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLKV{db: db, dialect: d}, nil
}

func (s *SQLKV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT pref_value FROM preferences WHERE pref_key = $1`), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *SQLKV) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO preferences (pref_key, pref_value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (pref_key) DO UPDATE SET pref_value = excluded.pref_value, updated_at = excluded.updated_at
	`), key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLKV) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM preferences WHERE pref_key = $1`), key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLKV) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLKV) Close() error {
	return s.db.Close()
}
