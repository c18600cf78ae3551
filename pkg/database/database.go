// Package database provides a thin, driver-agnostic wrapper around
// database/sql for the engine's persistence layer.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
)

// Config describes how to reach the backing store.
type Config struct {
	// Driver is one of "sqlite", "postgresql" or "mysql".
	Driver string `yaml:"driver"`
	// DSN is the driver-specific data source name. For sqlite this is a
	// file path (or ":memory:").
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// GetDriverName maps a configured logical driver name to the name the
// driver registers itself under with database/sql.
func GetDriverName(driver string) string {
	switch driver {
	case "postgresql":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite":
		return "sqlite3"
	default:
		return driver
	}
}

// Connection wraps a *sql.DB with the defaults this engine expects.
type Connection struct {
	db     *sql.DB
	driver string
}

// Open opens a connection per cfg and verifies it with a ping.
func Open(cfg Config) (*Connection, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database: driver must be set")
	}
	db, err := sql.Open(GetDriverName(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	return &Connection{db: db, driver: cfg.Driver}, nil
}

// DB returns the underlying *sql.DB for callers that need raw access.
func (c *Connection) DB() *sql.DB { return c.db }

// Driver returns the logical driver name the connection was opened with.
func (c *Connection) Driver() string { return c.driver }

// Close closes the underlying connection.
func (c *Connection) Close() error { return c.db.Close() }

// PingContext checks connectivity.
func (c *Connection) PingContext(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// ExecContext executes a statement that doesn't return rows.
func (c *Connection) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (c *Connection) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query expected to return at most one row.
func (c *Connection) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (c *Connection) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}
