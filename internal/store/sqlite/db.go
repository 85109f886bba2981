// Package sqlite provides a document store on SQLite for embedded deployments.
// It uses modernc.org/sqlite, a pure Go SQLite implementation that doesn't require CGO,
// and keeps each document as JSON text queried through the JSON1 functions.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
)

// Config holds SQLite connection settings.
type Config struct {
	// Path is the path to the SQLite database file.
	// Use ":memory:" for in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int

	// MaxIdleConns sets the maximum number of idle connections.
	MaxIdleConns int

	// ConnMaxLifetime sets the maximum connection lifetime. Zero keeps connections forever.
	ConnMaxLifetime time.Duration

	// JournalMode sets the SQLite journal mode (WAL recommended for concurrency).
	JournalMode string

	// BusyTimeout sets the busy timeout in milliseconds.
	BusyTimeout int

	// CacheSize sets the page cache size (negative = KB, positive = pages).
	CacheSize int

	// SynchronousMode sets the synchronous mode (NORMAL, FULL, OFF).
	SynchronousMode string
}

// DefaultConfig returns a default SQLite configuration.
func DefaultConfig(dbPath string) Config {
	cfg := Config{
		Path:            dbPath,
		MaxOpenConns:    1, // SQLite works best with single writer
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		JournalMode:     "WAL",
		BusyTimeout:     5000,  // 5 seconds
		CacheSize:       -2000, // 2MB
		SynchronousMode: "NORMAL",
	}
	if dbPath == ":memory:" {
		// every connection to :memory: is a separate database
		cfg.ConnMaxLifetime = 0
		cfg.JournalMode = "MEMORY"
	}
	return cfg
}

// DSN builds the modernc connection string with pragmas applied on every new connection.
func (c Config) DSN() string {
	base := "file:" + c.Path
	if c.Path == ":memory:" {
		base = "file::memory:"
	}

	params := url.Values{}
	add := func(pragma string) { params.Add("_pragma", pragma) }
	if c.BusyTimeout > 0 {
		add(fmt.Sprintf("busy_timeout(%d)", c.BusyTimeout))
	}
	if c.JournalMode != "" {
		add(fmt.Sprintf("journal_mode(%s)", strings.ToUpper(c.JournalMode)))
	}
	if c.SynchronousMode != "" {
		add(fmt.Sprintf("synchronous(%s)", strings.ToUpper(c.SynchronousMode)))
	}
	if c.CacheSize != 0 {
		add(fmt.Sprintf("cache_size(%d)", c.CacheSize))
	}
	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}

// DB wraps a sql.DB connection for SQLite.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
	path   string
}

// NewDB creates a new SQLite database connection.
func NewDB(ctx context.Context, cfg Config, logger zerolog.Logger) (*DB, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("failed to register SQLite functions: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// Verify connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	logger.Info().
		Str("path", cfg.Path).
		Str("journal_mode", cfg.JournalMode).
		Int("max_conns", cfg.MaxOpenConns).
		Msg("connected to SQLite database")

	return &DB{
		db:     db,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.logger.Info().Msg("closing SQLite connection")
	return db.db.Close()
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// ExecContext executes a statement, logging it at debug level.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := db.db.ExecContext(ctx, query, args...)
	db.trace(query, start, err)
	return res, err
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.db.QueryContext(ctx, query, args...)
	db.trace(query, start, err)
	return rows, err
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := db.db.QueryRowContext(ctx, query, args...)
	db.trace(query, start, row.Err())
	return row
}

func (db *DB) trace(query string, start time.Time, err error) {
	if db.logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	event := db.logger.Debug().
		Str("sql", query).
		Dur("duration", time.Since(start))
	if err != nil {
		event.Err(err)
	}
	event.Msg("query executed")
}
