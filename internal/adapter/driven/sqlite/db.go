// Package sqlite implements the driven store ports on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

const readerConns = 4

// connPragmas are applied by the driver to every new connection of both pools.
var connPragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"cache_size(-64000)",
}

// DB holds the two pools the repositories share. Writes (upserts, trigger
// increments, business-hours replacement) go through a single-connection
// writer; reads use a small pool that WAL lets run alongside it.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
	path   string
}

// NewDB opens the writer and reader pools on the database file at path.
func NewDB(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: empty database path")
	}
	source := fileDSN(path)

	writer, err := openPool(source, 1)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	reader, err := openPool(source, readerConns)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader, path: path}, nil
}

func fileDSN(path string) string {
	q := make(url.Values, 1)
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

func openPool(source string, maxConns int) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", source)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(maxConns)
	pool.SetMaxIdleConns(maxConns)

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}

// Path returns the database file the pools were opened on.
func (db *DB) Path() string {
	return db.path
}

// PingContext checks both pools. It backs the database health probe.
func (db *DB) PingContext(ctx context.Context) error {
	if err := db.Writer.PingContext(ctx); err != nil {
		return fmt.Errorf("ping writer: %w", err)
	}
	if err := db.Reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping reader: %w", err)
	}
	return nil
}

// Close closes both pools and reports every failure.
func (db *DB) Close() error {
	var errs []error
	if err := db.Reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close reader: %w", err))
	}
	if err := db.Writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close writer: %w", err))
	}
	return errors.Join(errs...)
}
