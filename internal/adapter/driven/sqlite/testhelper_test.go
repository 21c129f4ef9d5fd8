package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
	"time"
)

// setupTestDB opens a migrated in-memory database private to the calling test.
// The writer and reader pools reach the same memory database through
// cache=shared, keyed by the escaped test name.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)

	open := func(maxConns int) *sql.DB {
		conn, err := sql.Open("sqlite", dsn)
		if err != nil {
			t.Fatalf("open test db: %v", err)
		}
		conn.SetMaxOpenConns(maxConns)
		if err := conn.PingContext(context.Background()); err != nil {
			_ = conn.Close()
			t.Fatalf("ping test db: %v", err)
		}
		return conn
	}

	writer := open(1)
	reader := open(4)
	db := &DB{Writer: writer, Reader: reader, path: dsn}
	t.Cleanup(func() { _ = db.Close() })

	if err := RunMigrations(db.Writer); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return db
}

// fixedTime returns a UTC timestamp offset from a common base.
func fixedTime(offset time.Duration) time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC).Add(offset)
}
