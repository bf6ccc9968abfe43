// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gameguyr/tempest/internal/migrate"
)

// Open returns a fresh in-memory database with the full schema applied.
// The pool is pinned to one connection so every query sees the same memory db.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Errorf("close sqlite: %v", err)
		}
	})
	if _, err := migrate.Run(context.Background(), conn, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

// Exec runs fixture SQL, failing the test on error.
func Exec(t testing.TB, conn *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := conn.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}
