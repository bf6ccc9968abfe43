package db

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"testing"
)

// captureHandler records log records for assertion in tests.
type captureHandler struct {
	mu    sync.Mutex
	attrs []map[string]slog.Value
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := map[string]slog.Value{"msg": slog.StringValue(r.Message)}
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value
		return true
	})
	h.attrs = append(h.attrs, m)
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) last(t *testing.T, msg string) map[string]slog.Value {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.attrs) - 1; i >= 0; i-- {
		if h.attrs[i]["msg"].String() == msg {
			return h.attrs[i]
		}
	}
	t.Fatalf("no %q log record", msg)
	return nil
}

func (h *captureHandler) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attrs = nil
}

func openLogged(t *testing.T) (*sql.DB, *captureHandler) {
	t.Helper()
	handler := &captureHandler{}
	connector, err := NewLoggingConnector(":memory:", slog.New(handler))
	if err != nil {
		t.Fatalf("NewLoggingConnector: %v", err)
	}
	conn := sql.OpenDB(connector)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, handler
}

func TestNewLoggingConnector_NilLoggerUsesDefault(t *testing.T) {
	conn, err := NewLoggingConnector(":memory:", nil)
	if err != nil {
		t.Fatalf("NewLoggingConnector: %v", err)
	}
	lc, ok := conn.(*loggingConnector)
	if !ok || lc.logger == nil {
		t.Fatal("expected loggingConnector with a logger")
	}
}

func TestLoggingDriver_OpenRejected(t *testing.T) {
	conn, _ := NewLoggingConnector(":memory:", nil)
	if _, err := conn.Driver().Open(":memory:"); err == nil {
		t.Fatal("Driver().Open error = nil, want error")
	}
}

func TestLoggingConnector_ExecAndQuery(t *testing.T) {
	conn, handler := openLogged(t)

	if _, err := conn.Exec(`CREATE TABLE t (id INTEGER, name TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	got := handler.last(t, "sql")
	if got["op"].String() != "exec" {
		t.Errorf("op = %q, want exec", got["op"].String())
	}
	if got["sql"].String() != `CREATE TABLE t (id INTEGER, name TEXT)` {
		t.Errorf("sql = %q", got["sql"].String())
	}
	if _, ok := got["duration"]; !ok {
		t.Error("duration attribute missing")
	}

	handler.reset()
	if _, err := conn.Exec(`INSERT INTO t (id, name) VALUES (?, ?)`, 1, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got = handler.last(t, "sql")
	args, ok := got["args"].Any().([]string)
	if !ok {
		t.Fatalf("args = %T, want []string", got["args"].Any())
	}
	if len(args) != 2 || args[0] != "1" || args[1] != "NULL" {
		t.Errorf("args = %v, want [1 NULL]", args)
	}

	handler.reset()
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n); err != nil {
		t.Fatalf("query row: %v", err)
	}
	got = handler.last(t, "sql")
	if got["op"].String() != "query" {
		t.Errorf("op = %q, want query", got["op"].String())
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestLoggingConnector_ErrorsLogged(t *testing.T) {
	conn, handler := openLogged(t)

	if _, err := conn.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := conn.Exec(`INSERT INTO t (id) VALUES (1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	handler.reset()

	if _, err := conn.Exec(`INSERT INTO t (id) VALUES (1)`); err == nil {
		t.Fatal("duplicate insert error = nil")
	}
	got := handler.last(t, "sql")
	if _, ok := got["error"]; !ok {
		t.Error("error attribute missing on failed exec")
	}

	if _, err := conn.Exec(`SELEKT nonsense`); err == nil {
		t.Fatal("bad sql error = nil")
	}
	handler.last(t, "sql prepare failed")
}

func TestLoggingConnector_Transaction(t *testing.T) {
	conn, handler := openLogged(t)

	tx, err := conn.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.Exec(`CREATE TABLE t (id INTEGER)`); err != nil {
		t.Fatalf("exec in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	handler.mu.Lock()
	defer handler.mu.Unlock()
	var sawBegin bool
	for _, m := range handler.attrs {
		if m["msg"].String() == "sql" && m["op"].String() == "begin" {
			sawBegin = true
		}
	}
	if !sawBegin {
		t.Error("begin not logged")
	}
}
