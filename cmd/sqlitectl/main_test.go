package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/corelite/sqlite"
	"github.com/google/go-cmp/cmp"
)

// testDB points the config at a fresh database file.
func testDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	t.Setenv("SQLITECTL_DATABASE_PATH", path)
	t.Setenv("SQLITECTL_LOG_LEVEL", "error")
	return path
}

func runOut(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestRunExecAndQuery(t *testing.T) {
	testDB(t)
	out, err := runOut(t, "exec", `
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, photo BLOB);
		INSERT INTO users VALUES (1, 'Alice', x'4269'), (2, 'Bob', NULL);
	`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "2 rows changed\n" {
		t.Errorf("exec output %q", out)
	}

	out, err = runOut(t, "query", "SELECT id, name, photo FROM users WHERE id >= ? ORDER BY id", "1")
	if err != nil {
		t.Fatal(err)
	}
	var got [][]string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		got = append(got, strings.Fields(line))
	}
	want := [][]string{
		{"id", "name", "photo"},
		{"1", "Alice", "x'4269'"},
		{"2", "Bob", "NULL"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("query output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunErrors(t *testing.T) {
	testDB(t)
	if _, err := runOut(t); !errors.Is(err, errUsage) {
		t.Errorf("no command: %v", err)
	}
	if _, err := runOut(t, "frobnicate"); !errors.Is(err, errUsage) {
		t.Errorf("unknown command: %v", err)
	}
	if _, err := runOut(t, "query"); !errors.Is(err, errUsage) {
		t.Errorf("query without sql: %v", err)
	}
	_, err := runOut(t, "query", "SELECT * FROM nowhere")
	var e *sqlite.Error
	if !errors.As(err, &e) || e.Loc != "Prepare" {
		t.Errorf("bad query: %v", err)
	}
}

func TestRunBackup(t *testing.T) {
	testDB(t)
	if _, err := runOut(t, "exec", "CREATE TABLE t (c); INSERT INTO t VALUES (1), (2), (3);"); err != nil {
		t.Fatal(err)
	}
	dst := filepath.Join(t.TempDir(), "backup.db")
	if _, err := runOut(t, "backup", dst); err != nil {
		t.Fatal(err)
	}

	c, err := sqlite.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	stmt, err := c.Prepare("SELECT count(*) FROM t")
	if err != nil {
		t.Fatal(err)
	}
	defer stmt.Close()
	row, err := stmt.Cursor().TryNext()
	if err != nil || row == nil {
		t.Fatalf("TryNext=%v, %v", row, err)
	}
	if n := sqlite.Read[int](row, 0); n != 3 {
		t.Errorf("backup has %d rows, want 3", n)
	}
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	testDB(t)
	if _, err := runOut(t, "exec", "CREATE TABLE t (id INTEGER, v TEXT); INSERT INTO t VALUES (1, 'one'), (2, 'two');"); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	s, err := newServer(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func TestServerQuery(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d %s", rec.Code, rec.Body)
	}

	q := url.Values{"q": {"SELECT id, v FROM t WHERE id <= ? ORDER BY id"}, "1": {"2"}}
	rec := get(t, h, "/query?"+q.Encode())
	if rec.Code != http.StatusOK {
		t.Fatalf("query: %d %s", rec.Code, rec.Body)
	}
	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := queryResponse{
		Columns: []string{"id", "v"},
		Rows:    [][]any{{1.0, "one"}, {2.0, "two"}},
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("query response mismatch (-want +got):\n%s", diff)
	}

	for _, target := range []string{
		"/query",
		"/query?" + url.Values{"q": {"DELETE FROM t"}}.Encode(),
		"/query?" + url.Values{"q": {"SELECT nope FROM t"}}.Encode(),
	} {
		if rec := get(t, h, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", target, rec.Code)
		}
	}
}

func TestServerDebugPages(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()
	get(t, h, "/query?"+url.Values{"q": {"SELECT count(*) FROM t"}}.Encode())

	rec := get(t, h, "/debug/queries")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "SELECT count(*) FROM t") {
		t.Errorf("/debug/queries: %d\n%s", rec.Code, rec.Body)
	}
	rec = get(t, h, "/debug/txs")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http-query") {
		t.Errorf("/debug/txs: %d\n%s", rec.Code, rec.Body)
	}

	reset := httptest.NewRecorder()
	h.ServeHTTP(reset, httptest.NewRequest("POST", "/debug/queries/reset", nil))
	if reset.Code != http.StatusNoContent {
		t.Errorf("reset: %d", reset.Code)
	}
	if got := s.queries.Collect(); len(got) != 0 {
		t.Errorf("%d queries after reset", len(got))
	}
}
