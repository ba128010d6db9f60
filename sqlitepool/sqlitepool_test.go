package sqlitepool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/corelite/sqlite"
	"github.com/corelite/sqlite/sqliteh"
	"github.com/corelite/sqlite/sqlstats"
)

func newTestPool(t *testing.T, size int, tracer sqliteh.Tracer) *Pool {
	t.Helper()
	initFn := func(c *sqlite.Conn) error {
		return c.Execute("PRAGMA synchronous=OFF; PRAGMA journal_mode=WAL;")
	}
	p, err := NewPool("file:"+t.TempDir()+"/pool.db", size, initFn, tracer)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func mustBeginTx(t *testing.T, p *Pool, why string) *Tx {
	t.Helper()
	tx, err := p.BeginTx(context.Background(), why)
	if err != nil {
		t.Fatalf("BeginTx(%q): %v", why, err)
	}
	return tx
}

func countRows(t *testing.T, rx *Rx, table string) int {
	t.Helper()
	row, err := rx.Prepare("SELECT count(*) FROM " + table).Cursor().TryNext()
	if err != nil || row == nil {
		t.Fatalf("count %s: row=%v err=%v", table, row, err)
	}
	return sqlite.Read[int](row, 0)
}

func TestTxHooks(t *testing.T) {
	p := newTestPool(t, 2, nil)
	var calls []string
	hook := func(name string) func() {
		return func() { calls = append(calls, name) }
	}

	tx := mustBeginTx(t, p, "create")
	if err := tx.Exec("CREATE TABLE ledger (amount INTEGER)"); err != nil {
		t.Fatal(err)
	}
	tx.OnCommit, tx.OnRollback = hook("commit-1"), hook("rollback-1")
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	tx.Rollback() // already done: no hook, no panic
	if err := tx.Commit(); err == nil {
		t.Error("second Commit succeeded")
	}

	tx = mustBeginTx(t, p, "discard")
	if err := tx.Exec("INSERT INTO ledger VALUES (5)"); err != nil {
		t.Fatal(err)
	}
	tx.OnCommit, tx.OnRollback = hook("commit-2"), hook("rollback-2")
	tx.Rollback()
	if err := tx.Commit(); err == nil {
		t.Error("Commit after Rollback succeeded")
	}

	if diff := cmp.Diff([]string{"commit-1", "rollback-2"}, calls); diff != "" {
		t.Errorf("hooks (-want +got):\n%s", diff)
	}

	rx, err := p.BeginRx(context.Background(), "check")
	if err != nil {
		t.Fatal(err)
	}
	defer rx.Rollback()
	if n := countRows(t, rx, "ledger"); n != 0 {
		t.Errorf("ledger has %d rows after rollback", n)
	}
}

func TestPrepareCache(t *testing.T) {
	p := newTestPool(t, 2, nil)
	tx := mustBeginTx(t, p, "first")
	if err := tx.Exec("CREATE TABLE ledger (amount INTEGER)"); err != nil {
		t.Fatal(err)
	}
	const ins = "INSERT INTO ledger VALUES (?)"
	s1 := tx.Prepare(ins)
	if _, err := s1.Exec(1); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx = mustBeginTx(t, p, "second")
	defer tx.Rollback()
	if s2 := tx.Prepare(ins); s2 != s1 {
		t.Errorf("Prepare returned %p, then %p; want the cached stmt", s1, s2)
	}

	defer func() {
		r := recover()
		err, _ := r.(error)
		var e *sqlite.Error
		if !errors.As(err, &e) || !strings.Contains(e.Msg, `near "INVALID": syntax error`) {
			t.Errorf("Prepare(INVALID SQL) panicked with %v", r)
		}
	}()
	tx.Prepare("INVALID SQL")
}

func TestReaders(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t, 3, nil)
	tx := mustBeginTx(t, p, "setup")
	if err := tx.Conn().Execute("CREATE TABLE ledger (amount INTEGER); INSERT INTO ledger VALUES (3), (4);"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	rx1, err := p.BeginRx(ctx, "read-1")
	if err != nil {
		t.Fatal(err)
	}
	rx2, err := p.BeginRx(ctx, "read-2")
	if err != nil {
		t.Fatal(err)
	}
	defer rx2.Rollback()

	// Both readers are out, so a third waits until its ctx ends.
	waitCtx, cancel := context.WithCancel(ctx)
	errc := make(chan error, 1)
	go func() {
		rx, err := p.BeginRx(waitCtx, "read-3")
		if err == nil {
			rx.Rollback()
			err = errors.New("BeginRx succeeded with no idle reader")
		}
		errc <- err
	}()
	cancel()
	if err := <-errc; err != context.Canceled {
		t.Fatalf("read-3: %v, want context.Canceled", err)
	}

	if n := countRows(t, rx1, "ledger"); n != 2 {
		t.Errorf("ledger rows = %d, want 2", n)
	}
	rx1.Rollback()
	rx1.Rollback() // no-op

	rx3, err := p.BeginRx(ctx, "read-3")
	if err != nil {
		t.Fatalf("reader not returned to the pool: %v", err)
	}
	defer rx3.Rollback()

	_, err = rx3.Prepare("INSERT INTO ledger VALUES (1)").Exec()
	if !errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_READONLY)) {
		t.Errorf("write on a reader: %v, want SQLITE_READONLY", err)
	}
}

func TestTxRxRollbackPanics(t *testing.T) {
	p := newTestPool(t, 2, nil)
	tx := mustBeginTx(t, p, "raw")
	if err := tx.Conn().Execute("PRAGMA user_version=5"); err != nil {
		t.Fatal(err)
	}
	func() {
		defer func() {
			const want = "sqlitepool: Rollback on the Rx of a Tx; call Tx.Rollback"
			if r := recover(); r != want {
				t.Errorf("Tx.Rx.Rollback panic = %v, want %q", r, want)
			}
		}()
		tx.Rx.Rollback()
	}()
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func TestPoolTracer(t *testing.T) {
	tracer := &sqlstats.Tracer{}
	p := newTestPool(t, 2, tracer)
	tx := mustBeginTx(t, p, "create")
	if err := tx.Exec("CREATE TABLE ledger (amount INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	tx = mustBeginTx(t, p, "abandon")
	tx.Rollback()
	rx, err := p.BeginRx(context.Background(), "read")
	if err != nil {
		t.Fatal(err)
	}
	rx.Rollback()

	want := sqlstats.TxCounts{Begun: 3, Committed: 1, RolledBack: 2}
	if diff := cmp.Diff(want, tracer.Transactions()); diff != "" {
		t.Errorf("tx counts (-want +got):\n%s", diff)
	}
}

func TestPoolClose(t *testing.T) {
	ctx := context.Background()
	p, err := NewPool("file:"+t.TempDir()+"/closed.db", 2, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err == nil {
		t.Error("second Close succeeded")
	}
	if _, err := p.BeginTx(ctx, "after-close"); !errors.Is(err, context.Canceled) {
		t.Errorf("BeginTx after Close: %v", err)
	}
	if _, err := p.BeginRx(ctx, "after-close"); !errors.Is(err, context.Canceled) {
		t.Errorf("BeginRx after Close: %v", err)
	}
}

func TestNewPoolErrors(t *testing.T) {
	if _, err := NewPool("file:"+t.TempDir()+"/small", 1, nil, nil); err == nil {
		t.Error("poolSize=1 did not fail")
	}
	initErr := errors.New("init failed")
	_, err := NewPool("file:"+t.TempDir()+"/init", 3, func(*sqlite.Conn) error { return initErr }, nil)
	if !errors.Is(err, initErr) {
		t.Errorf("err=%v, want %v", err, initErr)
	}
	if _, err := NewPool("file:"+t.TempDir()+"/missing/dir/db", 2, nil, nil); err == nil {
		t.Error("unopenable path did not fail")
	}
}
