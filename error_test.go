package sqlite

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/corelite/sqlite/sqliteh"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		err  Error
		want string
	}{
		{Error{Code: sqliteh.SQLITE_BUSY}, "sqlite: SQLITE_BUSY"},
		{Error{Code: sqliteh.SQLITE_ERROR, Loc: "Prepare", Msg: "no such table: t"}, "sqlite.Prepare: SQLITE_ERROR: no such table: t"},
		{
			Error{Code: sqliteh.SQLITE_CONSTRAINT_UNIQUE, Loc: "Stmt.Exec", Msg: "UNIQUE constraint failed: t.a", Query: "INSERT INTO t VALUES (1)"},
			"sqlite.Stmt.Exec: SQLITE_CONSTRAINT_UNIQUE: UNIQUE constraint failed: t.a (INSERT INTO t VALUES (1))",
		},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestErrorIs(t *testing.T) {
	unique := &Error{Code: sqliteh.SQLITE_CONSTRAINT_UNIQUE}
	if !errors.Is(unique, sqliteh.ErrCode(sqliteh.SQLITE_CONSTRAINT)) {
		t.Error("CONSTRAINT_UNIQUE does not match its primary code")
	}
	if !errors.Is(unique, sqliteh.ErrCode(sqliteh.SQLITE_CONSTRAINT_UNIQUE)) {
		t.Error("CONSTRAINT_UNIQUE does not match itself")
	}
	if errors.Is(unique, sqliteh.ErrCode(sqliteh.SQLITE_CONSTRAINT_ROWID)) {
		t.Error("CONSTRAINT_UNIQUE matches a sibling extended code")
	}
	if errors.Unwrap(&Error{Loc: "x"}) != nil {
		t.Error("an Error without a code unwraps to a code")
	}

	snapshot := &Error{Code: sqliteh.SQLITE_BUSY_SNAPSHOT}
	if !IsBusy(snapshot) || !errors.Is(snapshot, ErrBusy) {
		t.Error("BUSY_SNAPSHOT is not busy")
	}
	if IsBusy(unique) || IsBusy(io.EOF) || IsBusy(nil) {
		t.Error("IsBusy true for a non-busy error")
	}
}

func TestReserr(t *testing.T) {
	if err := reserr(nil, "Stmt.Step", "SELECT 1", nil); err != nil {
		t.Fatalf("reserr(nil) = %v", err)
	}

	err := reserr(nil, "Prepare", "", &sqliteh.MsgError{Code: sqliteh.ErrCode(sqliteh.SQLITE_MISUSE), Msg: "no SQL statement"})
	var e *Error
	if !errors.As(err, &e) || e.Code != sqliteh.SQLITE_MISUSE || e.Msg != "no SQL statement" || e.Loc != "Prepare" {
		t.Errorf("MsgError: %#v", err)
	}

	err = reserr(nil, "Stmt.Step", "SELECT 1", sqliteh.ErrCode(sqliteh.SQLITE_INTERRUPT))
	if !errors.As(err, &e) || e.Code != sqliteh.SQLITE_INTERRUPT || e.Query != "SELECT 1" {
		t.Errorf("ErrCode: %#v", err)
	}

	err = reserr(nil, "Backup", "", io.ErrUnexpectedEOF)
	if errors.As(err, &e) || !errors.Is(err, io.ErrUnexpectedEOF) || !strings.HasPrefix(err.Error(), "sqlite.Backup: ") {
		t.Errorf("foreign error: %#v", err)
	}
}

func TestConstraintError(t *testing.T) {
	c, err := OpenURI(MemoryURI())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	mustExec(t, c, "CREATE TABLE badges (holder TEXT UNIQUE)")
	mustExec(t, c, "INSERT INTO badges VALUES ('kim')")

	s := mustPrepare(t, c, "INSERT INTO badges VALUES (?)")
	_, err = s.Exec("kim")
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("duplicate insert: %v", err)
	}
	if e.Code != sqliteh.SQLITE_CONSTRAINT_UNIQUE {
		t.Errorf("Code = %v, want SQLITE_CONSTRAINT_UNIQUE", e.Code)
	}
	if !strings.Contains(e.Msg, "UNIQUE constraint failed: badges.holder") {
		t.Errorf("Msg = %q", e.Msg)
	}
	if e.Query != "INSERT INTO badges VALUES (?)" {
		t.Errorf("Query = %q", e.Query)
	}
	if _, err := s.Exec("lee"); err != nil {
		t.Errorf("statement unusable after a constraint error: %v", err)
	}

	m := misuse("Row.Scan", "SELECT 1", "%d destinations for %d columns", 3, 1)
	if !errors.Is(m, sqliteh.ErrCode(sqliteh.SQLITE_MISUSE)) || m.Msg != "3 destinations for 1 columns" {
		t.Errorf("misuse = %#v", m)
	}
}
