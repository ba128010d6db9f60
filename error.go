package sqlite

import (
	"errors"
	"expvar"
	"fmt"
	"strings"

	"github.com/corelite/sqlite/sqliteh"
)

// Error is an error produced by SQLite.
type Error struct {
	Code  sqliteh.Code // SQLite extended error code (SQLITE_OK means no code)
	Loc   string       // method name that generated the error
	Query string       // original SQL query text
	Msg   string       // value of sqlite3_errmsg at the time of failure
}

func (err Error) Error() string {
	b := new(strings.Builder)
	b.WriteString("sqlite")
	if err.Loc != "" {
		b.WriteByte('.')
		b.WriteString(err.Loc)
	}
	b.WriteString(": ")
	b.WriteString(err.Code.String())
	if err.Msg != "" {
		b.WriteString(": ")
		b.WriteString(err.Msg)
	}
	if err.Query != "" {
		b.WriteString(" (")
		b.WriteString(err.Query)
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap returns the sqliteh.ErrCode of the error, so
// errors.Is(err, sqliteh.ErrCode(sqliteh.SQLITE_CONSTRAINT)) matches
// any constraint violation.
func (err Error) Unwrap() error {
	if err.Code == sqliteh.SQLITE_OK {
		return nil
	}
	return sqliteh.ErrCode(err.Code)
}

// ErrBusy matches, with errors.Is, any error whose primary code is
// SQLITE_BUSY. It is what a blocked operation reports when the busy
// handler declines to retry.
var ErrBusy error = sqliteh.ErrCode(sqliteh.SQLITE_BUSY)

// IsBusy reports whether err is a lock conflict that may succeed if retried.
func IsBusy(err error) bool { return errors.Is(err, ErrBusy) }

// ErrClosed is returned when an operation is attempted on a connection after
// Close has already been called.
var ErrClosed = errors.New("sqlite3: already closed")

// ErrStaleRow is returned when a Row is read after its cursor has moved on.
var ErrStaleRow = errors.New("sqlite: row is no longer current")

// UsesAfterClose is a metric that is incremented every time an operation is
// attempted on a connection after Close has already been called. The keys are
// internal identifiers for the code path that incremented a counter.
var UsesAfterClose expvar.Map

func reserr(db sqliteh.DB, loc, query string, err error) error {
	if err == nil {
		return nil
	}
	e := &Error{
		Loc:   loc,
		Query: query,
	}
	var msgErr *sqliteh.MsgError
	var code sqliteh.ErrCode
	switch {
	case errors.As(err, &msgErr):
		e.Code = sqliteh.Code(msgErr.Code)
		e.Msg = msgErr.Msg
	case errors.As(err, &code):
		e.Code = sqliteh.Code(code)
		if db != nil {
			e.Msg = db.ErrMsg()
		}
	default:
		return fmt.Errorf("sqlite.%s: %w", loc, err)
	}
	return e
}

func misuse(loc, query, format string, args ...any) *Error {
	return &Error{
		Code:  sqliteh.SQLITE_MISUSE,
		Loc:   loc,
		Query: query,
		Msg:   fmt.Sprintf(format, args...),
	}
}
