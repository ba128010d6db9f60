// Package sqliteh holds SQLite's constants, and the DB and Stmt
// interfaces the sqlite package is written against. The cgosqlite
// package implements them.
//
// Constants keep their SQLITE_ prefix so they read as in the C
// documentation.
package sqliteh

import (
	"context"
	"time"

	"go4.org/mem"
)

// OpenFunc opens a connection, as sqlite3_open_v2.
// A failed open may still return a DB, which must be closed.
type OpenFunc func(filename string, flags OpenFlags, vfs string) (DB, error)

// BusyFunc is called when a table is locked by another connection.
// It receives the number of times it has been called for the current
// lock event. Returning true retries the operation, false gives up
// and the blocked call reports SQLITE_BUSY.
//
// https://sqlite.org/c3ref/busy_handler.html
type BusyFunc func(count int) bool

// ExecColumn is one column of a row produced by sqlite3_exec.
//
// Value borrows memory owned by SQLite and is only valid for the
// duration of the callback that received it.
type ExecColumn struct {
	Name  string
	Value mem.RO
	Null  bool
}

// MsgError is an error code paired with a message that SQLite handed
// back directly instead of through sqlite3_errmsg.
type MsgError struct {
	Code ErrCode
	Msg  string
}

func (e *MsgError) Error() string { return e.Code.Error() + ": " + e.Msg }
func (e *MsgError) Unwrap() error { return e.Code }

// ErrNoCodec is reported by DB.Key and DB.Rekey when the linked SQLite
// library has no encryption codec.
var ErrNoCodec error = &MsgError{
	Code: ErrCode(SQLITE_MISUSE),
	Msg:  "encryption requires a build with the sqlcipher tag",
}

// DB is an open sqlite3 connection. Each method wraps the C function
// of the matching name, see https://sqlite.org/c3ref/funclist.html.
//
// A DB is not safe for concurrent use, except for Interrupt.
type DB interface {
	Close() error

	// Status of the most recent call.
	ErrMsg() string
	ExtendedErrCode() Code
	Changes() int
	TotalChanges() int
	LastInsertRowid() int64

	// Prepare compiles the first statement of query and returns the
	// text after it. Text holding no statement is a MISUSE *MsgError.
	Prepare(query string, prepFlags PrepareFlags) (stmt Stmt, remainingQuery string, err error)
	// Exec runs every statement in query via sqlite3_exec, calling fn,
	// if not nil, with each result row. fn returning false stops the
	// run without an error.
	Exec(query string, fn func(cols []ExecColumn) bool) error

	// BusyHandler installs fn, or removes the handler if fn is nil.
	// Any previous handler is released first.
	BusyHandler(fn BusyFunc) error
	BusyTimeout(time.Duration)
	// Interrupt may be called from any goroutine.
	Interrupt()

	Checkpoint(db string, mode Checkpoint) (numFrames, numFramesCheckpointed int, err error)
	TxnState(schema string) TxnState

	// Serialize returns a Go-owned copy of schema's database image.
	Serialize(schema string) ([]byte, error)
	// Deserialize replaces schema with a copy of data.
	Deserialize(schema string, data []byte, readOnly bool) error

	EnableLoadExtension(on bool) error
	LoadExtension(file, entryPoint string) error

	// Key and Rekey report ErrNoCodec unless built with SQLCipher.
	Key(key []byte) error
	Rekey(key []byte) error

	// Backup starts copying src's srcName schema into this DB's dstName.
	Backup(dstName string, src DB, srcName string) (Backup, error)
}

// Backup is an sqlite3_backup in progress.
type Backup interface {
	// Step copies up to numPages pages, or all with -1. more is false
	// once the copy is complete.
	Step(numPages int) (more bool, err error)
	Remaining() int
	PageCount() int
	Finish() error
}

// Stmt is a prepared sqlite3_stmt. As with DB, methods wrap the C
// function of the matching name. Column indexes are 0-based and
// parameter indexes 1-based.
type Stmt interface {
	DBHandle() DB
	SQL() string
	ExpandedSQL() string
	ReadOnly() bool
	Finalize() error

	// Step advances to the next row. row is false at SQLITE_DONE or on
	// error. A non-nil colType is filled with the new row's column
	// types in the same cgo call.
	Step(colType []ColumnType) (row bool, err error)
	// StepResult steps once, reads the last insert rowid and change
	// count, then resets the statement and clears its bindings, all
	// in one cgo call. d is the time since StartTimer.
	StepResult() (row bool, lastInsertRowID, changes int64, d time.Duration, err error)
	// StartTimer marks the start of an execution for StepResult and
	// ResetAndClear.
	StartTimer()
	Reset() error
	ClearBindings() error
	// ResetAndClear is Reset and ClearBindings in one cgo call,
	// reporting the time since StartTimer.
	ResetAndClear() (time.Duration, error)

	BindNull(col int) error
	BindInt64(col int, val int64) error
	BindDouble(col int, val float64) error
	BindText64(col int, val string) error
	BindBlob64(col int, val []byte) error
	BindZeroBlob64(col int, n uint64) error
	BindParameterCount() int
	BindParameterName(col int) string
	// BindParameterIndex returns 0 if there is no parameter name.
	BindParameterIndex(name string) int
	// BindParameterIndexSearch looks name up with each of the
	// prefixes ':', '@' and '$' in turn.
	BindParameterIndexSearch(name string) int

	ColumnCount() int
	ColumnName(col int) string
	ColumnDeclType(col int) string
	ColumnDatabaseName(col int) string
	ColumnTableName(col int) string
	ColumnType(col int) ColumnType
	ColumnInt64(col int) int64
	ColumnDouble(col int) float64
	ColumnText(col int) string
	// ColumnBlob returns memory owned by SQLite, valid only until the
	// next call on the Stmt.
	ColumnBlob(col int) []byte
}

// TraceConnID identifies a connection in Tracer calls.
type TraceConnID int

// Tracer is called as queries and transactions run on a connection.
// Implementations must be safe for concurrent use.
type Tracer interface {
	// Query is called when a statement finishes, fails, or is reset
	// part way through. The duration covers the first step to the end.
	Query(prepCtx context.Context, id TraceConnID, query string, duration time.Duration, err error)

	// BeginTx is called after a transaction starts.
	// The why parameter is a caller-supplied label for debugging.
	BeginTx(beginCtx context.Context, id TraceConnID, why string, readOnly bool, err error)

	// Commit is called after a transaction commits.
	Commit(id TraceConnID, err error)

	// Rollback is called after a transaction rolls back.
	Rollback(id TraceConnID, err error)
}
