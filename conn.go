package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corelite/sqlite/sqliteh"
)

// RawOpen opens the engine handle under a Conn.
// It is cgosqlite.Open when the package is built with cgo.
var RawOpen sqliteh.OpenFunc = func(string, sqliteh.OpenFlags, string) (sqliteh.DB, error) {
	return nil, fmt.Errorf("cgosqlite.Open is missing")
}

var maxConnID atomic.Int32

// Conn is a connection to an SQLite database.
//
// A Conn opened with Open or OpenWithFlags must only be used by one
// goroutine at a time. A Conn opened with OpenThreadSafe may be shared:
// SQLite serializes the engine calls and the Conn guards its own state.
type Conn struct {
	db         sqliteh.DB
	id         sqliteh.TraceConnID
	threadSafe bool
	tracer     sqliteh.Tracer
	closed     atomic.Bool

	mu      sync.Mutex // guards stmts, backups, busy handler and close
	stmts   map[*Stmt]struct{}
	backups map[*Backup]struct{}
}

// Open opens the database at path for reading and writing, creating it
// if it does not exist. The path ":memory:" opens a private in-memory
// database.
func Open(path string) (*Conn, error) {
	return OpenWithFlags(path, NewOpenFlags().WithCreate().WithReadWrite())
}

// OpenWithFlags opens the database at path with the given flags.
//
// If SQLite reports an error, the message it recorded on the half-open
// handle is captured before the handle is closed.
func OpenWithFlags(path string, flags OpenFlags) (*Conn, error) {
	return open(path, flags)
}

// OpenThreadSafe is Open in serialized mode.
func OpenThreadSafe(path string) (*Conn, error) {
	return OpenThreadSafeWithFlags(path, NewOpenFlags().WithCreate().WithReadWrite())
}

// OpenThreadSafeWithFlags is OpenWithFlags with the full mutex flag forced on.
func OpenThreadSafeWithFlags(path string, flags OpenFlags) (*Conn, error) {
	return open(path, flags.WithFullMutex())
}

// OpenURI opens a file: URI, such as one returned by MemoryURI.
// https://sqlite.org/uri.html
func OpenURI(uri string) (*Conn, error) {
	return open(uri, NewOpenFlags().WithCreate().WithReadWrite().WithURI())
}

func open(path string, flags OpenFlags) (*Conn, error) {
	db, err := RawOpen(path, sqliteh.OpenFlags(flags), "")
	if err != nil {
		err = reserr(db, "Open", "", err)
		if db != nil {
			db.Close()
		}
		return nil, err
	}
	return &Conn{
		db:         db,
		id:         sqliteh.TraceConnID(maxConnID.Add(1)),
		threadSafe: flags.has(sqliteh.SQLITE_OPEN_FULLMUTEX),
	}, nil
}

// ID identifies c in Tracer calls.
func (c *Conn) ID() sqliteh.TraceConnID { return c.id }

// ThreadSafe reports whether c was opened in serialized mode.
func (c *Conn) ThreadSafe() bool { return c.threadSafe }

// SetTracer arranges for t to be told about every query and
// transaction on c. It must be called before c is used.
func (c *Conn) SetTracer(t sqliteh.Tracer) { c.tracer = t }

func (c *Conn) check(loc string) error {
	if c.closed.Load() {
		UsesAfterClose.Add(loc, 1)
		return ErrClosed
	}
	return nil
}

func (c *Conn) traceQuery(ctx context.Context, query string, d time.Duration, err error) {
	if c.tracer != nil {
		c.tracer.Query(ctx, c.id, query, d, err)
	}
}

// Close finishes any backups reading from or writing to c, finalizes
// any statements still open on c, removes the busy handler, and closes
// the database. Closing a closed Conn does nothing.
func (c *Conn) Close() error {
	// Don't double-close
	if !c.closed.CompareAndSwap(false, true) {
		UsesAfterClose.Add("Conn.Close", 1)
		return nil
	}

	c.mu.Lock()
	backups := c.backups
	c.backups = nil
	c.mu.Unlock()
	for b := range backups {
		b.Finish()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.stmts {
		s.closed.Store(true)
		s.stmt.Finalize()
	}
	c.stmts = nil
	return reserr(c.db, "Conn.Close", "", c.db.Close())
}

// trackBackup records b as live on c. It reports false if c is closed.
func (c *Conn) trackBackup(b *Backup) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return false
	}
	if c.backups == nil {
		c.backups = make(map[*Backup]struct{})
	}
	c.backups[b] = struct{}{}
	return true
}

func (c *Conn) forgetBackup(b *Backup) {
	c.mu.Lock()
	delete(c.backups, b)
	c.mu.Unlock()
}

// Execute runs one or more semicolon-separated statements, discarding
// any rows they produce. It stops at the first error.
func (c *Conn) Execute(query string) error {
	return c.exec("Execute", query, nil)
}

// Iterate runs one or more statements and calls fn with each row
// they produce, as text. NULL columns have Null set.
//
// The column values borrow memory owned by SQLite: they are only valid
// until fn returns. If fn returns false, Iterate stops and returns nil.
// If fn panics, the statement is aborted and the panic continues once
// control has left SQLite.
func (c *Conn) Iterate(query string, fn func(cols []sqliteh.ExecColumn) bool) error {
	return c.exec("Iterate", query, fn)
}

func (c *Conn) exec(loc, query string, fn func([]sqliteh.ExecColumn) bool) error {
	if err := c.check(loc); err != nil {
		return err
	}
	if strings.IndexByte(query, 0) >= 0 {
		return misuse(loc, query, "query contains a NUL byte")
	}
	start := time.Now()
	err := reserr(c.db, loc, query, c.db.Exec(query, fn))
	c.traceQuery(context.Background(), query, time.Since(start), err)
	return err
}

// ExecuteWith prepares query, binds values to its parameters in order
// starting at 1, and runs it once.
func (c *Conn) ExecuteWith(query string, values ...any) error {
	s, err := c.Prepare(query)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.BindAll(values...); err != nil {
		return err
	}
	_, err = s.execOnce("ExecuteWith")
	return err
}

// ExecuteMany prepares query once and runs it for each set of values in
// rows, resetting the statement in between.
//
// It stops at the first failure. The error's Loc names the failing
// row as ExecuteMany[i]; rows before it have been applied. Wrap the call
// in a transaction to make it all-or-nothing.
func (c *Conn) ExecuteMany(query string, rows [][]any) error {
	s, err := c.Prepare(query)
	if err != nil {
		return err
	}
	defer s.Close()
	for i, values := range rows {
		loc := "ExecuteMany[" + strconv.Itoa(i) + "]"
		if err := s.BindAll(values...); err != nil {
			if e, ok := err.(*Error); ok {
				e.Loc = loc + "." + e.Loc
			}
			return err
		}
		if _, err := s.execOnce(loc); err != nil {
			return err
		}
	}
	return nil
}

// Prepare compiles query into a statement.
//
// The query must hold exactly one statement: trailing text other than
// whitespace is an error.
func (c *Conn) Prepare(query string) (*Stmt, error) {
	return c.prepare(context.Background(), query, 0)
}

// PreparePersistent is Prepare with a hint to SQLite that the statement
// will be kept and reused many times.
func (c *Conn) PreparePersistent(query string) (*Stmt, error) {
	return c.prepare(context.Background(), query, sqliteh.SQLITE_PREPARE_PERSISTENT)
}

func (c *Conn) prepare(ctx context.Context, query string, flags sqliteh.PrepareFlags) (s *Stmt, err error) {
	if err := c.check("Prepare"); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if c.tracer != nil {
		start := time.Now()
		defer func() {
			if err != nil {
				c.tracer.Query(ctx, c.id, query, time.Since(start), err)
			}
		}()
	}
	if strings.IndexByte(query, 0) >= 0 {
		return nil, misuse("Prepare", query, "query contains a NUL byte")
	}
	cstmt, rem, err := c.db.Prepare(query, flags)
	if err != nil {
		return nil, reserr(c.db, "Prepare", query, err)
	}
	if strings.TrimSpace(rem) != "" {
		cstmt.Finalize()
		return nil, misuse("Prepare", query, "query has trailing text: %q", rem)
	}
	s = &Stmt{
		conn:    c,
		stmt:    cstmt,
		query:   query,
		prepCtx: ctx,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		cstmt.Finalize()
		return nil, ErrClosed
	}
	if c.stmts == nil {
		c.stmts = make(map[*Stmt]struct{})
	}
	c.stmts[s] = struct{}{}
	return s, nil
}

func (c *Conn) forget(s *Stmt) {
	c.mu.Lock()
	delete(c.stmts, s)
	c.mu.Unlock()
}

// ChangeCount reports the number of rows changed by the most recently
// completed INSERT, UPDATE or DELETE.
func (c *Conn) ChangeCount() int {
	if c.check("ChangeCount") != nil {
		return 0
	}
	return c.db.Changes()
}

// TotalChangeCount reports the number of rows changed since c was opened.
func (c *Conn) TotalChangeCount() int {
	if c.check("TotalChangeCount") != nil {
		return 0
	}
	return c.db.TotalChanges()
}

// LastInsertRowID is the rowid of the most recent successful INSERT.
func (c *Conn) LastInsertRowID() int64 {
	if c.check("LastInsertRowID") != nil {
		return 0
	}
	return c.db.LastInsertRowid()
}

// SetBusyHandler installs fn to be called when a table is locked by
// another connection. fn receives the number of prior calls for the same
// lock; returning true retries, false makes the blocked call fail with
// an error that matches ErrBusy.
//
// The previous handler is detached before fn is installed. A nil fn
// removes the handler.
func (c *Conn) SetBusyHandler(fn func(attempts int) bool) error {
	// Close also holds mu, so the handle cannot go away underneath.
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check("SetBusyHandler"); err != nil {
		return err
	}
	return reserr(c.db, "SetBusyHandler", "", c.db.BusyHandler(fn))
}

// SetBusyTimeout installs SQLite's own handler, which sleeps and
// retries until d has passed. It replaces any SetBusyHandler function.
func (c *Conn) SetBusyTimeout(d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check("SetBusyTimeout"); err != nil {
		return err
	}
	c.db.BusyTimeout(d)
	return nil
}

// RemoveBusyHandler removes any busy handler. Lock conflicts then fail
// immediately.
func (c *Conn) RemoveBusyHandler() error {
	return c.SetBusyHandler(nil)
}

// Interrupt makes the running statement on c, if any, fail with
// SQLITE_INTERRUPT. It is safe to call from another goroutine.
func (c *Conn) Interrupt() {
	if c.check("Interrupt") != nil {
		return
	}
	c.db.Interrupt()
}

// TxnState reports the transaction state of schema ("" means all schemas).
func (c *Conn) TxnState(schema string) sqliteh.TxnState {
	if c.check("TxnState") != nil {
		return sqliteh.SQLITE_TXN_NONE
	}
	return c.db.TxnState(schema)
}

// Checkpoint runs a WAL checkpoint on dbName ("" means all databases).
func (c *Conn) Checkpoint(dbName string, mode sqliteh.Checkpoint) (numFrames, numFramesCheckpointed int, err error) {
	if err := c.check("Checkpoint"); err != nil {
		return 0, 0, err
	}
	numFrames, numFramesCheckpointed, err = c.db.Checkpoint(dbName, mode)
	return numFrames, numFramesCheckpointed, reserr(c.db, "Checkpoint", dbName, err)
}
