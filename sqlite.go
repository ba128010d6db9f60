// Copyright (c) 2021 Tailscale Inc & AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sqlite is a safe layer over the SQLite3 C API.
//
// A Conn is a database connection. Conn.Prepare compiles a query into a
// Stmt, whose Cursor steps through the result rows:
//
//	c, err := sqlite.Open("app.db")
//	if err != nil {
//		// handle err
//	}
//	defer c.Close()
//	s, err := c.Prepare("SELECT name, age FROM users WHERE age > ?")
//	if err != nil {
//		// handle err
//	}
//	defer s.Close()
//	for row, err := range s.Cursor().Bind(21).All() {
//		if err != nil {
//			// handle err
//		}
//		name, err := sqlite.TryRead[string](row, "name")
//		...
//	}
//
// A Row borrows the statement: it is only valid until the cursor steps
// again, and reading a stale row reports ErrStaleRow.
//
// # database/sql
//
// Importing the package registers a database/sql driver named "sqlite3"
// on top of the same Conn and Stmt. Data source names are file: URIs
// (https://sqlite.org/c3ref/open.html#urifilenames).
//
// Connector attaches a per-connection setup hook and a Tracer:
//
//	setup := func(ctx context.Context, dc driver.ConnPrepareContext) error {
//		return sqlite.ExecScript(dc.(sqlite.SQLConn), "PRAGMA journal_mode=WAL;")
//	}
//	db := sql.OpenDB(sqlite.Connector("file:app.db", setup, tracer))
//
// For a database that lives only in memory but is shared by the whole
// database/sql pool, open a URI from MemoryURI. It names a fresh
// database in the "memdb" VFS each call.
//
// # Binding
//
// Go integers, floats, strings, byte slices, bools, nil and their named
// variants bind directly. An encoding.TextMarshaler binds as text.
// uint64 is refused, as SQLite integers are signed.
//
// A time.Time binds as text in the shortest form that keeps its
// precision: "2006-01-02 15:04", then seconds, then milliseconds.
// Zones other than UTC append the offset as "-0700".
//
// Reading goes the other way. Through database/sql, columns declared
// DATE or DATETIME come back as time.Time from either text or integer
// seconds since the epoch. Row.Scan and TryRead do the same for any
// *time.Time destination.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/corelite/sqlite/sqliteh"
)

// ConnInitFunc prepares each new driver connection before database/sql
// uses it. dc implements SQLConn. An error closes the connection and
// fails the Connect.
type ConnInitFunc func(ctx context.Context, dc driver.ConnPrepareContext) error

func init() {
	sql.Register("sqlite3", drv{})
}

type drv struct{}

func (drv) Open(name string) (driver.Conn, error) { panic("deprecated, unused") }

func (drv) OpenConnector(uri string) (driver.Connector, error) {
	return &connector{uri: uri}, nil
}

// Connector returns a driver.Connector for sql.OpenDB that opens uri.
// setup and tracer may be nil.
func Connector(uri string, setup ConnInitFunc, tracer sqliteh.Tracer) driver.Connector {
	return &connector{uri: uri, setup: setup, tracer: tracer}
}

type connector struct {
	uri    string
	setup  ConnInitFunc
	tracer sqliteh.Tracer
}

func (cn *connector) Driver() driver.Driver { return drv{} }

func (cn *connector) Connect(ctx context.Context) (driver.Conn, error) {
	sc, err := open(cn.uri, OpenFlags(sqliteh.OpenFlagsDefault))
	if err != nil {
		return nil, err
	}
	sc.SetTracer(cn.tracer)
	c := &conn{c: sc}
	if cn.setup == nil {
		return c, nil
	}
	if err := cn.setup(ctx, c); err != nil {
		sc.Close()
		return nil, fmt.Errorf("sqlite.ConnInitFunc: %w", err)
	}
	return c, nil
}

// conn is a driver connection. It is used by one goroutine at a time.
type conn struct {
	c *Conn

	// cached holds the idle persisted statements by query text.
	// A statement is out of the map while a caller holds it.
	cached map[string]*stmt

	inTx     bool
	readOnly bool // the open transaction set query_only
}

func (c *conn) Prepare(query string) (driver.Stmt, error) { panic("deprecated, unused") }
func (c *conn) Begin() (driver.Tx, error)                 { panic("deprecated, unused") }

// Close closes the Conn, which finalizes the persisted statements too.
func (c *conn) Close() error {
	c.cached = nil
	return c.c.Close()
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	_, persist := ctx.Value(persistQuery{}).(persistQuery)
	return c.prepare(ctx, query, persist)
}

// CheckNamedValue accepts every argument: binding does its own
// conversion, see ValueOf.
func (c *conn) CheckNamedValue(nv *driver.NamedValue) error {
	if v, ok := nv.Value.(driver.Valuer); ok {
		dv, err := v.Value()
		if err != nil {
			return err
		}
		nv.Value = dv
	}
	return nil
}

func (c *conn) prepare(ctx context.Context, query string, persist bool) (*stmt, error) {
	if err := c.c.check("prepare"); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if s, ok := c.cached[query]; ok {
		delete(c.cached, query) // back in on Close
		if !s.closed.CompareAndSwap(true, false) {
			return nil, ErrClosed
		}
		s.s.prepCtx = ctx
		return s, nil
	}

	var flags sqliteh.PrepareFlags
	if persist {
		flags = sqliteh.SQLITE_PREPARE_PERSISTENT
		if c.cached == nil {
			c.cached = make(map[string]*stmt)
		}
	}
	ss, err := c.c.prepare(ctx, query, flags)
	if err != nil {
		return nil, err
	}
	return &stmt{conn: c, s: ss, persist: persist}, nil
}

// run executes one of the driver's own statements, such as BEGIN.
// They are always persisted.
func (c *conn) run(ctx context.Context, query string) error {
	s, err := c.prepare(ctx, query, true)
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			e.Loc = "internal:" + e.Loc
		}
		return err
	}
	defer s.Close()
	_, err = s.ExecContext(ctx, nil)
	return err
}

// serializable is sql.LevelSerializable.
const serializable = 6

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if err := c.c.check("BeginTx"); err != nil {
		return nil, err
	}
	if opts.Isolation != 0 && opts.Isolation != serializable {
		return nil, errors.New("sqlite: only the serializable isolation level is supported")
	}
	readOnly := opts.ReadOnly || IsReadOnly(ctx)
	err := c.begin(ctx, readOnly)
	if t := c.c.tracer; t != nil {
		t.BeginTx(ctx, c.c.id, TxName(ctx), readOnly, err)
	}
	if err != nil {
		c.end("ROLLBACK")
		return nil, err
	}
	return &connTx{conn: c}, nil
}

// begin opens a transaction. A write transaction takes the write
// lock up front with BEGIN IMMEDIATE; a read-only one sets query_only
// until it ends.
func (c *conn) begin(ctx context.Context, readOnly bool) error {
	c.inTx, c.readOnly = true, readOnly
	if !readOnly {
		return c.run(ctx, "BEGIN IMMEDIATE")
	}
	if err := c.run(ctx, "BEGIN"); err != nil {
		return err
	}
	return c.run(ctx, "PRAGMA query_only=true")
}

// end runs COMMIT or ROLLBACK, then clears query_only if begin set it.
// The statements run without the caller's context: a cancelled ctx
// must not leave the transaction open.
func (c *conn) end(verb string) error {
	if !c.inTx {
		return nil
	}
	readOnly := c.readOnly
	c.inTx, c.readOnly = false, false
	ctx := context.Background()
	err := c.run(ctx, verb)
	if readOnly {
		if err2 := c.run(ctx, "PRAGMA query_only=false"); err == nil {
			err = err2
		}
	}
	return err
}

// connTx is a driver.Tx. Ending it reports to the Conn's tracer.
type connTx struct {
	conn *conn
}

func (tx *connTx) finish(loc, verb string) error {
	c := tx.conn
	if err := c.c.check(loc); err != nil {
		return err
	}
	err := c.end(verb)
	if t := c.c.tracer; t != nil {
		if verb == "COMMIT" {
			t.Commit(c.c.id, err)
		} else {
			t.Rollback(c.c.id, err)
		}
	}
	return err
}

func (tx *connTx) Commit() error   { return tx.finish("tx.Commit", "COMMIT") }
func (tx *connTx) Rollback() error { return tx.finish("tx.Rollback", "ROLLBACK") }

type txNameKey struct{}

// WithTxName returns a context that labels transactions begun with it.
// The label is passed to Tracer.BeginTx.
func WithTxName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, txNameKey{}, name)
}

// TxName reports the label set by WithTxName, or "".
func TxName(ctx context.Context) string {
	name, _ := ctx.Value(txNameKey{}).(string)
	return name
}

// Raw lets a ConnInitFunc use the conn as an SQLConn.
func (c *conn) Raw(fn func(any) error) error { return fn(c) }

type readOnlyKey struct{}

// ReadOnly returns a context that makes transactions begun with it
// read-only, as if TxOptions.ReadOnly were set.
func ReadOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, readOnlyKey{}, true)
}

// IsReadOnly reports whether ctx was made by ReadOnly.
func IsReadOnly(ctx context.Context) bool {
	return ctx.Value(readOnlyKey{}) != nil
}

// stmt is a driver statement. A persisted stmt goes back into
// conn.cached on Close instead of being finalized.
type stmt struct {
	conn    *conn
	s       *Stmt
	persist bool
	bound   bool        // arguments bound, or rows being read
	closed  atomic.Bool // checked out by nobody

	// decl caches the declared column kinds of a persisted query.
	decl []declKind
}

func (s *stmt) NumInput() int {
	if s.closed.Load() {
		UsesAfterClose.Add("stmt.NumInput", 1)
		return 0
	}
	return s.s.ParameterCount()
}

func (s *stmt) Close() error {
	if s.conn.c.closed.Load() {
		UsesAfterClose.Add("Stmt.Close_conn", 1)
		return nil
	}
	if !s.closed.CompareAndSwap(false, true) {
		UsesAfterClose.Add("Stmt.Close", 1)
		return nil
	}
	if !s.persist || s.conn.cached[s.s.query] != nil {
		return s.s.Close()
	}
	if err := s.unbind(); err != nil {
		return err
	}
	s.conn.cached[s.s.query] = s
	return nil
}

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) { panic("deprecated, unused") }
func (s *stmt) Query(args []driver.Value) (driver.Rows, error)  { panic("deprecated, unused") }

// start readies s for a new execution with args.
func (s *stmt) start(loc string, args []driver.NamedValue) error {
	if s.closed.Load() {
		UsesAfterClose.Add(loc, 1)
		return ErrClosed
	}
	if err := s.unbind(); err != nil {
		return err
	}
	s.bound = true
	for _, arg := range args {
		var err error
		if arg.Name != "" {
			err = s.s.BindName(arg.Name, arg.Value)
		} else {
			err = s.s.Bind(arg.Ordinal, arg.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// unbind resets s and clears its arguments, if it has any.
func (s *stmt) unbind() error {
	if !s.bound {
		return nil
	}
	s.bound = false
	if err := s.s.Reset(); err != nil {
		return err
	}
	return s.s.ClearBindings()
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if err := s.start("stmt.ExecContext", args); err != nil {
		return nil, err
	}
	// Wait for any interrupt before returning, so it cannot land on a
	// later query.
	defer watchCancel(ctx, s.s.conn)()

	res, err := s.s.execOnce("Stmt.Exec")
	s.bound = false // execOnce leaves the statement reset
	if err != nil {
		return nil, err
	}
	return driverResult{res}, nil
}

// driverResult is a Result as a driver.Result.
type driverResult struct{ r Result }

func (d driverResult) LastInsertId() (int64, error) { return d.r.LastInsertID, nil }
func (d driverResult) RowsAffected() (int64, error) { return d.r.RowsAffected, nil }

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if err := s.start("stmt.QueryContext", args); err != nil {
		return nil, err
	}
	// Rows.Close stops the watch, and database/sql always closes rows.
	return &rows{stmt: s, cur: s.s.Cursor(), stopWatch: watchCancel(ctx, s.s.conn)}, nil
}

// noWatch is the watchCancel stop func for contexts without WithQueryCancel.
var noWatch = func() {}

// watchCancel interrupts c if ctx, made by WithQueryCancel, ends before
// the returned func is called. The returned func waits for any
// interrupt to finish.
func watchCancel(ctx context.Context, c *Conn) (stop func()) {
	if ctx.Value(queryCancelKey{}) == nil {
		return noWatch
	}
	done := make(chan struct{})
	watchCtx, stopWatch := context.WithCancel(ctx)
	context.AfterFunc(watchCtx, func() {
		defer close(done)
		// Only an end of ctx itself interrupts, not stopWatch.
		if ctx.Err() != nil {
			c.Interrupt()
		}
	})
	return func() { stopWatch(); <-done }
}

// declKind is the special handling a declared column type asks for.
type declKind byte

const (
	declPlain declKind = iota
	declTime           // DATE or DATETIME
	declBool           // BOOLEAN
)

func declKindOf(decl string) declKind {
	switch strings.ToUpper(decl) {
	case "DATE", "DATETIME":
		return declTime
	case "BOOLEAN":
		return declBool
	}
	return declPlain
}

// driverValue converts column value v for database/sql.
// Text in a time column that does not parse stays a string.
func driverValue(v Value, kind declKind) driver.Value {
	switch kind {
	case declTime:
		switch v.Type() {
		case TypeInteger:
			return time.Unix(v.i, 0)
		case TypeString:
			if t, err := parseTime(v.s); err == nil {
				return t
			}
		}
	case declBool:
		if v.Type() == TypeInteger {
			return v.i > 0
		}
	}
	return v.Any()
}

type rows struct {
	stmt      *stmt
	cur       *Cursor
	closed    bool
	stopWatch func()
	decl      []declKind // set on the first Next
}

func (r *rows) Columns() []string {
	if r.closed {
		panic("Columns called after Rows was closed")
	}
	return slices.Clone(r.cur.ColumnNames())
}

var errRowsClosed = errors.New("sqlite rows result already closed")

func (r *rows) Close() error {
	if r.closed {
		return errRowsClosed
	}
	if err := r.stmt.s.check("rows.Close"); err != nil {
		return err
	}
	r.closed = true
	r.stopWatch()
	return r.stmt.unbind()
}

func (r *rows) declKinds() []declKind {
	if r.decl != nil {
		return r.decl
	}
	if r.decl = r.stmt.decl; r.decl != nil {
		return r.decl
	}
	s := r.stmt.s
	r.decl = make([]declKind, s.ColumnCount())
	for i := range r.decl {
		r.decl[i] = declKindOf(s.ColumnDeclType(i))
	}
	if r.stmt.persist {
		r.stmt.decl = r.decl
	}
	return r.decl
}

func (r *rows) Next(dest []driver.Value) error {
	if r.closed {
		return errRowsClosed
	}
	row, err := r.cur.TryNext()
	if err != nil {
		return err
	}
	if row == nil {
		return io.EOF
	}
	decl := r.declKinds()
	for i := range dest {
		dest[i] = driverValue(row.column(i), decl[i])
	}
	return nil
}

// SQLConn is implemented by *sql.Conn, and by the driver connection a
// ConnInitFunc receives.
type SQLConn interface {
	Raw(func(driverConn any) error) error
}

// WithConn calls fn with the Conn underneath a database/sql connection,
// for the parts of the API database/sql has no room for.
// fn must not retain c or close it.
func WithConn(sqlconn SQLConn, fn func(c *Conn) error) error {
	return sqlconn.Raw(func(driverConn any) error {
		c, ok := driverConn.(*conn)
		if !ok {
			return fmt.Errorf("sqlite: sql.Conn is not the sqlite driver: %T", driverConn)
		}
		return fn(c.c)
	})
}

// ExecScript runs the semicolon-separated statements in script, in
// order, stopping at the first that fails. Statements that already ran
// stay applied unless the script wraps itself in BEGIN and COMMIT.
//
//	c, err := db.Conn(ctx)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	return sqlite.ExecScript(c, migration)
func ExecScript(sqlconn SQLConn, script string) error {
	return WithConn(sqlconn, func(c *Conn) error {
		return c.exec("ExecScript", script, nil)
	})
}

// BusyTimeout sets how long the connection waits on a locked database.
// See Conn.SetBusyTimeout.
func BusyTimeout(sqlconn SQLConn, d time.Duration) error {
	return WithConn(sqlconn, func(c *Conn) error { return c.SetBusyTimeout(d) })
}

// TxnState reports the transaction state of schema on the connection.
func TxnState(sqlconn SQLConn, schema string) (sqliteh.TxnState, error) {
	var state sqliteh.TxnState
	err := WithConn(sqlconn, func(c *Conn) error {
		state = c.TxnState(schema)
		return nil
	})
	return state, err
}

// Checkpoint checkpoints the WAL of dbName on the connection and
// reports the WAL size and the frames copied, both in frames.
func Checkpoint(sqlconn SQLConn, dbName string, mode sqliteh.Checkpoint) (walFrames, copied int, err error) {
	err = WithConn(sqlconn, func(c *Conn) error {
		var err error
		walFrames, copied, err = c.Checkpoint(dbName, mode)
		return err
	})
	return walFrames, copied, err
}

type persistQuery struct{}

// WithPersist returns a context whose queries the driver keeps
// prepared on the connection after use, keyed by query text.
// Use it for queries that run often.
func WithPersist(ctx context.Context) context.Context {
	return context.WithValue(ctx, persistQuery{}, persistQuery{})
}

type queryCancelKey struct{}

// WithQueryCancel returns a context whose queries are interrupted
// mid-step when it ends. Otherwise the driver only notices a done
// context between steps.
func WithQueryCancel(ctx context.Context) context.Context {
	return context.WithValue(ctx, queryCancelKey{}, queryCancelKey{})
}
