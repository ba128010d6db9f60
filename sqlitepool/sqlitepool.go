// Package sqlitepool keeps a fixed set of connections to one SQLite
// database: a single writer, and readers held in query_only mode.
//
// Transactions borrow a connection and give it back when they end.
// Statements prepared through a transaction are cached on the connection
// for the life of the pool.
package sqlitepool

import (
	"context"
	"errors"
	"fmt"

	"github.com/corelite/sqlite"
	"github.com/corelite/sqlite/sqliteh"
)

// A Pool is a fixed-size pool of connections to one database.
type Pool struct {
	tracer  sqliteh.Tracer
	writer  chan *conn // cap 1
	readers chan *conn // cap size-1
	all     []*conn
	done    chan struct{} // closed by Close
}

// conn is a pooled connection and its statement cache.
type conn struct {
	c      *sqlite.Conn
	tracer sqliteh.Tracer
	home   chan *conn // where the conn waits while idle
	cache  map[string]*sqlite.Stmt
}

var poolOpenFlags = sqlite.NewOpenFlags().WithCreate().WithReadWrite().WithURI()

// NewPool opens poolSize connections to filename, a path or a file: URI.
// The first is the writer; the rest only read.
//
// initFn, if not nil, runs once on each new connection. Every connection
// reports its queries and the pool's transactions to tracer.
func NewPool(filename string, poolSize int, initFn func(*sqlite.Conn) error, tracer sqliteh.Tracer) (*Pool, error) {
	if poolSize < 2 {
		return nil, fmt.Errorf("sqlitepool.NewPool: poolSize=%d, need a writer and at least one reader", poolSize)
	}
	p := &Pool{
		tracer:  tracer,
		writer:  make(chan *conn, 1),
		readers: make(chan *conn, poolSize-1),
		done:    make(chan struct{}),
	}
	for i := range poolSize {
		home := p.readers
		if i == 0 {
			home = p.writer
		}
		c, err := p.dial(filename, home, initFn)
		if err != nil {
			for _, c := range p.all {
				c.close()
			}
			return nil, fmt.Errorf("sqlitepool.NewPool: conn %d: %w", i, err)
		}
		p.all = append(p.all, c)
		home <- c
	}
	return p, nil
}

func (p *Pool) dial(filename string, home chan *conn, initFn func(*sqlite.Conn) error) (*conn, error) {
	sc, err := sqlite.OpenWithFlags(filename, poolOpenFlags)
	if err != nil {
		return nil, err
	}
	sc.SetTracer(p.tracer)
	if initFn != nil {
		if err := initFn(sc); err != nil {
			sc.Close()
			return nil, err
		}
	}
	if home == p.readers {
		if err := sc.Execute("PRAGMA query_only=true;"); err != nil {
			sc.Close()
			return nil, err
		}
	}
	return &conn{
		c:      sc,
		tracer: p.tracer,
		home:   home,
		cache:  make(map[string]*sqlite.Stmt),
	}, nil
}

// prepare returns the cached statement for query, preparing it first
// if need be. A query that does not compile is a programming error,
// so it panics with the *sqlite.Error.
func (c *conn) prepare(query string) *sqlite.Stmt {
	if s := c.cache[query]; s != nil {
		return s
	}
	s, err := c.c.PreparePersistent(query)
	if err != nil {
		panic(err)
	}
	c.cache[query] = s
	return s
}

func (c *conn) exec(query string) error {
	_, err := c.prepare(query).Exec()
	return err
}

// finish ends the open transaction, reports it, and sends c home.
func (c *conn) finish(commit bool) error {
	var err error
	if commit {
		err = c.exec("COMMIT;")
		if c.tracer != nil {
			c.tracer.Commit(c.c.ID(), err)
		}
	} else {
		err = c.exec("ROLLBACK;")
		if c.tracer != nil {
			c.tracer.Rollback(c.c.ID(), err)
		}
	}
	c.home <- c // never blocks: home has room for every conn it owns
	return err
}

func (c *conn) close() error {
	// Closing the sqlite.Conn finalizes the cached statements.
	c.cache = nil
	return c.c.Close()
}

// Close waits for every connection to be returned, then closes them all.
// Transactions begun after Close fail.
func (p *Pool) Close() error {
	select {
	case <-p.done:
		return errors.New("sqlitepool: pool already closed")
	default:
	}
	close(p.done)

	var err error
	collect := func(home chan *conn, n int) {
		for range n {
			if cerr := (<-home).close(); err == nil {
				err = cerr
			}
		}
	}
	collect(p.writer, cap(p.writer))
	collect(p.readers, cap(p.readers))
	return err
}

var errPoolClosed = fmt.Errorf("%w: sqlitepool closed", context.Canceled)

// take waits for an idle conn in home, then begins a transaction on it.
func (p *Pool) take(ctx context.Context, home chan *conn, why string) (*conn, error) {
	var c *conn
	select {
	case <-p.done:
		return nil, errPoolClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	case c = <-home:
	}
	readOnly := home == p.readers
	begin := "BEGIN IMMEDIATE;"
	if readOnly {
		begin = "BEGIN;"
	}
	err := c.exec(begin)
	if p.tracer != nil {
		p.tracer.BeginTx(ctx, c.c.ID(), why, readOnly, err)
	}
	if err != nil {
		home <- c
		return nil, err
	}
	return c, nil
}

// BeginTx waits for the writer and begins an immediate transaction on it.
// why names the transaction for the Tracer.
func (p *Pool) BeginTx(ctx context.Context, why string) (*Tx, error) {
	c, err := p.take(ctx, p.writer, why)
	if err != nil {
		return nil, err
	}
	return &Tx{Rx: &Rx{conn: c, inTx: true}}, nil
}

// BeginRx waits for a reader and begins a read transaction on it.
// why names the transaction for the Tracer.
func (p *Pool) BeginRx(ctx context.Context, why string) (*Rx, error) {
	c, err := p.take(ctx, p.readers, why)
	if err != nil {
		return nil, err
	}
	return &Rx{conn: c}, nil
}

// Rx is a read transaction. It is not safe for concurrent use.
type Rx struct {
	conn *conn
	inTx bool // embedded in a Tx, which owns ending it

	// OnRollback, if set, is called after the transaction rolls back.
	// It is not called for a committed Tx.
	OnRollback func()
}

// Exec runs a statement that returns no rows.
func (rx *Rx) Exec(query string) error {
	return rx.conn.exec(query)
}

// Prepare returns a statement for query, cached on the connection.
// It panics if query does not compile: cached queries are constant
// strings written into the program.
func (rx *Rx) Prepare(query string) *sqlite.Stmt {
	return rx.conn.prepare(query)
}

// Conn is the connection the transaction runs on.
// Anything done with it happens inside the transaction. Use SAVEPOINT,
// not BEGIN or COMMIT, and leave the outer transaction open.
func (rx *Rx) Conn() *sqlite.Conn {
	return rx.conn.c
}

// Rollback ends the transaction and returns its connection.
// It does nothing if the Rx is already done.
func (rx *Rx) Rollback() {
	if rx.conn == nil {
		return
	}
	if rx.inTx {
		panic("sqlitepool: Rollback on the Rx of a Tx; call Tx.Rollback")
	}
	err := rx.conn.finish(false)
	rx.conn = nil
	if fn := rx.OnRollback; fn != nil {
		rx.OnRollback = nil
		fn()
	}
	if err != nil {
		panic(err)
	}
}

// Tx is a write transaction. It is not safe for concurrent use.
//
// The embedded Rx can be handed to code that only reads.
type Tx struct {
	*Rx

	// OnCommit, if set, is called after a successful commit.
	OnCommit func()
}

func (tx *Tx) end(commit bool) (hook func(), err error) {
	err = tx.conn.finish(commit)
	tx.conn = nil
	if commit {
		hook = tx.OnCommit
	} else {
		hook = tx.OnRollback
	}
	tx.OnCommit, tx.OnRollback = nil, nil
	return hook, err
}

// Rollback ends the transaction, discarding its writes.
// It does nothing if the Tx is already done, so it can be deferred.
func (tx *Tx) Rollback() {
	if tx.conn == nil {
		return
	}
	hook, err := tx.end(false)
	if hook != nil {
		hook()
	}
	if err != nil {
		panic(err)
	}
}

// Commit ends the transaction, keeping its writes.
// It reports an error if the Tx is already done.
func (tx *Tx) Commit() error {
	if tx.conn == nil {
		return errors.New("sqlitepool: tx already done")
	}
	hook, err := tx.end(true)
	if hook != nil && err == nil {
		hook()
	}
	return err
}
