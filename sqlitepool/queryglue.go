package sqlitepool

// Query helpers shaped like database/sql's, for code moving off
// database/sql onto a Pool.

import (
	sqlpkg "database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"

	"github.com/corelite/sqlite"
)

// Exec runs sql once on c, without caching the statement.
// Prefer Tx.Exec for queries that run often.
func Exec(c *sqlite.Conn, sql string, args ...any) error {
	stmt, err := c.Prepare(sql)
	if err != nil {
		return err
	}
	defer stmt.Close()
	_, err = stmt.Exec(bindArgs(args)...)
	return err
}

// QueryRow runs sql once on c, without caching the statement.
// Prefer Rx.QueryRow for queries that run often.
func QueryRow(c *sqlite.Conn, sql string, args ...any) *Row {
	stmt, err := c.Prepare(sql)
	if err != nil {
		return &Row{err: fmt.Errorf("QueryRow: %w", err)}
	}
	return firstRow(stmt, true, args)
}

// Query runs sql once on c, without caching the statement.
// The statement is finalized by Rows.Close.
func Query(c *sqlite.Conn, sql string, args ...any) (*Rows, error) {
	stmt, err := c.Prepare(sql)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}
	return &Rows{cur: bind(stmt, args), oneOff: true}, nil
}

// Exec runs a cached statement that returns no rows.
func (tx *Tx) Exec(sql string, args ...any) error {
	_, err := tx.ExecRes(sql, args...)
	return err
}

// ExecRes is Exec that also reports the number of rows changed.
func (tx *Tx) ExecRes(sql string, args ...any) (rowsAffected int64, err error) {
	res, err := tx.Prepare(sql).Exec(bindArgs(args)...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected, nil
}

// QueryRow runs a cached statement and returns its first row.
func (rx *Rx) QueryRow(sql string, args ...any) *Row {
	return firstRow(rx.Prepare(sql), false, args)
}

// Query runs a cached statement. Call Rows.Close when done.
func (rx *Rx) Query(sql string, args ...any) (*Rows, error) {
	return &Rows{cur: bind(rx.Prepare(sql), args)}, nil
}

// release readies stmt for its next use, or finalizes a one-off.
func release(stmt *sqlite.Stmt, oneOff bool) error {
	err := stmt.Reset()
	if cerr := stmt.ClearBindings(); err == nil {
		err = cerr
	}
	if oneOff {
		if cerr := stmt.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func firstRow(stmt *sqlite.Stmt, oneOff bool, args []any) *Row {
	cur := bind(stmt, args)
	row, err := cur.TryNext()
	switch {
	case err != nil:
		err = fmt.Errorf("QueryRow: %w", err)
	case row == nil:
		err = sqlpkg.ErrNoRows
	default:
		return &Row{stmt: stmt, row: row, oneOff: oneOff}
	}
	release(stmt, oneOff)
	return &Row{err: err}
}

// Rows iterates over a query result, like sql.Rows.
type Rows struct {
	cur    *sqlite.Cursor
	row    *sqlite.Row
	err    error
	oneOff bool
}

func (rs *Rows) Next() bool {
	if rs.err != nil || rs.cur == nil {
		return false
	}
	rs.row, rs.err = rs.cur.TryNext()
	if rs.err != nil {
		rs.err = fmt.Errorf("Rows.Next: %w", rs.err)
	}
	return rs.row != nil
}

func (rs *Rows) Err() error { return rs.err }

func (rs *Rows) Scan(dest ...any) error {
	switch {
	case rs.err != nil:
		return rs.err
	case rs.row == nil:
		return fmt.Errorf("Rows.Scan: called without a successful Next")
	}
	return rs.row.Scan(scanDest(dest)...)
}

// Close releases the statement. It is safe to call more than once.
func (rs *Rows) Close() error {
	if rs.cur == nil {
		return nil
	}
	err := release(rs.cur.Stmt(), rs.oneOff)
	rs.cur, rs.row = nil, nil
	if err != nil {
		return fmt.Errorf("Rows.Close: %w", err)
	}
	return nil
}

// Row is the first row of a query, like sql.Row.
// Scan or Err must be called to release its statement.
type Row struct {
	stmt   *sqlite.Stmt
	row    *sqlite.Row
	err    error
	oneOff bool
}

func (r *Row) Err() error { return r.err }

func (r *Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	err := r.row.Scan(scanDest(dest)...)
	release(r.stmt, r.oneOff)
	return err
}

// scanner adapts an sql.Scanner, such as *sql.NullInt64, to
// sqlite.ValueDecoder.
type scanner struct{ s sqlpkg.Scanner }

func (sc scanner) DecodeValue(v sqlite.Value) error { return sc.s.Scan(v.Any()) }

// rawBytes takes text or blob columns, as sql.RawBytes does.
type rawBytes struct{ b *sqlpkg.RawBytes }

func (rb rawBytes) DecodeValue(v sqlite.Value) error {
	switch v.Type() {
	case sqlite.TypeNull:
		*rb.b = nil
	case sqlite.TypeBinary:
		b, _ := v.Bytes()
		*rb.b = b
	case sqlite.TypeString:
		s, _ := v.Text()
		*rb.b = sqlpkg.RawBytes(s)
	default:
		*rb.b = sqlpkg.RawBytes(v.String())
	}
	return nil
}

func scanDest(dest []any) []any {
	out := make([]any, len(dest))
	for i, d := range dest {
		switch d := d.(type) {
		case *sqlpkg.RawBytes:
			out[i] = rawBytes{d}
		case sqlpkg.Scanner:
			out[i] = scanner{d}
		default:
			out[i] = d
		}
	}
	return out
}

// bind resets stmt, binds args and returns a fresh cursor.
// Bind errors panic: a query and its arguments come from the program,
// and the stack shows which one is wrong.
func bind(stmt *sqlite.Stmt, args []any) *sqlite.Cursor {
	if err := release(stmt, false); err != nil {
		panic(err)
	}
	if err := stmt.BindAll(bindArgs(args)...); err != nil {
		panic(err)
	}
	return stmt.Cursor()
}

// bindArgs resolves the driver.Valuer and pointer arguments that
// database/sql accepts and sqlite.ValueOf does not.
func bindArgs(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		if v, ok := arg.(driver.Valuer); ok {
			dv, err := v.Value()
			if err != nil {
				panic(fmt.Errorf("sqlitepool: arg %d: driver.Valuer: %w", i+1, err))
			}
			arg = dv
		}
		if rv := reflect.ValueOf(arg); rv.Kind() == reflect.Pointer {
			arg = nil
			if !rv.IsNil() {
				arg = rv.Elem().Interface()
			}
		}
		out[i] = arg
	}
	return out
}
