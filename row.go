package sqlite

import (
	"bytes"
	"fmt"
	"iter"
	"strconv"

	"github.com/corelite/sqlite/sqliteh"
	"go4.org/mem"
)

// Row is the current row of a Cursor.
//
// Columns are read from SQLite when asked for, not ahead of time.
// A Row is only valid until its cursor steps, resets, or rebinds;
// after that every read fails with ErrStaleRow.
type Row struct {
	s     *Stmt
	gen   uint64
	taken []bool // columns removed with Take
}

func (r *Row) check() error {
	if err := r.s.check("Row"); err != nil {
		return err
	}
	if r.gen != r.s.gen || r.s.state != StateRow {
		return ErrStaleRow
	}
	return nil
}

// Len is the number of columns in the row.
func (r *Row) Len() int { return r.s.ColumnCount() }

// Columns returns the column names in declared order.
func (r *Row) Columns() []string { return r.s.ColumnNames() }

// Value returns column i without conversion. The Value owns its memory.
// A column removed with Take reads as Null.
func (r *Row) Value(i int) (Value, error) {
	if err := r.check(); err != nil {
		return Null, err
	}
	if err := r.s.checkColumn(i); err != nil {
		return Null, err
	}
	return r.column(i), nil
}

// Get is Value by column name. With duplicate names the first column
// wins.
func (r *Row) Get(name string) (Value, error) {
	if err := r.check(); err != nil {
		return Null, err
	}
	i, err := columnIndex(r.s, name)
	if err != nil {
		return Null, err
	}
	return r.column(i), nil
}

func (r *Row) column(i int) Value {
	if i < len(r.taken) && r.taken[i] {
		return Null
	}
	st := r.s.stmt
	switch r.s.columnType(i) {
	case sqliteh.SQLITE_INTEGER:
		return IntegerValue(st.ColumnInt64(i))
	case sqliteh.SQLITE_FLOAT:
		return FloatValue(st.ColumnDouble(i))
	case sqliteh.SQLITE_TEXT:
		return StringValue(st.ColumnText(i))
	case sqliteh.SQLITE_BLOB:
		b := bytes.Clone(st.ColumnBlob(i))
		if b == nil {
			b = []byte{}
		}
		return BinaryValue(b)
	}
	return Null
}

// Values returns every column of the row.
func (r *Row) Values() ([]Value, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	vals := make([]Value, r.s.stmt.ColumnCount())
	for i := range vals {
		vals[i] = r.column(i)
	}
	return vals, nil
}

// All returns an iterator over (column name, value) pairs in declared
// order. It yields nothing once the row is stale.
func (r *Row) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		names := r.s.ColumnNames()
		for i, name := range names {
			if r.check() != nil {
				return
			}
			if !yield(name, r.column(i)) {
				return
			}
		}
	}
}

// RawText returns the text of column i without copying it.
// SQLite converts non-text values to text; NULL is empty.
//
// The memory belongs to SQLite and is only valid until the cursor
// steps, resets, or rebinds, or another column read converts it.
func (r *Row) RawText(i int) (mem.RO, error) {
	b, err := r.RawBytes(i)
	return mem.B(b), err
}

// RawBytes is like RawText but returns a byte slice, which must not be
// modified or retained.
func (r *Row) RawBytes(i int) ([]byte, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	if err := r.s.checkColumn(i); err != nil {
		return nil, err
	}
	if i < len(r.taken) && r.taken[i] {
		return nil, nil
	}
	return r.s.stmt.ColumnBlob(i), nil
}

// Scan decodes the leading columns of the row into dest, one pointer
// per column, following the rules of Convert.
func (r *Row) Scan(dest ...any) error {
	if err := r.check(); err != nil {
		return err
	}
	if n := r.s.stmt.ColumnCount(); len(dest) > n {
		return misuse("Scan", r.s.query, "%d destinations for %d columns", len(dest), n)
	}
	for i, d := range dest {
		if err := r.column(i).decodeInto(d); err != nil {
			return r.annotate(i, err)
		}
	}
	return nil
}

func (r *Row) annotate(i int, err error) error {
	if e, ok := err.(*Error); ok {
		e.Query = r.s.query
		e.Msg = fmt.Sprintf("column %d (%s): %s", i, strconv.Quote(r.s.ColumnName(i)), e.Msg)
	}
	return err
}

// TryRead decodes a column of r into a T, following the rules of Convert.
// col is a 0-based index or a column name.
//
//	age, err := sqlite.TryRead[float64](row, "age")
//	email, err := sqlite.TryRead[*string](row, 4) // nil if NULL
func TryRead[T any, C ColumnRef](r *Row, col C) (T, error) {
	var out T
	if err := r.check(); err != nil {
		return out, err
	}
	i, err := columnIndex(r.s, col)
	if err != nil {
		return out, err
	}
	if err := r.column(i).decodeInto(&out); err != nil {
		return out, r.annotate(i, err)
	}
	return out, nil
}

// Read is TryRead for call sites that have already checked the schema.
// It panics if the column cannot be decoded.
func Read[T any, C ColumnRef](r *Row, col C) T {
	v, err := TryRead[T](r, col)
	if err != nil {
		panic(err)
	}
	return v
}

// Take removes a column from r and returns it. Later reads of that
// column, including another Take, see Null.
func Take[C ColumnRef](r *Row, col C) (Value, error) {
	if err := r.check(); err != nil {
		return Null, err
	}
	i, err := columnIndex(r.s, col)
	if err != nil {
		return Null, err
	}
	v := r.column(i)
	if r.taken == nil {
		r.taken = make([]bool, r.s.stmt.ColumnCount())
	}
	r.taken[i] = true
	return v, nil
}
