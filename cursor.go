package sqlite

import "iter"

// Cursor steps through the rows of a Stmt.
//
//	Ready --step--> Row      a row is available
//	Ready/Row --step--> Done no more rows
//	Ready/Row --step--> Failed
//	any --Reset/Bind--> Ready
//
// Done and Failed are sticky: TryNext keeps reporting no row, or the
// same error, until the cursor is reset.
type Cursor struct {
	s *Stmt
}

// TryNext steps to the next row. It returns (row, nil) when a row is
// available, (nil, nil) when the statement is done, and (nil, err) when
// a step failed.
//
// The row is valid until the next call to TryNext, Reset, or Bind.
func (c *Cursor) TryNext() (*Row, error) {
	if err := c.s.check("Cursor.TryNext"); err != nil {
		return nil, err
	}
	ok, err := c.s.step()
	if err != nil || !ok {
		return nil, err
	}
	return &Row{s: c.s, gen: c.s.gen}, nil
}

// All returns an iterator over the remaining rows. It stops after the
// first error, which it yields with a nil row.
//
// The sequence is single-pass: once exhausted, ranging over it again
// yields nothing until the cursor is Reset.
func (c *Cursor) All() iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		for {
			row, err := c.TryNext()
			if err != nil {
				yield(nil, err)
				return
			}
			if row == nil || !yield(row, nil) {
				return
			}
		}
	}
}

// State reports where the cursor is in its step cycle.
func (c *Cursor) State() State { return c.s.state }

// Stmt is the statement the cursor steps.
func (c *Cursor) Stmt() *Stmt { return c.s }

// Reset rewinds the cursor to before the first row. Bindings are kept.
func (c *Cursor) Reset() error { return c.s.Reset() }

// Bind resets the cursor, clears the bindings, and binds values to
// parameters 1, 2, ... in order. It returns c for chaining:
//
//	for row, err := range cur.Bind(42).All() { ... }
//
// A bind error is reported by the next TryNext.
func (c *Cursor) Bind(values ...any) *Cursor {
	c.rebind(func() error { return c.s.BindAll(values...) })
	return c
}

// BindMap is Bind with named parameters.
func (c *Cursor) BindMap(m map[string]any) *Cursor {
	c.rebind(func() error { return c.s.BindMap(m) })
	return c
}

func (c *Cursor) rebind(bind func() error) {
	s := c.s
	err := s.Reset()
	if err == nil {
		err = s.ClearBindings()
	}
	if err == nil {
		err = bind()
	}
	if err != nil && s.check("Cursor.Bind") == nil {
		s.state, s.err = StateFailed, err
	}
}

// ColumnCount is the number of columns in each row.
func (c *Cursor) ColumnCount() int { return c.s.ColumnCount() }

// ColumnName is the name of column i.
func (c *Cursor) ColumnName(i int) string { return c.s.ColumnName(i) }

// ColumnNames returns the column names in declared order.
func (c *Cursor) ColumnNames() []string { return c.s.ColumnNames() }

// ColumnIndex returns the index of the column called name.
func (c *Cursor) ColumnIndex(name string) (int, bool) { return c.s.ColumnIndex(name) }

// ColumnType reports the type of column i in the current row.
// Before the first row it is TypeNull. See Stmt.ColumnType.
func (c *Cursor) ColumnType(i int) (Type, error) { return c.s.ColumnType(i) }
