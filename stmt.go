package sqlite

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/corelite/sqlite/sqliteh"
)

// State is the position of a statement in its step cycle.
type State int

const (
	StateReady  State = iota // not stepped since prepare or reset
	StateRow                 // a row is available
	StateDone                // no more rows
	StateFailed              // a step failed; see Cursor.TryNext
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateRow:
		return "Row"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Result reports the effect of Stmt.Exec.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// Stmt is a prepared statement. It belongs to the Conn that prepared it
// and must not be used after that Conn is closed.
//
// A Stmt must not be stepped by two goroutines at once.
type Stmt struct {
	conn    *Conn
	stmt    sqliteh.Stmt
	query   string
	prepCtx context.Context // the context provided to prepare, for tracing
	closed  atomic.Bool

	state State
	err   error  // step error, when state == StateFailed
	gen   uint64 // advanced by every step, reset, and bind
	start time.Time

	colTypes []sqliteh.ColumnType // filled by each step
	colNames []string             // filled on first use
	colIndex map[string]int
}

func (s *Stmt) reserr(loc string, err error) error {
	return reserr(s.conn.db, loc, s.query, err)
}

func (s *Stmt) check(loc string) error {
	if s.closed.Load() || s.conn.closed.Load() {
		UsesAfterClose.Add(loc, 1)
		return ErrClosed
	}
	return nil
}

// Close finalizes the statement. Closing a closed statement, or one whose
// Conn is closed, does nothing.
func (s *Stmt) Close() error {
	if s.conn.closed.Load() {
		UsesAfterClose.Add("Stmt.Close_conn", 1)
		return nil
	}
	if !s.closed.CompareAndSwap(false, true) {
		UsesAfterClose.Add("Stmt.Close", 1)
		return nil
	}
	s.conn.forget(s)
	if s.state == StateRow {
		s.traceEnd(nil)
	}
	err := s.stmt.Finalize()
	if s.state == StateFailed {
		// Finalize repeats the step error, which was already reported.
		return nil
	}
	return s.reserr("Stmt.Close", err)
}

// SQL is the text the statement was prepared from.
func (s *Stmt) SQL() string { return s.query }

// ExpandedSQL is the statement text with bound parameters substituted.
func (s *Stmt) ExpandedSQL() string {
	if s.check("Stmt.ExpandedSQL") != nil {
		return ""
	}
	return s.stmt.ExpandedSQL()
}

// ReadOnly reports whether the statement makes no direct changes to the
// database.
func (s *Stmt) ReadOnly() bool {
	if s.check("Stmt.ReadOnly") != nil {
		return false
	}
	return s.stmt.ReadOnly()
}

// State reports where the statement is in its step cycle.
func (s *Stmt) State() State { return s.state }

// ParameterCount is the largest parameter index in the statement.
func (s *Stmt) ParameterCount() int {
	if s.check("Stmt.ParameterCount") != nil {
		return 0
	}
	return s.stmt.BindParameterCount()
}

// ParameterName is the name of parameter i, including its prefix,
// or "" for a nameless "?" parameter.
func (s *Stmt) ParameterName(i int) string {
	if s.check("Stmt.ParameterName") != nil {
		return ""
	}
	return s.stmt.BindParameterName(i)
}

// ParameterIndex resolves a parameter name to its 1-based index.
// The name may carry its ':', '@' or '$' prefix; without one, each
// prefix is tried in turn. It returns 0 if there is no such parameter.
func (s *Stmt) ParameterIndex(name string) int {
	if s.check("Stmt.ParameterIndex") != nil {
		return 0
	}
	return s.paramIndex(name)
}

func (s *Stmt) paramIndex(name string) int {
	if name == "" {
		return 0
	}
	switch name[0] {
	case ':', '@', '$', '?':
		return s.stmt.BindParameterIndex(name)
	}
	return s.stmt.BindParameterIndexSearch(name)
}

// Bind binds v to the 1-based parameter index i.
// Any Go value accepted by ValueOf may be bound.
//
// A statement that has been stepped must be reset before it is rebound;
// otherwise SQLite reports SQLITE_MISUSE.
func (s *Stmt) Bind(i int, v any) error {
	if err := s.check("Stmt.Bind"); err != nil {
		return err
	}
	if n := s.stmt.BindParameterCount(); i < 1 || i > n {
		return &Error{
			Code:  sqliteh.SQLITE_RANGE,
			Loc:   "Bind",
			Query: s.query,
			Msg:   "parameter index " + strconv.Itoa(i) + " out of range [1," + strconv.Itoa(n) + "]",
		}
	}
	return s.bind(i, v)
}

// BindName binds v to the named parameter.
func (s *Stmt) BindName(name string, v any) error {
	if err := s.check("Stmt.BindName"); err != nil {
		return err
	}
	i := s.paramIndex(name)
	if i == 0 {
		return &Error{
			Code:  sqliteh.SQLITE_RANGE,
			Loc:   "Bind",
			Query: s.query,
			Msg:   "unknown parameter name " + strconv.Quote(name),
		}
	}
	return s.bind(i, v)
}

// BindAll binds values to parameters 1, 2, ... in order.
func (s *Stmt) BindAll(values ...any) error {
	for i, v := range values {
		if err := s.Bind(i+1, v); err != nil {
			return err
		}
	}
	return nil
}

// BindMap binds each value in m to the parameter with that name.
// Names are bound in sorted order, so the first error is deterministic.
func (s *Stmt) BindMap(m map[string]any) error {
	for _, name := range slices.Sorted(maps.Keys(m)) {
		if err := s.BindName(name, m[name]); err != nil {
			return err
		}
	}
	return nil
}

// ClearBindings sets all parameters to NULL.
func (s *Stmt) ClearBindings() error {
	if err := s.check("Stmt.ClearBindings"); err != nil {
		return err
	}
	s.gen++
	return s.reserr("ClearBindings", s.stmt.ClearBindings())
}

func (s *Stmt) bind(i int, v any) error {
	val, err := ValueOf(v)
	if err != nil {
		if e, ok := err.(*Error); ok {
			e.Query = s.query
			e.Msg = "parameter " + strconv.Itoa(i) + ": " + e.Msg
		}
		return err
	}
	s.gen++
	switch val.typ {
	case TypeInteger:
		err = s.stmt.BindInt64(i, val.i)
	case TypeFloat:
		err = s.stmt.BindDouble(i, val.f)
	case TypeString:
		err = s.stmt.BindText64(i, val.s)
	case TypeBinary:
		err = s.stmt.BindBlob64(i, val.b)
	default:
		err = s.stmt.BindNull(i)
	}
	return s.reserr("Bind", err)
}

// Reset rewinds the statement so it can be stepped again from the start.
// Bindings are kept. Reset is permitted in every state.
func (s *Stmt) Reset() error {
	if err := s.check("Stmt.Reset"); err != nil {
		return err
	}
	s.gen++
	prev := s.state
	s.state, s.err = StateReady, nil
	if prev == StateRow {
		s.traceEnd(nil)
	}
	err := s.stmt.Reset()
	if prev == StateFailed {
		// sqlite3_reset repeats the error of the failed step.
		return nil
	}
	return s.reserr("Reset", err)
}

// step advances the state machine by one transition.
// Done and Failed are sticky until Reset.
func (s *Stmt) step() (bool, error) {
	switch s.state {
	case StateDone:
		return false, nil
	case StateFailed:
		return false, s.err
	case StateReady:
		if s.conn.tracer != nil {
			s.start = time.Now()
		}
	}
	s.gen++
	if s.colTypes == nil {
		s.colTypes = make([]sqliteh.ColumnType, s.stmt.ColumnCount())
	}
	row, err := s.stmt.Step(s.colTypes)
	if err != nil {
		s.state, s.err = StateFailed, s.reserr("Step", err)
		s.traceEnd(s.err)
		return false, s.err
	}
	if !row {
		s.state = StateDone
		s.traceEnd(nil)
		return false, nil
	}
	s.state = StateRow
	return true, nil
}

func (s *Stmt) traceEnd(err error) {
	if s.start.IsZero() {
		return
	}
	d := time.Since(s.start)
	s.start = time.Time{}
	s.conn.traceQuery(s.prepCtx, s.query, d, err)
}

// Exec runs the statement to its first row or completion with args bound
// to parameters 1, 2, ..., then resets it and clears the bindings.
func (s *Stmt) Exec(args ...any) (Result, error) {
	if err := s.check("Stmt.Exec"); err != nil {
		return Result{}, err
	}
	if s.state != StateReady {
		if err := s.Reset(); err != nil {
			return Result{}, err
		}
	}
	if err := s.BindAll(args...); err != nil {
		return Result{}, err
	}
	return s.execOnce("Exec")
}

func (s *Stmt) execOnce(loc string) (Result, error) {
	s.gen++
	tracer := s.conn.tracer
	if tracer != nil {
		s.stmt.StartTimer()
	}
	_, lastInsertID, changes, d, err := s.stmt.StepResult()
	s.state, s.err = StateReady, nil // StepResult resets the statement
	err = s.reserr(loc, err)
	if tracer != nil {
		tracer.Query(s.prepCtx, s.conn.id, s.query, d, err)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{LastInsertID: lastInsertID, RowsAffected: changes}, nil
}

// Cursor returns a cursor that steps through the statement's rows.
func (s *Stmt) Cursor() *Cursor { return &Cursor{s: s} }

// ColumnCount is the number of columns in the statement's result.
func (s *Stmt) ColumnCount() int {
	if s.check("Stmt.ColumnCount") != nil {
		return 0
	}
	return s.stmt.ColumnCount()
}

// ColumnNames returns the result column names in declared order.
// The returned slice must not be modified.
func (s *Stmt) ColumnNames() []string {
	if s.check("Stmt.ColumnNames") != nil {
		return nil
	}
	if s.colNames == nil {
		s.colNames = make([]string, s.stmt.ColumnCount())
		for i := range s.colNames {
			s.colNames[i] = s.stmt.ColumnName(i)
		}
	}
	return s.colNames
}

// ColumnName is the name of column i, or "" if i is out of range.
func (s *Stmt) ColumnName(i int) string {
	names := s.ColumnNames()
	if i < 0 || i >= len(names) {
		return ""
	}
	return names[i]
}

// ColumnIndex returns the index of the first column called name.
func (s *Stmt) ColumnIndex(name string) (int, bool) {
	if s.colIndex == nil {
		names := s.ColumnNames()
		s.colIndex = make(map[string]int, len(names))
		for i := len(names) - 1; i >= 0; i-- {
			s.colIndex[names[i]] = i
		}
	}
	i, ok := s.colIndex[name]
	return i, ok
}

// ColumnType reports the type of column i in the current row.
//
// Before a row has been stepped to, SQLite has no value to inspect and
// the type is TypeNull, whatever the column's declaration.
func (s *Stmt) ColumnType(i int) (Type, error) {
	if err := s.check("Stmt.ColumnType"); err != nil {
		return TypeNull, err
	}
	if err := s.checkColumn(i); err != nil {
		return TypeNull, err
	}
	return typeOf(s.columnType(i)), nil
}

func (s *Stmt) columnType(i int) sqliteh.ColumnType {
	if s.state == StateRow && i < len(s.colTypes) {
		return s.colTypes[i]
	}
	return s.stmt.ColumnType(i)
}

// ColumnDeclType is the declared type of column i in its table, or ""
// for an expression.
func (s *Stmt) ColumnDeclType(i int) string {
	if s.check("Stmt.ColumnDeclType") != nil {
		return ""
	}
	return s.stmt.ColumnDeclType(i)
}

func (s *Stmt) checkColumn(i int) error {
	if n := s.stmt.ColumnCount(); i < 0 || i >= n {
		return &Error{
			Code:  sqliteh.SQLITE_RANGE,
			Loc:   "Read",
			Query: s.query,
			Msg:   "column index " + strconv.Itoa(i) + " out of range [0," + strconv.Itoa(n) + ")",
		}
	}
	return nil
}

// ColumnRef names a result column by 0-based index or by name.
type ColumnRef interface {
	int | string
}

func columnIndex[C ColumnRef](s *Stmt, col C) (int, error) {
	switch c := any(col).(type) {
	case int:
		return c, s.checkColumn(c)
	case string:
		if i, ok := s.ColumnIndex(c); ok {
			return i, nil
		}
		return 0, &Error{
			Code:  sqliteh.SQLITE_RANGE,
			Loc:   "Read",
			Query: s.query,
			Msg:   "no column named " + strconv.Quote(c),
		}
	}
	panic("unreachable")
}
