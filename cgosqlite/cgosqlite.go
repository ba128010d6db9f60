package cgosqlite

// The engine is the system libsqlite3 (or libsqlcipher with the
// sqlcipher build tag), located with pkg-config. See link.go.
//
// Static helpers below exist where a single Go->C transition can do
// the work of several C calls, or where a C function pointer is needed.
// The Go side of each callback lives in callbacks.go, which may only
// carry declarations in its preamble because it uses //export.

// #include <stdint.h>
// #include <stdlib.h>
// #include <string.h>
// #include <sqlite3.h>
//
// extern int goBusyHandler(uintptr_t handle, int count);
// extern int goExecRow(uintptr_t handle, int ncol, char** values, char** names);
//
// static int busy_trampoline(void* arg, int count) {
// 	return goBusyHandler((uintptr_t)arg, count);
// }
//
// static int set_busy_handler(sqlite3* db, uintptr_t handle) {
// 	if (handle == 0) {
// 		return sqlite3_busy_handler(db, NULL, NULL);
// 	}
// 	return sqlite3_busy_handler(db, busy_trampoline, (void*)handle);
// }
//
// static int exec_trampoline(void* arg, int ncol, char** values, char** names) {
// 	return goExecRow((uintptr_t)arg, ncol, values, names);
// }
//
// static int exec_with_callback(sqlite3* db, const char* sql, uintptr_t handle) {
// 	if (handle == 0) {
// 		return sqlite3_exec(db, sql, NULL, NULL, NULL);
// 	}
// 	return sqlite3_exec(db, sql, exec_trampoline, (void*)handle, NULL);
// }
//
// static int bind_text64(sqlite3_stmt* stmt, int col, _GoString_ s) {
// 	size_t n = _GoStringLen(s);
// 	const char* p = n ? _GoStringPtr(s) : "";
// 	return sqlite3_bind_text64(stmt, col, p, n, SQLITE_TRANSIENT, SQLITE_UTF8);
// }
//
// static int bind_blob64(sqlite3_stmt* stmt, int col, const void* p, sqlite3_uint64 n) {
// 	return sqlite3_bind_blob64(stmt, col, p, n, SQLITE_TRANSIENT);
// }
//
// static int bind_parameter_index(sqlite3_stmt* stmt, char prefix, _GoString_ name) {
// 	size_t n = _GoStringLen(name);
// 	size_t off = prefix ? 1 : 0;
// 	char buf[128];
// 	char* s = buf;
// 	if (n + off + 1 > sizeof(buf)) {
// 		s = malloc(n + off + 1);
// 		if (s == NULL) {
// 			return 0;
// 		}
// 	}
// 	if (prefix) {
// 		s[0] = prefix;
// 	}
// 	if (n) {
// 		memcpy(s + off, _GoStringPtr(name), n);
// 	}
// 	s[n + off] = 0;
// 	int idx = sqlite3_bind_parameter_index(stmt, s);
// 	if (s != buf) {
// 		free(s);
// 	}
// 	return idx;
// }
//
// static int step_types(sqlite3_stmt* stmt, unsigned char* types, int n) {
// 	int res = sqlite3_step(stmt);
// 	if (res == SQLITE_ROW && n > 0) {
// 		int count = sqlite3_column_count(stmt);
// 		for (int i = 0; i < n; i++) {
// 			types[i] = i < count ? (unsigned char)sqlite3_column_type(stmt, i) : 0;
// 		}
// 	}
// 	return res;
// }
//
// static int step_result(sqlite3_stmt* stmt, sqlite3_int64* rowid, sqlite3_int64* changes) {
// 	sqlite3* db = sqlite3_db_handle(stmt);
// 	int res = sqlite3_step(stmt);
// 	*rowid = sqlite3_last_insert_rowid(db);
// 	*changes = sqlite3_changes(db);
// 	sqlite3_reset(stmt);
// 	sqlite3_clear_bindings(stmt);
// 	return res;
// }
//
// static int reset_and_clear(sqlite3_stmt* stmt) {
// 	int res = sqlite3_reset(stmt);
// 	int res2 = sqlite3_clear_bindings(stmt);
// 	return res != SQLITE_OK ? res : res2;
// }
//
// static int deserialize_copy(sqlite3* db, const char* schema, const void* data, sqlite3_int64 n, int readonly) {
// 	unsigned char* buf = sqlite3_malloc64(n > 0 ? n : 1);
// 	if (buf == NULL) {
// 		return SQLITE_NOMEM;
// 	}
// 	if (n > 0) {
// 		memcpy(buf, data, n);
// 	}
// 	unsigned int flags = SQLITE_DESERIALIZE_FREEONCLOSE;
// 	flags |= readonly ? SQLITE_DESERIALIZE_READONLY : SQLITE_DESERIALIZE_RESIZEABLE;
// 	return sqlite3_deserialize(db, schema, buf, n, n, flags);
// }
import "C"
import (
	"bytes"
	"runtime/cgo"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/corelite/sqlite/sqliteh"
)

func init() {
	C.sqlite3_initialize()
}

// DB implements sqliteh.DB.
type DB struct {
	db   *C.sqlite3
	busy atomic.Pointer[busyHandler]
}

// Stmt implements sqliteh.Stmt.
type Stmt struct {
	db    *DB
	stmt  *C.sqlite3_stmt
	start time.Time
	types []byte // scratch space for Step
}

// panicValue carries a recovered panic out of a C callback.
type panicValue struct{ v any }

type busyHandler struct {
	fn       sqliteh.BusyFunc
	handle   cgo.Handle
	panicked atomic.Pointer[panicValue]
}

// Open is sqlite3_open_v2 with extended result codes enabled.
// A failed open can still return a DB, which must be closed.
func Open(filename string, flags sqliteh.OpenFlags, vfs string) (*DB, error) {
	cfilename := C.CString(filename)
	defer C.free(unsafe.Pointer(cfilename))

	cvfs := (*C.char)(nil)
	if vfs != "" {
		cvfs = C.CString(vfs)
		defer C.free(unsafe.Pointer(cvfs))
	}

	var cdb *C.sqlite3
	res := C.sqlite3_open_v2(cfilename, &cdb, C.int(flags), cvfs)
	if cdb == nil {
		if res == C.SQLITE_OK {
			res = C.SQLITE_NOMEM
		}
		return nil, errCode(res)
	}
	C.sqlite3_extended_result_codes(cdb, 1)
	return &DB{db: cdb}, errCode(res)
}

// Close removes any busy handler, then closes the connection.
func (db *DB) Close() error {
	db.BusyHandler(nil)
	res := C.sqlite3_close(db.db)
	return errCode(res)
}

func (db *DB) ErrMsg() string {
	return C.GoString(C.sqlite3_errmsg(db.db))
}

func (db *DB) Changes() int {
	return int(C.sqlite3_changes(db.db))
}

func (db *DB) TotalChanges() int {
	return int(C.sqlite3_total_changes(db.db))
}

func (db *DB) ExtendedErrCode() sqliteh.Code {
	return sqliteh.Code(C.sqlite3_extended_errcode(db.db))
}

func (db *DB) LastInsertRowid() int64 {
	return int64(C.sqlite3_last_insert_rowid(db.db))
}

func (db *DB) Prepare(query string, prepFlags sqliteh.PrepareFlags) (stmt sqliteh.Stmt, remainingQuery string, err error) {
	csql := C.CString(query)
	defer C.free(unsafe.Pointer(csql))

	var cstmt *C.sqlite3_stmt
	var csqlTail *C.char
	res := C.sqlite3_prepare_v3(db.db, csql, C.int(len(query))+1, C.uint(prepFlags), &cstmt, &csqlTail)
	db.rethrow()
	if err := errCode(res); err != nil {
		return nil, "", err
	}
	remainingQuery = query[len(query)-int(C.strlen(csqlTail)):]
	if cstmt == nil {
		// Empty statement or only a comment.
		return nil, remainingQuery, &sqliteh.MsgError{
			Code: sqliteh.ErrCode(sqliteh.SQLITE_MISUSE),
			Msg:  "no SQL statement",
		}
	}
	return &Stmt{db: db, stmt: cstmt}, remainingQuery, nil
}

// Exec runs query with sqlite3_exec. If fn is non-nil it is called
// with each result row. The column values point into memory owned by
// SQLite and are only valid during the call.
// If fn returns false, execution stops and Exec returns nil.
// If fn panics, execution is aborted and the panic is re-raised
// once control is back in Go.
func (db *DB) Exec(query string, fn func(cols []sqliteh.ExecColumn) bool) error {
	csql := C.CString(query)
	defer C.free(unsafe.Pointer(csql))

	var st *execState
	var h cgo.Handle
	if fn != nil {
		st = &execState{fn: fn}
		h = cgo.NewHandle(st)
		defer h.Delete()
	}
	res := C.exec_with_callback(db.db, csql, C.uintptr_t(h))
	db.rethrow()
	if st != nil {
		if st.panicked != nil {
			panic(st.panicked.v)
		}
		if st.stopped && res == C.SQLITE_ABORT {
			return nil
		}
	}
	return errCode(res)
}

// BusyHandler installs fn. A nil fn removes the handler. An existing
// handler is detached from
// the connection and released before fn is installed, so C never holds
// a reference to a released handler.
//
// A panic in fn is recovered, reported to SQLite as "stop retrying",
// and re-raised by the Step, Exec, or Prepare call that was blocked.
func (db *DB) BusyHandler(fn sqliteh.BusyFunc) error {
	if old := db.busy.Swap(nil); old != nil {
		res := C.set_busy_handler(db.db, 0)
		old.handle.Delete()
		if err := errCode(res); err != nil {
			return err
		}
	}
	if fn == nil {
		return nil
	}
	bh := &busyHandler{fn: fn}
	bh.handle = cgo.NewHandle(bh)
	if err := errCode(C.set_busy_handler(db.db, C.uintptr_t(bh.handle))); err != nil {
		bh.handle.Delete()
		return err
	}
	db.busy.Store(bh)
	return nil
}

// BusyTimeout replaces any handler installed with BusyHandler.
func (db *DB) BusyTimeout(d time.Duration) {
	if old := db.busy.Swap(nil); old != nil {
		C.set_busy_handler(db.db, 0)
		old.handle.Delete()
	}
	C.sqlite3_busy_timeout(db.db, C.int(d/time.Millisecond))
}

// rethrow re-raises a panic recovered inside the busy handler.
func (db *DB) rethrow() {
	bh := db.busy.Load()
	if bh == nil {
		return
	}
	if p := bh.panicked.Swap(nil); p != nil {
		panic(p.v)
	}
}

func (db *DB) Interrupt() {
	C.sqlite3_interrupt(db.db)
}

func (db *DB) Checkpoint(dbName string, mode sqliteh.Checkpoint) (numFrames, numFramesCheckpointed int, err error) {
	var cDB *C.char
	if dbName != "" {
		cDB = C.CString(dbName)
		defer C.free(unsafe.Pointer(cDB))
	}
	var nLog, nCkpt C.int
	res := C.sqlite3_wal_checkpoint_v2(db.db, cDB, C.int(mode), &nLog, &nCkpt)
	return int(nLog), int(nCkpt), errCode(res)
}

func (db *DB) TxnState(schema string) sqliteh.TxnState {
	var cSchema *C.char
	if schema != "" {
		cSchema = C.CString(schema)
		defer C.free(unsafe.Pointer(cSchema))
	}
	return sqliteh.TxnState(C.sqlite3_txn_state(db.db, cSchema))
}

// Serialize returns a Go-owned copy of the schema's database image.
func (db *DB) Serialize(schema string) ([]byte, error) {
	if schema == "" {
		schema = "main"
	}
	cSchema := C.CString(schema)
	defer C.free(unsafe.Pointer(cSchema))

	var size C.sqlite3_int64
	p := C.sqlite3_serialize(db.db, cSchema, &size, 0)
	if p == nil {
		switch {
		case size == 0:
			return []byte{}, nil
		case size < 0:
			return nil, errCode(C.SQLITE_ERROR)
		default:
			return nil, errCode(C.SQLITE_NOMEM)
		}
	}
	defer C.sqlite3_free(unsafe.Pointer(p))
	return bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(p)), int(size))), nil
}

// Deserialize copies data into memory owned by SQLite, freed when the
// connection closes.
func (db *DB) Deserialize(schema string, data []byte, readOnly bool) error {
	if schema == "" {
		schema = "main"
	}
	cSchema := C.CString(schema)
	defer C.free(unsafe.Pointer(cSchema))

	var p unsafe.Pointer
	if len(data) > 0 {
		p = unsafe.Pointer(&data[0])
	}
	ro := C.int(0)
	if readOnly {
		ro = 1
	}
	return errCode(C.deserialize_copy(db.db, cSchema, p, C.sqlite3_int64(len(data)), ro))
}

func (db *DB) EnableLoadExtension(on bool) error {
	onoff := C.int(0)
	if on {
		onoff = 1
	}
	return errCode(C.sqlite3_enable_load_extension(db.db, onoff))
}

// LoadExtension loads file. An empty entryPoint lets SQLite derive
// it from the file name.
func (db *DB) LoadExtension(file, entryPoint string) error {
	cfile := C.CString(file)
	defer C.free(unsafe.Pointer(cfile))
	var cproc *C.char
	if entryPoint != "" {
		cproc = C.CString(entryPoint)
		defer C.free(unsafe.Pointer(cproc))
	}
	var cerr *C.char
	res := C.sqlite3_load_extension(db.db, cfile, cproc, &cerr)
	if cerr != nil {
		msg := C.GoString(cerr)
		C.sqlite3_free(unsafe.Pointer(cerr))
		if res != C.SQLITE_OK {
			return &sqliteh.MsgError{Code: sqliteh.ErrCode(res), Msg: msg}
		}
	}
	return errCode(res)
}

func (stmt *Stmt) DBHandle() sqliteh.DB {
	return stmt.db
}

func (stmt *Stmt) SQL() string {
	return C.GoString(C.sqlite3_sql(stmt.stmt))
}

func (stmt *Stmt) ExpandedSQL() string {
	cstr := C.sqlite3_expanded_sql(stmt.stmt)
	if cstr == nil {
		return ""
	}
	defer C.sqlite3_free(unsafe.Pointer(cstr))
	return C.GoString(cstr)
}

func (stmt *Stmt) ReadOnly() bool {
	return C.sqlite3_stmt_readonly(stmt.stmt) != 0
}

// StartTimer starts recording elapsed duration.
func (stmt *Stmt) StartTimer() {
	stmt.start = time.Now()
}

func (stmt *Stmt) elapsed() time.Duration {
	if stmt.start.IsZero() {
		return 0
	}
	d := time.Since(stmt.start)
	stmt.start = time.Time{}
	return d
}

func (stmt *Stmt) Reset() error {
	return errCode(C.sqlite3_reset(stmt.stmt))
}

// ResetAndClear reports the time elapsed since StartTimer.
func (stmt *Stmt) ResetAndClear() (time.Duration, error) {
	res := C.reset_and_clear(stmt.stmt)
	return stmt.elapsed(), errCode(res)
}

func (stmt *Stmt) Finalize() error {
	res := C.sqlite3_finalize(stmt.stmt)
	stmt.stmt = nil
	return errCode(res)
}

func (stmt *Stmt) ClearBindings() error {
	return errCode(C.sqlite3_clear_bindings(stmt.stmt))
}

func (stmt *Stmt) ColumnDatabaseName(col int) string {
	return C.GoString(C.sqlite3_column_database_name(stmt.stmt, C.int(col)))
}

func (stmt *Stmt) ColumnTableName(col int) string {
	return C.GoString(C.sqlite3_column_table_name(stmt.stmt, C.int(col)))
}

// Step reports (true, nil) for SQLITE_ROW, (false, nil) for
// SQLITE_DONE, and (false, err) otherwise.
//
// If colType is non-empty, it is filled with the column types of the
// new row in the same cgo call. Entries past the column count are zero.
func (stmt *Stmt) Step(colType []sqliteh.ColumnType) (row bool, err error) {
	var types *C.uchar
	if len(colType) > 0 {
		if cap(stmt.types) < len(colType) {
			stmt.types = make([]byte, len(colType))
		}
		stmt.types = stmt.types[:len(colType)]
		types = (*C.uchar)(unsafe.Pointer(&stmt.types[0]))
	}
	res := C.step_types(stmt.stmt, types, C.int(len(colType)))
	stmt.db.rethrow()
	switch res {
	case C.SQLITE_ROW:
		for i, t := range stmt.types[:len(colType)] {
			colType[i] = sqliteh.ColumnType(t)
		}
		return true, nil
	case C.SQLITE_DONE:
		return false, nil
	default:
		return false, errCode(res)
	}
}

// StepResult is sqlite3_step + sqlite3_last_insert_rowid + sqlite3_changes
// + sqlite3_reset + sqlite3_clear_bindings, in one cgo call.
// It reports the duration elapsed since the call to StartTimer.
//
//	For SQLITE_ROW, Step returns (true, nil).
//	For SQLITE_DONE, Step returns (false, nil).
//	For any error, Step returns (false, err).
func (stmt *Stmt) StepResult() (row bool, lastInsertRowID, changes int64, d time.Duration, err error) {
	var rowid, chng C.sqlite3_int64
	res := C.step_result(stmt.stmt, &rowid, &chng)
	stmt.db.rethrow()
	lastInsertRowID = int64(rowid)
	changes = int64(chng)
	d = stmt.elapsed()

	switch res {
	case C.SQLITE_ROW:
		return true, lastInsertRowID, changes, d, nil
	case C.SQLITE_DONE:
		return false, lastInsertRowID, changes, d, nil
	default:
		return false, lastInsertRowID, changes, d, errCode(res)
	}
}

func (stmt *Stmt) BindDouble(col int, val float64) error {
	return errCode(C.sqlite3_bind_double(stmt.stmt, C.int(col), C.double(val)))
}

func (stmt *Stmt) BindInt64(col int, val int64) error {
	return errCode(C.sqlite3_bind_int64(stmt.stmt, C.int(col), C.sqlite3_int64(val)))
}

func (stmt *Stmt) BindNull(col int) error {
	return errCode(C.sqlite3_bind_null(stmt.stmt, C.int(col)))
}

// BindText64 binds a copy of val.
func (stmt *Stmt) BindText64(col int, val string) error {
	return errCode(C.bind_text64(stmt.stmt, C.int(col), val))
}

func (stmt *Stmt) BindZeroBlob64(col int, n uint64) error {
	return errCode(C.sqlite3_bind_zeroblob64(stmt.stmt, C.int(col), C.sqlite3_uint64(n)))
}

// BindBlob64 binds a copy of val. An empty val binds a
// zero-length blob, not NULL.
func (stmt *Stmt) BindBlob64(col int, val []byte) error {
	if len(val) == 0 {
		return stmt.BindZeroBlob64(col, 0)
	}
	return errCode(C.bind_blob64(stmt.stmt, C.int(col), unsafe.Pointer(&val[0]), C.sqlite3_uint64(len(val))))
}

func (stmt *Stmt) BindParameterCount() int {
	return int(C.sqlite3_bind_parameter_count(stmt.stmt))
}

func (stmt *Stmt) BindParameterName(col int) string {
	cstr := C.sqlite3_bind_parameter_name(stmt.stmt, C.int(col))
	if cstr == nil {
		return ""
	}
	return C.GoString(cstr)
}

func (stmt *Stmt) BindParameterIndex(name string) int {
	return int(C.bind_parameter_index(stmt.stmt, 0, name))
}

// BindParameterIndexSearch tries name with each of the prefixes
// ':', '@' and '$'. The prefix is added in C without a Go allocation.
func (stmt *Stmt) BindParameterIndexSearch(name string) int {
	for _, prefix := range [...]C.char{':', '@', '$'} {
		if i := int(C.bind_parameter_index(stmt.stmt, prefix, name)); i > 0 {
			return i
		}
	}
	return 0
}

func (stmt *Stmt) ColumnCount() int {
	return int(C.sqlite3_column_count(stmt.stmt))
}

func (stmt *Stmt) ColumnName(col int) string {
	return C.GoString(C.sqlite3_column_name(stmt.stmt, C.int(col)))
}

func (stmt *Stmt) ColumnText(col int) string {
	str := (*C.char)(unsafe.Pointer(C.sqlite3_column_text(stmt.stmt, C.int(col))))
	n := C.sqlite3_column_bytes(stmt.stmt, C.int(col))
	if str == nil || n == 0 {
		return ""
	}
	return C.GoStringN(str, n)
}

// ColumnBlob aliases C memory, valid until the next call on stmt.
func (stmt *Stmt) ColumnBlob(col int) []byte {
	res := C.sqlite3_column_blob(stmt.stmt, C.int(col))
	if res == nil {
		return nil
	}
	n := int(C.sqlite3_column_bytes(stmt.stmt, C.int(col)))
	return unsafe.Slice((*byte)(res), n)
}

func (stmt *Stmt) ColumnDouble(col int) float64 {
	return float64(C.sqlite3_column_double(stmt.stmt, C.int(col)))
}

func (stmt *Stmt) ColumnInt64(col int) int64 {
	return int64(C.sqlite3_column_int64(stmt.stmt, C.int(col)))
}

func (stmt *Stmt) ColumnType(col int) sqliteh.ColumnType {
	return sqliteh.ColumnType(C.sqlite3_column_type(stmt.stmt, C.int(col)))
}

func (stmt *Stmt) ColumnDeclType(col int) string {
	cstr := C.sqlite3_column_decltype(stmt.stmt, C.int(col))
	if cstr == nil {
		return ""
	}
	return C.GoString(cstr)
}

func errCode(code C.int) error { return sqliteh.CodeAsError(sqliteh.Code(code)) }
