package cgosqlite

// #include <stdint.h>
// #include <string.h>
import "C"
import (
	"runtime/cgo"
	"unsafe"

	"github.com/corelite/sqlite/sqliteh"
	"go4.org/mem"
)

//export goBusyHandler
func goBusyHandler(handle C.uintptr_t, count C.int) (ret C.int) {
	bh := cgo.Handle(handle).Value().(*busyHandler)
	defer func() {
		if r := recover(); r != nil {
			bh.panicked.Store(&panicValue{v: r})
			ret = 0
		}
	}()
	if bh.fn(int(count)) {
		return 1
	}
	return 0
}

// execState is the per-call state of DB.Exec.
type execState struct {
	fn       func([]sqliteh.ExecColumn) bool
	names    []string
	cols     []sqliteh.ExecColumn
	stopped  bool
	panicked *panicValue
}

//export goExecRow
func goExecRow(handle C.uintptr_t, ncol C.int, values, names **C.char) (ret C.int) {
	st := cgo.Handle(handle).Value().(*execState)
	defer func() {
		if r := recover(); r != nil {
			st.panicked = &panicValue{v: r}
			ret = 1
		}
	}()

	n := int(ncol)
	if len(st.names) != n {
		st.names = make([]string, n)
		st.cols = make([]sqliteh.ExecColumn, n)
	}
	// A multi-statement script can change the column names between
	// rows. Only copy a name when it differs from the cached one.
	for i, p := range unsafe.Slice(names, n) {
		b := cbytes(p)
		if string(b) != st.names[i] {
			st.names[i] = string(b)
		}
	}
	for i, p := range unsafe.Slice(values, n) {
		col := &st.cols[i]
		col.Name = st.names[i]
		if p == nil {
			col.Value = mem.RO{}
			col.Null = true
			continue
		}
		col.Value = mem.B(cbytes(p))
		col.Null = false
	}
	if !st.fn(st.cols) {
		st.stopped = true
		return 1
	}
	return 0
}

// cbytes aliases a NUL-terminated C string without copying.
func cbytes(p *C.char) []byte {
	if p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), int(C.strlen(p)))
}
