package cgosqlite

// #include <stdlib.h>
// #include <sqlite3.h>
import "C"
import (
	"unsafe"

	"github.com/corelite/sqlite/sqliteh"
)

// Backup is an sqlite3_backup* object.
// https://sqlite.org/c3ref/backup.html
type Backup struct {
	b *C.sqlite3_backup
}

// Backup is sqlite3_backup_init, copying srcName of src into dstName of db.
// src must also be a *DB from this package.
// https://sqlite.org/c3ref/backup_finish.html#sqlite3backupinit
func (db *DB) Backup(dstName string, src sqliteh.DB, srcName string) (sqliteh.Backup, error) {
	s, ok := src.(*DB)
	if !ok {
		return nil, errCode(C.SQLITE_MISUSE)
	}
	cDst := C.CString(dstName)
	defer C.free(unsafe.Pointer(cDst))
	cSrc := C.CString(srcName)
	defer C.free(unsafe.Pointer(cSrc))

	b := C.sqlite3_backup_init(db.db, cDst, s.db, cSrc)
	if b == nil {
		// The error is recorded on the destination connection.
		return nil, errCode(C.sqlite3_extended_errcode(db.db))
	}
	return &Backup{b: b}, nil
}

// Step is sqlite3_backup_step.
// A negative numPages copies everything that remains.
//
// SQLITE_BUSY and SQLITE_LOCKED are reported with more=true: the step
// can be retried later.
//
// https://sqlite.org/c3ref/backup_finish.html#sqlite3backupstep
func (b *Backup) Step(numPages int) (more bool, err error) {
	res := C.sqlite3_backup_step(b.b, C.int(numPages))
	switch res {
	case C.SQLITE_OK:
		return true, nil
	case C.SQLITE_DONE:
		return false, nil
	}
	switch sqliteh.Code(res).Primary() {
	case sqliteh.SQLITE_BUSY, sqliteh.SQLITE_LOCKED:
		return true, errCode(res)
	}
	return false, errCode(res)
}

// Remaining is sqlite3_backup_remaining.
// https://sqlite.org/c3ref/backup_finish.html#sqlite3backupremaining
func (b *Backup) Remaining() int {
	return int(C.sqlite3_backup_remaining(b.b))
}

// PageCount is sqlite3_backup_pagecount.
// https://sqlite.org/c3ref/backup_finish.html#sqlite3backuppagecount
func (b *Backup) PageCount() int {
	return int(C.sqlite3_backup_pagecount(b.b))
}

// Finish is sqlite3_backup_finish.
// https://sqlite.org/c3ref/backup_finish.html#sqlite3backupfinish
func (b *Backup) Finish() error {
	res := C.sqlite3_backup_finish(b.b)
	b.b = nil
	return errCode(res)
}
