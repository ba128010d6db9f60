package sqlite

import (
	"sync/atomic"

	"github.com/corelite/sqlite/sqliteh"
)

// Backup copies one database into another while both stay open.
//
// The way that SQLite3 backups work is that they restart if the source is
// ever updated through a different connection than the one backing up;
// changes made through the source Conn itself are picked up without a
// restart. The source Conn must not run a query while a Step is running.
//
// Closing either Conn finishes the backup.
type Backup struct {
	b        sqliteh.Backup
	dst, src *Conn
	query    string
	done     atomic.Bool
}

// NewBackup starts copying srcName of src into dstName of dst.
// Schema names follow https://sqlite.org/pragma.html#syntax.
func NewBackup(dst *Conn, dstName string, src *Conn, srcName string) (*Backup, error) {
	if err := dst.check("NewBackup"); err != nil {
		return nil, err
	}
	if err := src.check("NewBackup"); err != nil {
		return nil, err
	}
	q := srcName + " -> " + dstName
	b, err := dst.db.Backup(dstName, src.db, srcName)
	if err != nil {
		return nil, reserr(dst.db, "NewBackup", q, err)
	}
	bk := &Backup{b: b, dst: dst, src: src, query: q}
	if !dst.trackBackup(bk) || !src.trackBackup(bk) {
		bk.Finish()
		return nil, ErrClosed
	}
	return bk, nil
}

// Step copies up to n pages (all of them if n is negative). It reports
// whether pages remain, and the progress so far.
//
// A busy or locked source is reported as an error with more set: the
// step may be retried.
func (b *Backup) Step(n int) (more bool, remaining, pageCount int, err error) {
	if b.done.Load() {
		return false, 0, 0, misuse("Backup.Step", b.query, "backup is finished")
	}
	more, err = b.b.Step(n)
	return more, b.b.Remaining(), b.b.PageCount(), reserr(b.dst.db, "Backup.Step", b.query, err)
}

// Finish releases the backup. It reports any fatal error from Step.
// Later calls do nothing.
func (b *Backup) Finish() error {
	if !b.done.CompareAndSwap(false, true) {
		return nil
	}
	b.dst.forgetBackup(b)
	b.src.forgetBackup(b)
	return reserr(b.dst.db, "Backup.Finish", b.query, b.b.Finish())
}
