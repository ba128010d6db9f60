//go:build cgo

package sqlite

import (
	"github.com/corelite/sqlite/cgosqlite"
	"github.com/corelite/sqlite/sqliteh"
)

func init() {
	RawOpen = func(filename string, flags sqliteh.OpenFlags, vfs string) (sqliteh.DB, error) {
		db, err := cgosqlite.Open(filename, flags, vfs)
		if db == nil {
			// Avoid a typed nil in the interface.
			return nil, err
		}
		return db, err
	}
}
