package sqlite

import "github.com/corelite/sqlite/sqliteh"

// OpenFlags is the set of flags passed to sqlite3_open_v2.
// Build it with NewOpenFlags and the With methods:
//
//	flags := sqlite.NewOpenFlags().WithCreate().WithReadWrite().WithFullMutex()
//
// SQLite itself rejects nonsensical combinations, such as read-only with
// create; the builder only keeps mutually exclusive pairs consistent.
type OpenFlags sqliteh.OpenFlags

// NewOpenFlags returns an empty set of flags.
func NewOpenFlags() OpenFlags { return 0 }

// WithCreate creates the database if it does not exist.
func (f OpenFlags) WithCreate() OpenFlags {
	return f | OpenFlags(sqliteh.SQLITE_OPEN_CREATE)
}

// WithReadOnly opens the database read-only. It clears read-write and create.
func (f OpenFlags) WithReadOnly() OpenFlags {
	f &^= OpenFlags(sqliteh.SQLITE_OPEN_READWRITE | sqliteh.SQLITE_OPEN_CREATE)
	return f | OpenFlags(sqliteh.SQLITE_OPEN_READONLY)
}

// WithReadWrite opens the database for reading and writing.
func (f OpenFlags) WithReadWrite() OpenFlags {
	f &^= OpenFlags(sqliteh.SQLITE_OPEN_READONLY)
	return f | OpenFlags(sqliteh.SQLITE_OPEN_READWRITE)
}

// WithURI interprets the path as a URI filename.
// https://sqlite.org/uri.html
func (f OpenFlags) WithURI() OpenFlags {
	return f | OpenFlags(sqliteh.SQLITE_OPEN_URI)
}

// WithFullMutex opens the connection in serialized mode, so it can be
// used from several goroutines at once.
func (f OpenFlags) WithFullMutex() OpenFlags {
	f &^= OpenFlags(sqliteh.SQLITE_OPEN_NOMUTEX)
	return f | OpenFlags(sqliteh.SQLITE_OPEN_FULLMUTEX)
}

// WithNoMutex opens the connection in multi-thread mode: the connection
// must not be used by two goroutines at once.
func (f OpenFlags) WithNoMutex() OpenFlags {
	f &^= OpenFlags(sqliteh.SQLITE_OPEN_FULLMUTEX)
	return f | OpenFlags(sqliteh.SQLITE_OPEN_NOMUTEX)
}

func (f OpenFlags) has(flag sqliteh.OpenFlags) bool {
	return sqliteh.OpenFlags(f)&flag != 0
}

func (f OpenFlags) String() string { return sqliteh.OpenFlags(f).String() }
