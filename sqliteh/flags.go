package sqliteh

import (
	"strconv"
	"strings"
)

// ColumnType are constants for each of the SQLite datatypes.
// https://www.sqlite.org/c3ref/c_blob.html
type ColumnType int

const (
	SQLITE_INTEGER ColumnType = 1
	SQLITE_FLOAT   ColumnType = 2
	SQLITE_TEXT    ColumnType = 3
	SQLITE_BLOB    ColumnType = 4
	SQLITE_NULL    ColumnType = 5
)

func (t ColumnType) String() string {
	switch t {
	case SQLITE_INTEGER:
		return "SQLITE_INTEGER"
	case SQLITE_FLOAT:
		return "SQLITE_FLOAT"
	case SQLITE_TEXT:
		return "SQLITE_TEXT"
	case SQLITE_BLOB:
		return "SQLITE_BLOB"
	case SQLITE_NULL:
		return "SQLITE_NULL"
	default:
		return "UNKNOWN_SQLITE_DATATYPE"
	}
}

// https://www.sqlite.org/c3ref/c_prepare_normalize.html
type PrepareFlags int

const (
	SQLITE_PREPARE_PERSISTENT PrepareFlags = 0x01
	SQLITE_PREPARE_NORMALIZE  PrepareFlags = 0x02
	SQLITE_PREPARE_NO_VTAB    PrepareFlags = 0x04
)

// OpenFlags are flags used when opening a DB.
//
// https://www.sqlite.org/c3ref/c_open_autoproxy.html
type OpenFlags int

const (
	SQLITE_OPEN_READONLY      OpenFlags = 0x00000001
	SQLITE_OPEN_READWRITE     OpenFlags = 0x00000002
	SQLITE_OPEN_CREATE        OpenFlags = 0x00000004
	SQLITE_OPEN_DELETEONCLOSE OpenFlags = 0x00000008
	SQLITE_OPEN_EXCLUSIVE     OpenFlags = 0x00000010
	SQLITE_OPEN_URI           OpenFlags = 0x00000040
	SQLITE_OPEN_MEMORY        OpenFlags = 0x00000080
	SQLITE_OPEN_NOMUTEX       OpenFlags = 0x00008000
	SQLITE_OPEN_FULLMUTEX     OpenFlags = 0x00010000
	SQLITE_OPEN_SHAREDCACHE   OpenFlags = 0x00020000
	SQLITE_OPEN_PRIVATECACHE  OpenFlags = 0x00040000
	SQLITE_OPEN_NOFOLLOW      OpenFlags = 0x01000000
	SQLITE_OPEN_EXRESCODE     OpenFlags = 0x02000000

	// OpenFlagsDefault is what the database/sql driver and the
	// connection pool open with.
	OpenFlagsDefault = SQLITE_OPEN_READWRITE |
		SQLITE_OPEN_CREATE |
		SQLITE_OPEN_URI |
		SQLITE_OPEN_NOMUTEX
)

var openFlagNames = []struct {
	flag OpenFlags
	name string
}{
	{SQLITE_OPEN_READONLY, "SQLITE_OPEN_READONLY"},
	{SQLITE_OPEN_READWRITE, "SQLITE_OPEN_READWRITE"},
	{SQLITE_OPEN_CREATE, "SQLITE_OPEN_CREATE"},
	{SQLITE_OPEN_DELETEONCLOSE, "SQLITE_OPEN_DELETEONCLOSE"},
	{SQLITE_OPEN_EXCLUSIVE, "SQLITE_OPEN_EXCLUSIVE"},
	{SQLITE_OPEN_URI, "SQLITE_OPEN_URI"},
	{SQLITE_OPEN_MEMORY, "SQLITE_OPEN_MEMORY"},
	{SQLITE_OPEN_NOMUTEX, "SQLITE_OPEN_NOMUTEX"},
	{SQLITE_OPEN_FULLMUTEX, "SQLITE_OPEN_FULLMUTEX"},
	{SQLITE_OPEN_SHAREDCACHE, "SQLITE_OPEN_SHAREDCACHE"},
	{SQLITE_OPEN_PRIVATECACHE, "SQLITE_OPEN_PRIVATECACHE"},
	{SQLITE_OPEN_NOFOLLOW, "SQLITE_OPEN_NOFOLLOW"},
	{SQLITE_OPEN_EXRESCODE, "SQLITE_OPEN_EXRESCODE"},
}

func (o OpenFlags) String() string {
	var names []string
	rest := o
	for _, f := range openFlagNames {
		if o&f.flag != 0 {
			names = append(names, f.name)
			rest &^= f.flag
		}
	}
	if rest != 0 {
		names = append(names, "UNKNOWN_FLAG:"+strconv.Itoa(int(rest)))
	}
	return strings.Join(names, "|")
}

// Checkpoint is a WAL checkpoint mode.
// It is used by sqlite3_wal_checkpoint_v2.
//
// https://sqlite.org/c3ref/wal_checkpoint_v2.html
type Checkpoint int

const (
	SQLITE_CHECKPOINT_PASSIVE  Checkpoint = 0
	SQLITE_CHECKPOINT_FULL     Checkpoint = 1
	SQLITE_CHECKPOINT_RESTART  Checkpoint = 2
	SQLITE_CHECKPOINT_TRUNCATE Checkpoint = 3
)

func (mode Checkpoint) String() string {
	switch mode {
	case SQLITE_CHECKPOINT_PASSIVE:
		return "SQLITE_CHECKPOINT_PASSIVE"
	case SQLITE_CHECKPOINT_FULL:
		return "SQLITE_CHECKPOINT_FULL"
	case SQLITE_CHECKPOINT_RESTART:
		return "SQLITE_CHECKPOINT_RESTART"
	case SQLITE_CHECKPOINT_TRUNCATE:
		return "SQLITE_CHECKPOINT_TRUNCATE"
	}
	return "SQLITE_CHECKPOINT_UNKNOWN(" + strconv.Itoa(int(mode)) + ")"
}

// TxnState is a transaction state.
// It is used by sqlite3_txn_state.
//
// https://sqlite.org/c3ref/txn_state.html
type TxnState int

const (
	SQLITE_TXN_NONE  TxnState = 0
	SQLITE_TXN_READ  TxnState = 1
	SQLITE_TXN_WRITE TxnState = 2
)

func (state TxnState) String() string {
	switch state {
	case SQLITE_TXN_NONE:
		return "SQLITE_TXN_NONE"
	case SQLITE_TXN_READ:
		return "SQLITE_TXN_READ"
	case SQLITE_TXN_WRITE:
		return "SQLITE_TXN_WRITE"
	}
	return "SQLITE_TXN_UNKNOWN(" + strconv.Itoa(int(state)) + ")"
}
