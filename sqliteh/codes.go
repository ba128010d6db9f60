package sqliteh

import (
	"strconv"
	"sync"
)

// Code is an SQLite extended error code.
//
// The three SQLite result codes (SQLITE_OK, SQLITE_ROW, and SQLITE_DONE),
// are not errors so they should not be used in an Error.
type Code int

// Primary reports the primary result code, the low 8 bits of an
// extended code. SQLITE_IOERR_READ.Primary() == SQLITE_IOERR.
func (code Code) Primary() Code { return code & 0xff }

// IsExtended reports whether code carries an extended qualifier.
func (code Code) IsExtended() bool { return code != code.Primary() }

func (code Code) String() string {
	switch code {
	case SQLITE_OK, SQLITE_ROW, SQLITE_DONE:
		return codeNames[code] + "(not an error)"
	}
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "SQLITE_UNKNOWN_ERR(" + strconv.Itoa(int(code)) + ")"
}

// ErrCode is an SQLite error code as a Go error.
// It must not be one of the status codes SQLITE_OK, SQLITE_ROW, or SQLITE_DONE.
type ErrCode Code

func (e ErrCode) Error() string {
	return Code(e).String()
}

// Is reports whether target is the same code, or the primary code of e.
// errors.Is(ErrCode(SQLITE_BUSY_SNAPSHOT), ErrCode(SQLITE_BUSY)) is true.
func (e ErrCode) Is(target error) bool {
	t, ok := target.(ErrCode)
	if !ok {
		return false
	}
	return t == e || (!Code(t).IsExtended() && Code(t) == Code(e).Primary())
}

const (
	SQLITE_OK         = Code(0) // do not use in Error
	SQLITE_ERROR      = Code(1)
	SQLITE_INTERNAL   = Code(2)
	SQLITE_PERM       = Code(3)
	SQLITE_ABORT      = Code(4)
	SQLITE_BUSY       = Code(5)
	SQLITE_LOCKED     = Code(6)
	SQLITE_NOMEM      = Code(7)
	SQLITE_READONLY   = Code(8)
	SQLITE_INTERRUPT  = Code(9)
	SQLITE_IOERR      = Code(10)
	SQLITE_CORRUPT    = Code(11)
	SQLITE_NOTFOUND   = Code(12)
	SQLITE_FULL       = Code(13)
	SQLITE_CANTOPEN   = Code(14)
	SQLITE_PROTOCOL   = Code(15)
	SQLITE_EMPTY      = Code(16)
	SQLITE_SCHEMA     = Code(17)
	SQLITE_TOOBIG     = Code(18)
	SQLITE_CONSTRAINT = Code(19)
	SQLITE_MISMATCH   = Code(20)
	SQLITE_MISUSE     = Code(21)
	SQLITE_NOLFS      = Code(22)
	SQLITE_AUTH       = Code(23)
	SQLITE_FORMAT     = Code(24)
	SQLITE_RANGE      = Code(25)
	SQLITE_NOTADB     = Code(26)
	SQLITE_NOTICE     = Code(27)
	SQLITE_WARNING    = Code(28)
	SQLITE_ROW        = Code(100) // do not use in Error
	SQLITE_DONE       = Code(101) // do not use in Error

	// Extended error codes

	SQLITE_ERROR_MISSING_COLLSEQ   = Code(SQLITE_ERROR | (1 << 8))
	SQLITE_ERROR_RETRY             = Code(SQLITE_ERROR | (2 << 8))
	SQLITE_ERROR_SNAPSHOT          = Code(SQLITE_ERROR | (3 << 8))
	SQLITE_IOERR_READ              = Code(SQLITE_IOERR | (1 << 8))
	SQLITE_IOERR_SHORT_READ        = Code(SQLITE_IOERR | (2 << 8))
	SQLITE_IOERR_WRITE             = Code(SQLITE_IOERR | (3 << 8))
	SQLITE_IOERR_FSYNC             = Code(SQLITE_IOERR | (4 << 8))
	SQLITE_IOERR_DIR_FSYNC         = Code(SQLITE_IOERR | (5 << 8))
	SQLITE_IOERR_TRUNCATE          = Code(SQLITE_IOERR | (6 << 8))
	SQLITE_IOERR_FSTAT             = Code(SQLITE_IOERR | (7 << 8))
	SQLITE_IOERR_UNLOCK            = Code(SQLITE_IOERR | (8 << 8))
	SQLITE_IOERR_RDLOCK            = Code(SQLITE_IOERR | (9 << 8))
	SQLITE_IOERR_DELETE            = Code(SQLITE_IOERR | (10 << 8))
	SQLITE_IOERR_BLOCKED           = Code(SQLITE_IOERR | (11 << 8))
	SQLITE_IOERR_NOMEM             = Code(SQLITE_IOERR | (12 << 8))
	SQLITE_IOERR_ACCESS            = Code(SQLITE_IOERR | (13 << 8))
	SQLITE_IOERR_CHECKRESERVEDLOCK = Code(SQLITE_IOERR | (14 << 8))
	SQLITE_IOERR_LOCK              = Code(SQLITE_IOERR | (15 << 8))
	SQLITE_IOERR_CLOSE             = Code(SQLITE_IOERR | (16 << 8))
	SQLITE_IOERR_DIR_CLOSE         = Code(SQLITE_IOERR | (17 << 8))
	SQLITE_IOERR_SHMOPEN           = Code(SQLITE_IOERR | (18 << 8))
	SQLITE_IOERR_SHMSIZE           = Code(SQLITE_IOERR | (19 << 8))
	SQLITE_IOERR_SHMLOCK           = Code(SQLITE_IOERR | (20 << 8))
	SQLITE_IOERR_SHMMAP            = Code(SQLITE_IOERR | (21 << 8))
	SQLITE_IOERR_SEEK              = Code(SQLITE_IOERR | (22 << 8))
	SQLITE_IOERR_DELETE_NOENT      = Code(SQLITE_IOERR | (23 << 8))
	SQLITE_IOERR_MMAP              = Code(SQLITE_IOERR | (24 << 8))
	SQLITE_IOERR_GETTEMPPATH       = Code(SQLITE_IOERR | (25 << 8))
	SQLITE_IOERR_CONVPATH          = Code(SQLITE_IOERR | (26 << 8))
	SQLITE_IOERR_VNODE             = Code(SQLITE_IOERR | (27 << 8))
	SQLITE_IOERR_AUTH              = Code(SQLITE_IOERR | (28 << 8))
	SQLITE_IOERR_BEGIN_ATOMIC      = Code(SQLITE_IOERR | (29 << 8))
	SQLITE_IOERR_COMMIT_ATOMIC     = Code(SQLITE_IOERR | (30 << 8))
	SQLITE_IOERR_ROLLBACK_ATOMIC   = Code(SQLITE_IOERR | (31 << 8))
	SQLITE_IOERR_DATA              = Code(SQLITE_IOERR | (32 << 8))
	SQLITE_IOERR_CORRUPTFS         = Code(SQLITE_IOERR | (33 << 8))
	SQLITE_LOCKED_SHAREDCACHE      = Code(SQLITE_LOCKED | (1 << 8))
	SQLITE_LOCKED_VTAB             = Code(SQLITE_LOCKED | (2 << 8))
	SQLITE_BUSY_RECOVERY           = Code(SQLITE_BUSY | (1 << 8))
	SQLITE_BUSY_SNAPSHOT           = Code(SQLITE_BUSY | (2 << 8))
	SQLITE_BUSY_TIMEOUT            = Code(SQLITE_BUSY | (3 << 8))
	SQLITE_CANTOPEN_NOTEMPDIR      = Code(SQLITE_CANTOPEN | (1 << 8))
	SQLITE_CANTOPEN_ISDIR          = Code(SQLITE_CANTOPEN | (2 << 8))
	SQLITE_CANTOPEN_FULLPATH       = Code(SQLITE_CANTOPEN | (3 << 8))
	SQLITE_CANTOPEN_CONVPATH       = Code(SQLITE_CANTOPEN | (4 << 8))
	SQLITE_CANTOPEN_DIRTYWAL       = Code(SQLITE_CANTOPEN | (5 << 8)) /* Not Used */
	SQLITE_CANTOPEN_SYMLINK        = Code(SQLITE_CANTOPEN | (6 << 8))
	SQLITE_CORRUPT_VTAB            = Code(SQLITE_CORRUPT | (1 << 8))
	SQLITE_CORRUPT_SEQUENCE        = Code(SQLITE_CORRUPT | (2 << 8))
	SQLITE_CORRUPT_INDEX           = Code(SQLITE_CORRUPT | (3 << 8))
	SQLITE_READONLY_RECOVERY       = Code(SQLITE_READONLY | (1 << 8))
	SQLITE_READONLY_CANTLOCK       = Code(SQLITE_READONLY | (2 << 8))
	SQLITE_READONLY_ROLLBACK       = Code(SQLITE_READONLY | (3 << 8))
	SQLITE_READONLY_DBMOVED        = Code(SQLITE_READONLY | (4 << 8))
	SQLITE_READONLY_CANTINIT       = Code(SQLITE_READONLY | (5 << 8))
	SQLITE_READONLY_DIRECTORY      = Code(SQLITE_READONLY | (6 << 8))
	SQLITE_ABORT_ROLLBACK          = Code(SQLITE_ABORT | (2 << 8))
	SQLITE_CONSTRAINT_CHECK        = Code(SQLITE_CONSTRAINT | (1 << 8))
	SQLITE_CONSTRAINT_COMMITHOOK   = Code(SQLITE_CONSTRAINT | (2 << 8))
	SQLITE_CONSTRAINT_FOREIGNKEY   = Code(SQLITE_CONSTRAINT | (3 << 8))
	SQLITE_CONSTRAINT_FUNCTION     = Code(SQLITE_CONSTRAINT | (4 << 8))
	SQLITE_CONSTRAINT_NOTNULL      = Code(SQLITE_CONSTRAINT | (5 << 8))
	SQLITE_CONSTRAINT_PRIMARYKEY   = Code(SQLITE_CONSTRAINT | (6 << 8))
	SQLITE_CONSTRAINT_TRIGGER      = Code(SQLITE_CONSTRAINT | (7 << 8))
	SQLITE_CONSTRAINT_UNIQUE       = Code(SQLITE_CONSTRAINT | (8 << 8))
	SQLITE_CONSTRAINT_VTAB         = Code(SQLITE_CONSTRAINT | (9 << 8))
	SQLITE_CONSTRAINT_ROWID        = Code(SQLITE_CONSTRAINT | (10 << 8))
	SQLITE_CONSTRAINT_PINNED       = Code(SQLITE_CONSTRAINT | (11 << 8))
	SQLITE_NOTICE_RECOVER_WAL      = Code(SQLITE_NOTICE | (1 << 8))
	SQLITE_NOTICE_RECOVER_ROLLBACK = Code(SQLITE_NOTICE | (2 << 8))
	SQLITE_WARNING_AUTOINDEX       = Code(SQLITE_WARNING | (1 << 8))
	SQLITE_AUTH_USER               = Code(SQLITE_AUTH | (1 << 8))
	SQLITE_OK_LOAD_PERMANENTLY     = Code(SQLITE_OK | (1 << 8))
	SQLITE_OK_SYMLINK              = Code(SQLITE_OK | (2 << 8))
)

var codeNames = map[Code]string{
	SQLITE_OK:                      "SQLITE_OK",
	SQLITE_ERROR:                   "SQLITE_ERROR",
	SQLITE_INTERNAL:                "SQLITE_INTERNAL",
	SQLITE_PERM:                    "SQLITE_PERM",
	SQLITE_ABORT:                   "SQLITE_ABORT",
	SQLITE_BUSY:                    "SQLITE_BUSY",
	SQLITE_LOCKED:                  "SQLITE_LOCKED",
	SQLITE_NOMEM:                   "SQLITE_NOMEM",
	SQLITE_READONLY:                "SQLITE_READONLY",
	SQLITE_INTERRUPT:               "SQLITE_INTERRUPT",
	SQLITE_IOERR:                   "SQLITE_IOERR",
	SQLITE_CORRUPT:                 "SQLITE_CORRUPT",
	SQLITE_NOTFOUND:                "SQLITE_NOTFOUND",
	SQLITE_FULL:                    "SQLITE_FULL",
	SQLITE_CANTOPEN:                "SQLITE_CANTOPEN",
	SQLITE_PROTOCOL:                "SQLITE_PROTOCOL",
	SQLITE_EMPTY:                   "SQLITE_EMPTY",
	SQLITE_SCHEMA:                  "SQLITE_SCHEMA",
	SQLITE_TOOBIG:                  "SQLITE_TOOBIG",
	SQLITE_CONSTRAINT:              "SQLITE_CONSTRAINT",
	SQLITE_MISMATCH:                "SQLITE_MISMATCH",
	SQLITE_MISUSE:                  "SQLITE_MISUSE",
	SQLITE_NOLFS:                   "SQLITE_NOLFS",
	SQLITE_AUTH:                    "SQLITE_AUTH",
	SQLITE_FORMAT:                  "SQLITE_FORMAT",
	SQLITE_RANGE:                   "SQLITE_RANGE",
	SQLITE_NOTADB:                  "SQLITE_NOTADB",
	SQLITE_NOTICE:                  "SQLITE_NOTICE",
	SQLITE_WARNING:                 "SQLITE_WARNING",
	SQLITE_ROW:                     "SQLITE_ROW",
	SQLITE_DONE:                    "SQLITE_DONE",
	SQLITE_ERROR_MISSING_COLLSEQ:   "SQLITE_ERROR_MISSING_COLLSEQ",
	SQLITE_ERROR_RETRY:             "SQLITE_ERROR_RETRY",
	SQLITE_ERROR_SNAPSHOT:          "SQLITE_ERROR_SNAPSHOT",
	SQLITE_IOERR_READ:              "SQLITE_IOERR_READ",
	SQLITE_IOERR_SHORT_READ:        "SQLITE_IOERR_SHORT_READ",
	SQLITE_IOERR_WRITE:             "SQLITE_IOERR_WRITE",
	SQLITE_IOERR_FSYNC:             "SQLITE_IOERR_FSYNC",
	SQLITE_IOERR_DIR_FSYNC:         "SQLITE_IOERR_DIR_FSYNC",
	SQLITE_IOERR_TRUNCATE:          "SQLITE_IOERR_TRUNCATE",
	SQLITE_IOERR_FSTAT:             "SQLITE_IOERR_FSTAT",
	SQLITE_IOERR_UNLOCK:            "SQLITE_IOERR_UNLOCK",
	SQLITE_IOERR_RDLOCK:            "SQLITE_IOERR_RDLOCK",
	SQLITE_IOERR_DELETE:            "SQLITE_IOERR_DELETE",
	SQLITE_IOERR_BLOCKED:           "SQLITE_IOERR_BLOCKED",
	SQLITE_IOERR_NOMEM:             "SQLITE_IOERR_NOMEM",
	SQLITE_IOERR_ACCESS:            "SQLITE_IOERR_ACCESS",
	SQLITE_IOERR_CHECKRESERVEDLOCK: "SQLITE_IOERR_CHECKRESERVEDLOCK",
	SQLITE_IOERR_LOCK:              "SQLITE_IOERR_LOCK",
	SQLITE_IOERR_CLOSE:             "SQLITE_IOERR_CLOSE",
	SQLITE_IOERR_DIR_CLOSE:         "SQLITE_IOERR_DIR_CLOSE",
	SQLITE_IOERR_SHMOPEN:           "SQLITE_IOERR_SHMOPEN",
	SQLITE_IOERR_SHMSIZE:           "SQLITE_IOERR_SHMSIZE",
	SQLITE_IOERR_SHMLOCK:           "SQLITE_IOERR_SHMLOCK",
	SQLITE_IOERR_SHMMAP:            "SQLITE_IOERR_SHMMAP",
	SQLITE_IOERR_SEEK:              "SQLITE_IOERR_SEEK",
	SQLITE_IOERR_DELETE_NOENT:      "SQLITE_IOERR_DELETE_NOENT",
	SQLITE_IOERR_MMAP:              "SQLITE_IOERR_MMAP",
	SQLITE_IOERR_GETTEMPPATH:       "SQLITE_IOERR_GETTEMPPATH",
	SQLITE_IOERR_CONVPATH:          "SQLITE_IOERR_CONVPATH",
	SQLITE_IOERR_VNODE:             "SQLITE_IOERR_VNODE",
	SQLITE_IOERR_AUTH:              "SQLITE_IOERR_AUTH",
	SQLITE_IOERR_BEGIN_ATOMIC:      "SQLITE_IOERR_BEGIN_ATOMIC",
	SQLITE_IOERR_COMMIT_ATOMIC:     "SQLITE_IOERR_COMMIT_ATOMIC",
	SQLITE_IOERR_ROLLBACK_ATOMIC:   "SQLITE_IOERR_ROLLBACK_ATOMIC",
	SQLITE_IOERR_DATA:              "SQLITE_IOERR_DATA",
	SQLITE_IOERR_CORRUPTFS:         "SQLITE_IOERR_CORRUPTFS",
	SQLITE_LOCKED_SHAREDCACHE:      "SQLITE_LOCKED_SHAREDCACHE",
	SQLITE_LOCKED_VTAB:             "SQLITE_LOCKED_VTAB",
	SQLITE_BUSY_RECOVERY:           "SQLITE_BUSY_RECOVERY",
	SQLITE_BUSY_SNAPSHOT:           "SQLITE_BUSY_SNAPSHOT",
	SQLITE_BUSY_TIMEOUT:            "SQLITE_BUSY_TIMEOUT",
	SQLITE_CANTOPEN_NOTEMPDIR:      "SQLITE_CANTOPEN_NOTEMPDIR",
	SQLITE_CANTOPEN_ISDIR:          "SQLITE_CANTOPEN_ISDIR",
	SQLITE_CANTOPEN_FULLPATH:       "SQLITE_CANTOPEN_FULLPATH",
	SQLITE_CANTOPEN_CONVPATH:       "SQLITE_CANTOPEN_CONVPATH",
	SQLITE_CANTOPEN_DIRTYWAL:       "SQLITE_CANTOPEN_DIRTYWAL",
	SQLITE_CANTOPEN_SYMLINK:        "SQLITE_CANTOPEN_SYMLINK",
	SQLITE_CORRUPT_VTAB:            "SQLITE_CORRUPT_VTAB",
	SQLITE_CORRUPT_SEQUENCE:        "SQLITE_CORRUPT_SEQUENCE",
	SQLITE_CORRUPT_INDEX:           "SQLITE_CORRUPT_INDEX",
	SQLITE_READONLY_RECOVERY:       "SQLITE_READONLY_RECOVERY",
	SQLITE_READONLY_CANTLOCK:       "SQLITE_READONLY_CANTLOCK",
	SQLITE_READONLY_ROLLBACK:       "SQLITE_READONLY_ROLLBACK",
	SQLITE_READONLY_DBMOVED:        "SQLITE_READONLY_DBMOVED",
	SQLITE_READONLY_CANTINIT:       "SQLITE_READONLY_CANTINIT",
	SQLITE_READONLY_DIRECTORY:      "SQLITE_READONLY_DIRECTORY",
	SQLITE_ABORT_ROLLBACK:          "SQLITE_ABORT_ROLLBACK",
	SQLITE_CONSTRAINT_CHECK:        "SQLITE_CONSTRAINT_CHECK",
	SQLITE_CONSTRAINT_COMMITHOOK:   "SQLITE_CONSTRAINT_COMMITHOOK",
	SQLITE_CONSTRAINT_FOREIGNKEY:   "SQLITE_CONSTRAINT_FOREIGNKEY",
	SQLITE_CONSTRAINT_FUNCTION:     "SQLITE_CONSTRAINT_FUNCTION",
	SQLITE_CONSTRAINT_NOTNULL:      "SQLITE_CONSTRAINT_NOTNULL",
	SQLITE_CONSTRAINT_PRIMARYKEY:   "SQLITE_CONSTRAINT_PRIMARYKEY",
	SQLITE_CONSTRAINT_TRIGGER:      "SQLITE_CONSTRAINT_TRIGGER",
	SQLITE_CONSTRAINT_UNIQUE:       "SQLITE_CONSTRAINT_UNIQUE",
	SQLITE_CONSTRAINT_VTAB:         "SQLITE_CONSTRAINT_VTAB",
	SQLITE_CONSTRAINT_ROWID:        "SQLITE_CONSTRAINT_ROWID",
	SQLITE_CONSTRAINT_PINNED:       "SQLITE_CONSTRAINT_PINNED",
	SQLITE_NOTICE_RECOVER_WAL:      "SQLITE_NOTICE_RECOVER_WAL",
	SQLITE_NOTICE_RECOVER_ROLLBACK: "SQLITE_NOTICE_RECOVER_ROLLBACK",
	SQLITE_WARNING_AUTOINDEX:       "SQLITE_WARNING_AUTOINDEX",
	SQLITE_AUTH_USER:               "SQLITE_AUTH_USER",
	SQLITE_OK_LOAD_PERMANENTLY:     "SQLITE_OK_LOAD_PERMANENTLY",
	SQLITE_OK_SYMLINK:              "SQLITE_OK_SYMLINK",
}

// CodeAsError is used to intern Codes into ErrCodes.
// SQLite non-error status codes return nil.
func CodeAsError(code Code) error {
	if code == SQLITE_OK || code == SQLITE_ROW || code == SQLITE_DONE {
		return nil
	}
	codeAsErrorInitOnce.Do(codeAsErrorInit)
	if err := codeAsError[code]; err != nil {
		return err
	}
	return ErrCode(code)
}

var (
	codeAsError         map[Code]error
	codeAsErrorInitOnce sync.Once
)

func codeAsErrorInit() {
	codeAsError = make(map[Code]error, len(codeNames))
	for code := range codeNames {
		switch code.Primary() {
		case SQLITE_OK, SQLITE_ROW, SQLITE_DONE:
			continue
		}
		codeAsError[code] = ErrCode(code)
	}
}
