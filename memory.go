package sqlite

import "github.com/google/uuid"

// MemoryURI returns a URI for a new, empty in-memory database.
//
// Unlike ":memory:", the database is shared by every connection in the
// process that opens the same URI (with OpenURI), so it works with
// sqlitepool and database/sql. It lives until the last such connection
// closes.
func MemoryURI() string {
	return "file:/" + uuid.NewString() + "?vfs=memdb"
}
