// Package cgosqlite implements the sqliteh interfaces over the SQLite
// C library with cgo.
//
// It adds no policy of its own: each method is one C call, or a few
// batched into one cgo crossing, and results are converted to Go
// types without extra heap allocation where C would make none. Code
// above this package never needs to import "C".
//
// The package links against the system SQLite found by pkg-config.
// Building with the sqlcipher tag links SQLCipher instead, which
// enables DB.Key and DB.Rekey.
//
// Callbacks (busy handlers and sqlite3_exec row callbacks) are passed
// to C as runtime/cgo.Handle values, never as Go pointers.
package cgosqlite
