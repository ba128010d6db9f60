//go:build cgo && !sqlcipher

package cgosqlite

import "github.com/corelite/sqlite/sqliteh"

// Key reports sqliteh.ErrNoCodec: the stock SQLite library cannot
// encrypt. Build with the sqlcipher tag to link SQLCipher instead.
func (db *DB) Key(key []byte) error { return sqliteh.ErrNoCodec }

// Rekey reports sqliteh.ErrNoCodec. See Key.
func (db *DB) Rekey(key []byte) error { return sqliteh.ErrNoCodec }
