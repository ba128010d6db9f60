//go:build sqlcipher

package cgosqlite

// #include <sqlite3.h>
import "C"
import "unsafe"

// Key is sqlite3_key.
// It must be called before the first access to an encrypted database.
// https://www.zetetic.net/sqlcipher/sqlcipher-api/#sqlite3_key
func (db *DB) Key(key []byte) error {
	if len(key) == 0 {
		return errCode(C.SQLITE_MISUSE)
	}
	return errCode(C.sqlite3_key(db.db, unsafe.Pointer(&key[0]), C.int(len(key))))
}

// Rekey is sqlite3_rekey.
// https://www.zetetic.net/sqlcipher/sqlcipher-api/#sqlite3_rekey
func (db *DB) Rekey(key []byte) error {
	if len(key) == 0 {
		return errCode(C.SQLITE_MISUSE)
	}
	return errCode(C.sqlite3_rekey(db.db, unsafe.Pointer(&key[0]), C.int(len(key))))
}
