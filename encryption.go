package sqlite

import (
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

// SetEncryptionKey keys an encrypted database. It must be the first
// call on a new Conn. It requires the sqlcipher build tag; otherwise it
// fails with SQLITE_MISUSE.
//
// A key of the form x'<64 hex digits>', as made by DeriveEncryptionKey,
// is used as the raw key. Anything else is a passphrase.
func (c *Conn) SetEncryptionKey(key string) error {
	if err := c.check("SetEncryptionKey"); err != nil {
		return err
	}
	return reserr(c.db, "SetEncryptionKey", "", c.db.Key([]byte(key)))
}

// ChangeEncryptionKey re-encrypts the database with a new key.
func (c *Conn) ChangeEncryptionKey(key string) error {
	if err := c.check("ChangeEncryptionKey"); err != nil {
		return err
	}
	return reserr(c.db, "ChangeEncryptionKey", "", c.db.Rekey([]byte(key)))
}

// Argon2id parameters for DeriveEncryptionKey.
const (
	keyTime    = 3
	keyMemory  = 64 * 1024
	keyThreads = 1
	keyLen     = 32
)

// DeriveEncryptionKey stretches passphrase with argon2id into a 256-bit
// raw key, formatted for SetEncryptionKey. The same passphrase and salt
// always produce the same key; store the salt beside the database.
func DeriveEncryptionKey(passphrase string, salt []byte) string {
	k := argon2.IDKey([]byte(passphrase), salt, keyTime, keyMemory, keyThreads, keyLen)
	return "x'" + hex.EncodeToString(k) + "'"
}
