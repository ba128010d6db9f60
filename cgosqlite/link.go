//go:build !sqlcipher

package cgosqlite

// #cgo pkg-config: sqlite3
import "C"
