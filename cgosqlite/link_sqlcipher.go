//go:build sqlcipher

package cgosqlite

// #cgo pkg-config: sqlcipher
// #cgo CFLAGS: -DSQLITE_HAS_CODEC
import "C"
