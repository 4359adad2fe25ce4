//go:build !sqlite_vec || !cgo

package store

// Default build: the pure Go SQLite driver. No ANN extension; similarity
// ranking runs in process.
import _ "modernc.org/sqlite"

const driverName = "sqlite"
