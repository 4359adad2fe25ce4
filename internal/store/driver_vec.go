//go:build sqlite_vec && cgo

package store

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"

func init() {
	// Registers sqlite-vec as an auto-loaded extension on every new
	// connection of the cgo driver.
	vec.Auto()
}
