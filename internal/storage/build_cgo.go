//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled with CGO and the sqlite_vec tag:
//
//	CGO_ENABLED=1 go build -tags "sqlite_vec" ./...
//
// Uses the C SQLite amalgamation through github.com/mattn/go-sqlite3, which is
// noticeably faster when a large corpus snapshot is loaded at startup.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
