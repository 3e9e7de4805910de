package store

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	DataDir string
	// DSN is the connection string for the postgres backend.
	DSN string
	// QuotaBytes caps the memory backend. Zero means unlimited.
	QuotaBytes int64
}

// Backends lists the accepted backend names.
var Backends = []string{"json", "sqlite", "postgres", "badger", "memory"}

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"json"     - single slots.json file in DataDir (default)
//	"sqlite"   - SQLite database at DataDir/slots.db
//	"postgres" - PostgreSQL reached through DSN
//	"badger"   - Badger database in DataDir/badger
//	"memory"   - in-memory (ephemeral, for testing), honours QuotaBytes
func New(opts Options, logger *zap.Logger) (Store, error) {
	switch opts.Backend {
	case "json", "":
		return NewJsonFileStore(opts.DataDir)
	case "sqlite":
		return NewSqliteStore(filepath.Join(opts.DataDir, "slots.db"))
	case "postgres":
		return NewPostgresStore(opts.DSN)
	case "badger":
		return NewBadgerStore(BadgerOptions{Dir: filepath.Join(opts.DataDir, "badger")}, logger)
	case "memory":
		return NewMemoryStoreWithQuota(opts.QuotaBytes), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, postgres, badger, memory)", opts.Backend)
	}
}
