// Package storage selects a concrete record store backend from the
// environment.
package storage

import (
	"fmt"
	"os"

	"liveview/internal/infra/persistence/memory"
	"liveview/internal/infra/persistence/postgres"
	"liveview/internal/infra/persistence/sqlite"
	"liveview/pkg/results"
)

// Driver identifies a concrete persistent storage implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Open selects a backend using environment variables. Defaults to memory when
// unset.
//
//	LIVEVIEW_STORAGE_DRIVER: memory|sqlite|postgres (default memory)
//	LIVEVIEW_SQLITE_PATH: path to sqlite file (default ./liveview.db)
//	LIVEVIEW_POSTGRES_DSN: postgres DSN when driver=postgres
func Open() (results.RecordStore, error) {
	driver := os.Getenv("LIVEVIEW_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverMemory)
	}
	switch Driver(driver) {
	case DriverMemory:
		return memory.NewStore(), nil
	case DriverSQLite:
		path := os.Getenv("LIVEVIEW_SQLITE_PATH")
		return sqlite.NewStore(path)
	case DriverPostgres:
		dsn := os.Getenv("LIVEVIEW_POSTGRES_DSN")
		return postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
