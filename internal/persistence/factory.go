// Package persistence selects a model store backend from the environment.
package persistence

import (
	"context"
	"fmt"
	"os"

	"genomcore/internal/persistence/memory"
	"genomcore/internal/persistence/postgres"
	"genomcore/internal/persistence/sqlite"
	"genomcore/pkg/domain"
)

// Driver identifies a model store backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverMemory   Driver = "memory"
)

// Open selects a domain.ModelStore implementation using environment
// variables.
//
//	GENOMCORE_STORE_DRIVER: sqlite|postgres|memory (default sqlite)
//	GENOMCORE_SQLITE_PATH: database file when driver=sqlite (default genomcore.db)
//	GENOMCORE_POSTGRES_DSN: connection string when driver=postgres
func Open(ctx context.Context) (domain.ModelStore, error) {
	driver := os.Getenv("GENOMCORE_STORE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverSQLite:
		return sqlite.New(os.Getenv("GENOMCORE_SQLITE_PATH"))
	case DriverPostgres:
		return postgres.New(ctx, os.Getenv("GENOMCORE_POSTGRES_DSN"))
	case DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %s", driver)
	}
}
