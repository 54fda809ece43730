package storage

import (
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects a bun.DB for the configured driver. SQLite is the default
// for single-node installs; Postgres for shared deployments.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverSQLite, "":
		if dsn == "" {
			dsn = "file:baker.db?cache=shared&_fk=1"
		}
		sqlDB, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("storage: open sqlite: %w", err)
		}
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("storage: postgres requires a dsn")
		}
		sqlDB, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("storage: open postgres: %w", err)
		}
		return bun.NewDB(sqlDB, pgdialect.New()), nil
	}
	return nil, fmt.Errorf("storage: unsupported driver %q", driver)
}
