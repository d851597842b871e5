// Package storage keeps dismissal records in a SQL database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"dashsync/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

var schemas = map[string]string{
	"sqlite3": `CREATE TABLE IF NOT EXISTS dismissals (
		outlier_id TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	"mysql": `CREATE TABLE IF NOT EXISTS dismissals (
		outlier_id VARCHAR(255) NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (outlier_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// driverName maps the configured store name to a database/sql driver.
func driverName(dbType string) (string, error) {
	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	case "mysql":
		return "mysql", nil
	}
	return "", fmt.Errorf("unsupported driver: %s", dbType)
}

func dsnFor(driver string, dbCfg config.DatabaseConfig) (string, error) {
	if dbCfg.DSN != "" {
		return dbCfg.DSN, nil
	}
	if driver == "sqlite3" {
		return "", fmt.Errorf("sqlite dsn must be provided")
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		dbCfg.Username,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.DBName,
		dbCfg.Params,
	), nil
}

// Open connects to the database configured under cfg.Databases[dbType] and
// pings it.
func Open(ctx context.Context, dbType string, cfg *config.Config) (*sql.DB, error) {
	driver, err := driverName(dbType)
	if err != nil {
		return nil, err
	}
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}
	dsn, err := dsnFor(driver, dbCfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// one connection keeps ":memory:" databases alive and serializes writers
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the dismissals table is present.
func Migrate(ctx context.Context, db *sql.DB, dbType string) error {
	driver, err := driverName(dbType)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemas[driver]); err != nil {
		return fmt.Errorf("migrate (%s): %w", driver, err)
	}
	return nil
}
