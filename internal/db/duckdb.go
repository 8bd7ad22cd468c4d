// Package db opens the embedded DuckDB database.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Path returns the database file location: <DataDir>/duckdb/<DBName>.duckdb.
func (c Config) Path() string {
	return filepath.Join(c.DataDir, "duckdb", c.DBName+".duckdb")
}

// Open creates the duckdb directory and opens the database file.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.DBName == "" {
		return nil, fmt.Errorf("db: name is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path()), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	conn, err := sql.Open("duckdb", cfg.Path())
	if err != nil {
		return nil, fmt.Errorf("open duckdb %s: %w", cfg.Path(), err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping duckdb %s: %w", cfg.Path(), err)
	}
	return conn, nil
}
