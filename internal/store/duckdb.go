package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joeblew999/geo-events/internal/db"
)

const duckdbSchema = `CREATE TABLE IF NOT EXISTS local_storage (
	ns         VARCHAR NOT NULL,
	item_key   VARCHAR NOT NULL,
	value      VARCHAR NOT NULL,
	updated_at TIMESTAMP DEFAULT current_timestamp,
	PRIMARY KEY (ns, item_key)
)`

// DuckDB keeps values in the local_storage table of the embedded database.
type DuckDB struct {
	db *sql.DB
}

// OpenDuckDB opens <dataDir>/duckdb/geo.duckdb and creates the table.
func OpenDuckDB(ctx context.Context, dataDir string) (*DuckDB, error) {
	conn, err := db.Open(db.Config{DataDir: dataDir, DBName: "geo"})
	if err != nil {
		return nil, err
	}
	s, err := NewDuckDB(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewDuckDB wraps an open connection.
func NewDuckDB(ctx context.Context, conn *sql.DB) (*DuckDB, error) {
	if _, err := conn.ExecContext(ctx, duckdbSchema); err != nil {
		return nil, fmt.Errorf("create local_storage: %w", err)
	}
	return &DuckDB{db: conn}, nil
}

func (d *DuckDB) Get(ctx context.Context, ns, key string) (string, bool, error) {
	var v string
	err := d.db.QueryRowContext(ctx,
		"SELECT value FROM local_storage WHERE ns = ? AND item_key = ?", ns, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *DuckDB) Set(ctx context.Context, ns string, values map[string]string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range sortedKeys(values) {
		_, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO local_storage (ns, item_key, value, updated_at) VALUES (?, ?, ?, current_timestamp)",
			ns, k, values[k])
		if err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return tx.Commit()
}

func (d *DuckDB) Count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT count(DISTINCT ns) FROM local_storage").Scan(&n)
	return n, err
}

func (d *DuckDB) Clear(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM local_storage")
	return err
}

func (d *DuckDB) Close() error {
	return d.db.Close()
}
