package geocode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/geo-events/internal/db"
)

// Cache stores resolved addresses.
type Cache interface {
	Get(ctx context.Context, address string) (orb.Point, bool, error)
	Save(ctx context.Context, address string, pt orb.Point) error
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// MemoryCache keeps locations in process memory.
type MemoryCache struct {
	mu   sync.RWMutex
	locs map[string]orb.Point
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{locs: make(map[string]orb.Point)}
}

func (m *MemoryCache) Get(_ context.Context, address string) (orb.Point, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pt, ok := m.locs[address]
	return pt, ok, nil
}

func (m *MemoryCache) Save(_ context.Context, address string, pt orb.Point) error {
	m.mu.Lock()
	m.locs[address] = pt
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.locs), nil
}

func (m *MemoryCache) Clear(context.Context) error {
	m.mu.Lock()
	m.locs = make(map[string]orb.Point)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Close() error { return nil }

const locationsSchema = `CREATE TABLE IF NOT EXISTS locations (
	address   VARCHAR PRIMARY KEY,
	latitude  DOUBLE NOT NULL,
	longitude DOUBLE NOT NULL,
	cached_at TIMESTAMP DEFAULT current_timestamp
)`

// DuckDBCache keeps locations in the locations table of an embedded database.
type DuckDBCache struct {
	db *sql.DB
}

// OpenDuckDBCache opens <dataDir>/duckdb/locations.duckdb.
func OpenDuckDBCache(ctx context.Context, dataDir string) (*DuckDBCache, error) {
	conn, err := db.Open(db.Config{DataDir: dataDir, DBName: "locations"})
	if err != nil {
		return nil, err
	}
	c, err := NewDuckDBCache(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// NewDuckDBCache wraps an open connection and creates the table.
func NewDuckDBCache(ctx context.Context, conn *sql.DB) (*DuckDBCache, error) {
	if _, err := conn.ExecContext(ctx, locationsSchema); err != nil {
		return nil, fmt.Errorf("create locations: %w", err)
	}
	return &DuckDBCache{db: conn}, nil
}

func (d *DuckDBCache) Get(ctx context.Context, address string) (orb.Point, bool, error) {
	var lat, lon float64
	err := d.db.QueryRowContext(ctx,
		"SELECT latitude, longitude FROM locations WHERE address = ?", address).Scan(&lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return orb.Point{}, false, nil
	}
	if err != nil {
		return orb.Point{}, false, err
	}
	return orb.Point{lon, lat}, true, nil
}

func (d *DuckDBCache) Save(ctx context.Context, address string, pt orb.Point) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO locations (address, latitude, longitude, cached_at) VALUES (?, ?, ?, current_timestamp)",
		address, pt.Lat(), pt.Lon())
	return err
}

func (d *DuckDBCache) Count(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, "SELECT count(*) FROM locations").Scan(&n)
	return n, err
}

func (d *DuckDBCache) Clear(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, "DELETE FROM locations")
	return err
}

func (d *DuckDBCache) Close() error {
	return d.db.Close()
}

// Cache backends accepted by OpenCache.
const (
	CacheMemory = "memory"
	CacheDuckDB = "duckdb"
)

// OpenCache creates the named cache backend.
func OpenCache(ctx context.Context, backend, dataDir string) (Cache, error) {
	switch backend {
	case "", CacheMemory:
		return NewMemoryCache(), nil
	case CacheDuckDB:
		return OpenDuckDBCache(ctx, dataDir)
	default:
		return nil, fmt.Errorf("unknown location cache %q", backend)
	}
}
