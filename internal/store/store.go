// Package store persists the last loaded dataset of each map view session,
// the server-side counterpart of the browser's localStorage.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Keys written on every successful load.
const (
	DateKey = "eventsDate"
	DataKey = "eventsGeojson"
)

// Store is a namespaced string key/value store. Namespaces are session ids.
type Store interface {
	// Get returns the value for key, ok=false when absent.
	Get(ctx context.Context, ns, key string) (string, bool, error)
	// Set writes every key of values in one atomic write.
	Set(ctx context.Context, ns string, values map[string]string) error
	// Count returns the number of namespaces holding data.
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

// Snapshot is the persisted state of one successful load.
type Snapshot struct {
	Date    string
	GeoJSON []byte
}

// DateString formats a day the way snapshots record it: YYYY-M-D.
func DateString(day time.Time) string {
	return fmt.Sprintf("%d-%d-%d", day.Year(), int(day.Month()), day.Day())
}

// SaveSnapshot writes both keys together, overwriting previous values.
func SaveSnapshot(ctx context.Context, s Store, ns string, snap Snapshot) error {
	err := s.Set(ctx, ns, map[string]string{
		DateKey: snap.Date,
		DataKey: string(snap.GeoJSON),
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadSnapshot reads a snapshot. ok is false when no dataset was stored.
func LoadSnapshot(ctx context.Context, s Store, ns string) (Snapshot, bool, error) {
	data, ok, err := s.Get(ctx, ns, DataKey)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load %s: %w", DataKey, err)
	}
	if !ok || data == "" {
		return Snapshot{}, false, nil
	}
	date, _, err := s.Get(ctx, ns, DateKey)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load %s: %w", DateKey, err)
	}
	return Snapshot{Date: date, GeoJSON: []byte(data)}, true, nil
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendDuckDB = "duckdb"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend  string
	DataDir  string
	RedisURL string
}

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown store backend")

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		return NewFile(cfg.DataDir)
	case BackendDuckDB:
		return OpenDuckDB(ctx, cfg.DataDir)
	case BackendRedis:
		return OpenRedis(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
