package db

import (
	"path/filepath"
	"testing"
)

func TestConfigPath(t *testing.T) {
	cfg := Config{DataDir: "/srv/data", DBName: "geo"}
	if got, want := cfg.Path(), filepath.Join("/srv/data", "duckdb", "geo.duckdb"); got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}
}

func TestOpenRequiresName(t *testing.T) {
	if _, err := Open(Config{DataDir: t.TempDir()}); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestOpen(t *testing.T) {
	conn, err := Open(Config{DataDir: t.TempDir(), DBName: "test"})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var n int
	if err := conn.QueryRow("SELECT 1").Scan(&n); err != nil || n != 1 {
		t.Fatalf("SELECT 1 = %d, %v", n, err)
	}
}
