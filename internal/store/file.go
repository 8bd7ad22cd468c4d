package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File keeps one JSON document per namespace under <dataDir>/storage.
type File struct {
	dir string
	mu  sync.Mutex
}

// NewFile creates the storage directory if needed.
func NewFile(dataDir string) (*File, error) {
	dir := filepath.Join(dataDir, "storage")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(ns string) (string, error) {
	if ns == "" || strings.ContainsAny(ns, `/\`) || strings.Contains(ns, "..") {
		return "", fmt.Errorf("invalid namespace %q", ns)
	}
	return filepath.Join(f.dir, ns+".json"), nil
}

func (f *File) read(ns string) (map[string]string, error) {
	p, err := f.path(ns)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, err)
	}
	return values, nil
}

func (f *File) Get(_ context.Context, ns, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read(ns)
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (f *File) Set(_ context.Context, ns string, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read(ns)
	if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = v
	}

	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return err
	}
	p, _ := f.path(ns)
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (f *File) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(f.dir, "*.json"))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

func (f *File) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(f.dir, "*.json"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (f *File) Close() error { return nil }
