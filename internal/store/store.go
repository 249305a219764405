// Package store persists application state as JSON blobs keyed by filename.
// Every write replaces the whole file atomically (write temp, rename), so a
// crash mid-write never leaves a truncated blob behind.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Blob filenames used by the application.
const (
	ItemsFile       = "items.json"
	SettingsFile    = "settings.json"
	DiagnosticsFile = "diagnostics.json"
)

// ErrNotFound is returned by Load when the blob does not exist yet.
var ErrNotFound = errors.New("store: blob not found")

// Store reads and writes JSON blobs under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	backedUp map[string]bool
}

// New creates the data directory if needed and returns a Store.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %q: %w", dir, err)
	}
	return &Store{
		dir:      dir,
		logger:   logger.With("component", "store"),
		backedUp: make(map[string]bool),
	}, nil
}

// Dir returns the data directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Save marshals v and atomically replaces the named blob. The first save of
// each name per process keeps the previous file as name.bak.
func (s *Store) Save(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	if !s.backedUp[name] {
		if prev, err := os.ReadFile(path); err == nil {
			if err := os.WriteFile(path+".bak", prev, 0o644); err != nil {
				s.logger.Warn("writing backup failed", "file", name, "error", err)
			}
		}
		s.backedUp[name] = true
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", name, err)
	}
	return nil
}

// Load unmarshals the named blob into v. Returns ErrNotFound for missing
// blobs so callers can seed defaults.
func (s *Store) Load(name string, v any) error {
	data, err := s.ReadRaw(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}

// ReadRaw returns the raw bytes of the named blob.
func (s *Store) ReadRaw(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// Restore replaces the named blob with its .bak copy, if one exists.
func (s *Store) Restore(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path + ".bak")
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading backup of %s: %w", name, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("restoring %s: %w", name, err)
	}
	s.logger.Info("restored blob from backup", "file", name)
	return nil
}
