// Package store persists the client's local state: search preferences, the
// last-known run id, and the cached profile shadow. One JSON file per record
// under a state directory; files survive restarts and are the sole source of
// provisional state before any network round trip completes.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/autoapply-client/internal/types"
)

const (
	preferencesFile = "preferences.json"
	lastRunFile     = "last_run.json"
	profileFile     = "profile.json"
)

// Store is a file-backed key/value store rooted at a state directory.
type Store struct {
	dir string
}

// Open creates the state directory if needed and returns a store over it.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Preferences loads the saved preferences, or nil when none have been saved.
func (s *Store) Preferences() (*types.UserPreferences, error) {
	var prefs types.UserPreferences
	ok, err := s.readJSON(preferencesFile, &prefs)
	if err != nil || !ok {
		return nil, err
	}
	return &prefs, nil
}

// SavePreferences persists the preferences record.
func (s *Store) SavePreferences(prefs *types.UserPreferences) error {
	return s.writeJSON(preferencesFile, prefs)
}

type lastRun struct {
	RunID string `json:"runId"`
}

// LastRunID returns the persisted run id, or "" when none is held.
func (s *Store) LastRunID() (string, error) {
	var rec lastRun
	ok, err := s.readJSON(lastRunFile, &rec)
	if err != nil || !ok {
		return "", err
	}
	return rec.RunID, nil
}

// SetLastRunID persists the run id. An empty id clears it.
func (s *Store) SetLastRunID(runID string) error {
	if runID == "" {
		err := os.Remove(filepath.Join(s.dir, lastRunFile))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clear run id: %w", err)
		}
		return nil
	}
	return s.writeJSON(lastRunFile, lastRun{RunID: runID})
}

// CachedProfile loads the locally cached profile, or nil when none is cached.
func (s *Store) CachedProfile() (*types.UserProfile, error) {
	var profile types.UserProfile
	ok, err := s.readJSON(profileFile, &profile)
	if err != nil || !ok {
		return nil, err
	}
	return &profile, nil
}

// CacheProfile writes the profile shadow after a successful fetch or save.
func (s *Store) CacheProfile(profile *types.UserProfile) error {
	return s.writeJSON(profileFile, profile)
}

// readJSON reads and decodes one record file. The bool is false when the
// file does not exist.
func (s *Store) readJSON(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", name, err)
	}
	return true, nil
}

// writeJSON writes a record atomically via temp file + rename so a crash
// mid-write never leaves a truncated record behind.
func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	data = append(data, '\n')

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, ".autoapply-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file for %s: %w", name, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("atomic rename for %s: %w", name, err)
	}
	return nil
}
