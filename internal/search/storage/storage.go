package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store handles persistent storage of saved queries
type Store struct {
	dataDir string
}

// NewStore creates a new storage instance
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
	}
}

// ensureDataDir creates the data directory if it doesn't exist
func (s *Store) ensureDataDir() error {
	return os.MkdirAll(s.dataDir, 0755)
}

// queryFilePath returns the file path for a given query name
func (s *Store) queryFilePath(name string) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("%s.yaml", name))
}

// Save writes a saved query to the storage
func (s *Store) Save(saved SavedQuery) error {
	if err := s.ensureDataDir(); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}

	data, err := yaml.Marshal(saved)
	if err != nil {
		return fmt.Errorf("cannot marshal saved query: %w", err)
	}

	if err := os.WriteFile(s.queryFilePath(saved.Name), data, 0644); err != nil {
		return fmt.Errorf("cannot write saved query file: %w", err)
	}

	return nil
}

// Load reads a saved query from storage; it returns nil when no query
// with that name exists.
func (s *Store) Load(name string) (*SavedQuery, error) {
	data, err := os.ReadFile(s.queryFilePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read saved query file: %w", err)
	}

	var saved SavedQuery
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("cannot unmarshal saved query: %w", err)
	}

	return &saved, nil
}

// Exists checks if a saved query exists in storage
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.queryFilePath(name))
	return err == nil
}

// List returns all saved queries, skipping files that cannot be loaded
func (s *Store) List() ([]SavedQuery, error) {
	if err := s.ensureDataDir(); err != nil {
		return nil, fmt.Errorf("cannot create data directory: %w", err)
	}

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("cannot read data directory: %w", err)
	}

	var saved []SavedQuery
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".yaml")
		item, err := s.Load(name)
		if err != nil || item == nil {
			continue
		}
		saved = append(saved, *item)
	}

	return saved, nil
}

// Delete removes a saved query from storage
func (s *Store) Delete(name string) error {
	if err := os.Remove(s.queryFilePath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot delete saved query file: %w", err)
	}

	return nil
}
