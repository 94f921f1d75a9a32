package storage

import (
	"time"
)

// SavedQuery is a stored query. Only the query text is persisted — never
// the parsed form — so every run re-parses against the current grammar.
type SavedQuery struct {
	Name       string    `yaml:"name"`
	Query      string    `yaml:"query"`
	EntityType string    `yaml:"entity_type"`
	ProjectID  int       `yaml:"project_id"`
	LastRun    time.Time `yaml:"last_run"`
	LastTotal  int       `yaml:"last_total"`
}
