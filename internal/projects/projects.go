// Package projects maps human-friendly project aliases to numeric Taiga
// project IDs, so commands accept --project our-backend as well as
// --project 1234.
package projects

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v2"

	"github.com/petr-muller/taiga-query/internal/config"
)

const (
	aliasesFileName = "projects.yaml"
)

// Aliases holds the project alias mappings
type Aliases struct {
	// ProjectAliases maps alias names to numeric Taiga project IDs
	ProjectAliases map[string]int `yaml:"projectAliases"`
}

// NewAliases creates a new empty aliases structure
func NewAliases() *Aliases {
	return &Aliases{
		ProjectAliases: make(map[string]int),
	}
}

// LoadAliases loads aliases from the default location, returns empty aliases if file doesn't exist
func LoadAliases() (*Aliases, error) {
	aliasesPath := filepath.Join(config.MustConfigDir(), aliasesFileName)

	// If file doesn't exist, return empty aliases
	if _, err := os.Stat(aliasesPath); os.IsNotExist(err) {
		return NewAliases(), nil
	}

	data, err := os.ReadFile(aliasesPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read project aliases file: %w", err)
	}

	var aliases Aliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("cannot parse project aliases file: %w", err)
	}

	if aliases.ProjectAliases == nil {
		aliases.ProjectAliases = make(map[string]int)
	}

	return &aliases, nil
}

// SaveAliases saves aliases to the default location
func (a *Aliases) SaveAliases() error {
	configDir := config.MustConfigDir()

	// Ensure config directory exists
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("cannot marshal project aliases: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, aliasesFileName), data, 0644); err != nil {
		return fmt.Errorf("cannot write project aliases file: %w", err)
	}

	return nil
}

// SetAlias sets an alias to project ID mapping
func (a *Aliases) SetAlias(alias string, projectID int) {
	a.ProjectAliases[alias] = projectID
}

// Resolve translates a --project argument into a numeric project ID,
// accepting either a configured alias or a literal numeric ID.
func (a *Aliases) Resolve(project string) (int, error) {
	if id, ok := a.ProjectAliases[project]; ok {
		return id, nil
	}
	if id, err := strconv.Atoi(project); err == nil && id > 0 {
		return id, nil
	}
	return 0, fmt.Errorf("unknown project %q: not a configured alias and not a numeric project ID", project)
}
