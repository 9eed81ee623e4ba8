package providers

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// FileSource loads provider configurations from a YAML file and caches
// them in memory. Reload re-reads the file; a failed reload keeps the
// previously loaded set.
type FileSource struct {
	path string
	StaticSource
}

type fileSchema struct {
	Providers []Provider `yaml:"providers"`
}

// NewFileSource creates a source backed by the YAML file at path and
// performs the initial load.
func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the file and swaps the provider set atomically.
func (s *FileSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read providers file: %w", err)
	}

	var schema fileSchema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return fmt.Errorf("failed to parse providers file %s: %w", s.path, err)
	}

	for i, p := range schema.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider at index %d has empty id", i)
		}
	}

	s.Replace(schema.Providers)
	return nil
}

// Path returns the backing file path.
func (s *FileSource) Path() string {
	return s.path
}
