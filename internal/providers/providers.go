// Package providers exposes the upstream API configurations a session's
// traffic can be routed through. The workspace core only reads this data:
// it resolves display names for tabs and validates create/switch/restore
// targets. Editing configurations belongs to the proxy subsystem, not here.
package providers

import "sync"

// Provider describes one upstream configuration.
type Provider struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// Source is a read-only view of provider configurations.
type Source interface {
	// List returns all known providers, enabled or not.
	List() []Provider
	// Get looks up a provider by ID.
	Get(id string) (Provider, bool)
}

// Name resolves a provider's display name. The second return is false when
// the provider is unknown; callers degrade to an empty name rather than fail.
func Name(s Source, id string) (string, bool) {
	p, ok := s.Get(id)
	if !ok {
		return "", false
	}
	return p.Name, true
}

// IsEnabled reports whether the provider exists and is enabled.
func IsEnabled(s Source, id string) bool {
	p, ok := s.Get(id)
	return ok && p.Enabled
}

// StaticSource is an in-memory Source, used in embedded mode and tests.
type StaticSource struct {
	mu        sync.RWMutex
	providers []Provider
	byID      map[string]Provider
}

// NewStaticSource creates a source holding the given providers.
func NewStaticSource(providers ...Provider) *StaticSource {
	s := &StaticSource{}
	s.Replace(providers)
	return s
}

// Replace swaps the full provider set.
func (s *StaticSource) Replace(providers []Provider) {
	byID := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byID[p.ID] = p
	}

	s.mu.Lock()
	s.providers = append([]Provider(nil), providers...)
	s.byID = byID
	s.mu.Unlock()
}

// List returns all known providers in declaration order.
func (s *StaticSource) List() []Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Provider(nil), s.providers...)
}

// Get looks up a provider by ID.
func (s *StaticSource) Get(id string) (Provider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	return p, ok
}
