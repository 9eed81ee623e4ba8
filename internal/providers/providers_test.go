package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSource(t *testing.T) {
	src := NewStaticSource(
		Provider{ID: "cfg-1", Name: "Anthropic Direct", Enabled: true},
		Provider{ID: "cfg-2", Name: "Relay", Enabled: false},
	)

	assert.Len(t, src.List(), 2)

	p, ok := src.Get("cfg-1")
	require.True(t, ok)
	assert.Equal(t, "Anthropic Direct", p.Name)

	_, ok = src.Get("missing")
	assert.False(t, ok)
}

func TestNameResolution(t *testing.T) {
	src := NewStaticSource(Provider{ID: "cfg-1", Name: "Anthropic Direct", Enabled: true})

	name, ok := Name(src, "cfg-1")
	require.True(t, ok)
	assert.Equal(t, "Anthropic Direct", name)

	name, ok = Name(src, "deleted")
	assert.False(t, ok)
	assert.Empty(t, name)
}

func TestIsEnabled(t *testing.T) {
	src := NewStaticSource(
		Provider{ID: "on", Name: "On", Enabled: true},
		Provider{ID: "off", Name: "Off", Enabled: false},
	)

	assert.True(t, IsEnabled(src, "on"))
	assert.False(t, IsEnabled(src, "off"))
	assert.False(t, IsEnabled(src, "missing"))
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")

	content := `providers:
  - id: cfg-1
    name: Anthropic Direct
    enabled: true
    base_url: https://api.anthropic.com
  - id: cfg-2
    name: Relay
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	src, err := NewFileSource(path)
	require.NoError(t, err)

	assert.Len(t, src.List(), 2)

	p, ok := src.Get("cfg-1")
	require.True(t, ok)
	assert.Equal(t, "Anthropic Direct", p.Name)
	assert.Equal(t, "https://api.anthropic.com", p.BaseURL)
	assert.True(t, p.Enabled)
}

func TestFileSourceReloadKeepsOldSetOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")

	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - id: cfg-1\n    name: One\n    enabled: true\n"), 0o644))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	assert.Len(t, src.List(), 1)

	require.NoError(t, os.Remove(path))

	err = src.Reload()
	assert.Error(t, err)
	// Previous set survives a failed reload.
	assert.Len(t, src.List(), 1)
}

func TestFileSourceRejectsEmptyID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "providers.yaml")

	require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: Nameless\n    enabled: true\n"), 0o644))

	_, err := NewFileSource(path)
	assert.Error(t, err)
}
