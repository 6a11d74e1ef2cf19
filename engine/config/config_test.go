package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "editor.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[window]
width = 1920
height = 1080

[bindless]
max_slots = 256
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1920, cfg.Window.Width)
	assert.Equal(t, 1080, cfg.Window.Height)
	assert.Equal(t, 256, cfg.Bindless.MaxSlots)

	// Untouched sections keep their defaults.
	assert.Equal(t, "lumen editor", cfg.Window.Title)
	assert.Equal(t, "fifo", cfg.Renderer.PresentMode)
	assert.Equal(t, 64, cfg.Bindless.InitialCapacity)
	assert.Equal(t, 4, cfg.Importer.DecodeWorkers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("window = [broken"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.toml")
}
