package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/actionflow/pkg/actionflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDuration verifies duration extraction with various input types.
func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want time.Duration
	}{
		{"string duration", map[string]any{"timeout": "30s"}, 30 * time.Second},
		{"int seconds", map[string]any{"timeout": 5}, 5 * time.Second},
		{"int64 seconds", map[string]any{"timeout": int64(2)}, 2 * time.Second},
		{"float seconds", map[string]any{"timeout": 1.5}, 1500 * time.Millisecond},
		{"native duration", map[string]any{"timeout": time.Minute}, time.Minute},
		{"invalid string", map[string]any{"timeout": "soon"}, 10 * time.Second},
		{"wrong type", map[string]any{"timeout": true}, 10 * time.Second},
		{"missing", nil, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := config.New(tt.data).Duration("timeout", 10*time.Second)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestAccessors verifies scalar extraction and defaults.
func TestAccessors(t *testing.T) {
	cfg := config.New(map[string]any{
		"name":    "alice",
		"count":   42,
		"ratio":   3.0,
		"frac":    3.5,
		"enabled": true,
		"nested":  map[string]any{"key": "value"},
	})

	assert.Equal(t, "alice", cfg.String("name", "x"))
	assert.Equal(t, "x", cfg.String("count", "x"))
	assert.Equal(t, 42, cfg.Int("count", 0))
	assert.Equal(t, 3, cfg.Int("ratio", 0))
	assert.Equal(t, 7, cfg.Int("frac", 7), "fractional floats fall back to default")
	assert.True(t, cfg.Bool("enabled", false))
	assert.False(t, cfg.Bool("name", false))
	assert.Equal(t, "value", cfg.Sub("nested").String("key", ""))
	assert.Empty(t, cfg.Sub("name").Raw())
	assert.True(t, cfg.Has("nested"))
	assert.False(t, cfg.Has("missing"))
	assert.ElementsMatch(t, []string{"name", "count", "ratio", "frac", "enabled", "nested"}, cfg.Keys())
}

// TestFromFile verifies format detection by extension.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "settings.YML")
	require.NoError(t, os.WriteFile(yamlPath, []byte("name: yaml\n"), 0o600))
	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.String("name", ""))

	jsonPath := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"name":"json"}`), 0o600))
	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.String("name", ""))

	cuePath := filepath.Join(dir, "settings.cue")
	require.NoError(t, os.WriteFile(cuePath, []byte("_base: \"cu\"\nname: _base + \"e\"\n"), 0o600))
	cfg, err = config.FromFile(cuePath)
	require.NoError(t, err)
	assert.Equal(t, "cue", cfg.String("name", ""))
	assert.False(t, cfg.Has("_base"))

	tomlPath := filepath.Join(dir, "settings.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`name = "toml"`), 0o600))
	_, err = config.FromFile(tomlPath)
	assert.ErrorContains(t, err, "unsupported settings file extension")

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = config.FromYAML([]byte("key: [unclosed"))
	assert.Error(t, err)
	_, err = config.FromJSON([]byte("{"))
	assert.Error(t, err)
	_, err = config.FromCUE([]byte("name: string"))
	assert.Error(t, err)
}

func TestLoadFile_CUE(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.cue")
	src := `
_fast: {latest: true, warn_timeout: "2s"}

warn_timeout: "45s"
logics: {
	search:  _fast
	suggest: _fast & {when: "data.q != ''"}
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))

	s, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, s.WarnTimeout)
	require.Contains(t, s.Logics, "suggest")
	assert.Equal(t, 2*time.Second, s.Logics["suggest"].WarnTimeout)
	require.NotNil(t, s.Logics["search"].Latest)
	assert.True(t, *s.Logics["search"].Latest)
	require.NotNil(t, s.Logics["suggest"].When)
	assert.Equal(t, "data.q != ''", s.Logics["suggest"].When.String())
}
