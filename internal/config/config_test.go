package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ".line-clamp-3", cfg.Site.Selector)
	assert.Len(t, cfg.Groups, 5)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
site:
  url: https://parties.example.test/browse?tab=open
  source: bogus
dispatch:
  interval_ms: -5
groups:
  - name: " Fishing "
    keywords: [fish]
    webhook: https://hooks.example.test/1
    color: "#38bdf8"
  - name: Cakes
    keywords: [cake]
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://parties.example.test", cfg.Site.BaseURL)
	assert.Equal(t, "chrome", cfg.Site.Source)
	assert.Equal(t, 1000, cfg.Dispatch.IntervalMs)
	assert.Equal(t, "file", cfg.Store.Driver)

	groups := cfg.InterestGroups()
	require.Len(t, groups, 2)
	assert.Equal(t, "Fishing", groups[0].Name)
	assert.True(t, groups[0].Enabled)
	assert.Equal(t, 0x38bdf8, groups[0].Color)
	assert.Equal(t, "https://hooks.example.test/1", groups[0].Webhook)
	assert.False(t, groups[1].Enabled)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Groups = append(cfg.Groups,
		GroupConfig{Name: "Cakes"},
		GroupConfig{Name: ""},
		GroupConfig{Name: "a::b"},
		GroupConfig{Name: "Bad", Color: "purple"},
	)
	cfg.Store.Driver = "redis"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "site.url is required")
	assert.Contains(t, msg, `duplicate name "Cakes"`)
	assert.Contains(t, msg, "name is required")
	assert.Contains(t, msg, `may not contain "::"`)
	assert.Contains(t, msg, "invalid color")
	assert.Contains(t, msg, "store.driver")
}

func TestParseColor(t *testing.T) {
	for in, want := range map[string]int{"": 0, "#FFFFFF": 0xffffff, "1e90ff": 0x1e90ff, "0x00ff00": 0x00ff00} {
		got, err := ParseColor(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseColor("#fff")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Site.URL = "https://parties.example.test"
	cfg.Groups[0].Webhook = "https://hooks.example.test/cakes"
	require.NoError(t, cfg.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.test/cakes", back.Groups[0].Webhook)
	assert.Equal(t, cfg.Site.URL, back.Site.URL)
}
