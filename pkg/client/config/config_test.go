package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultDaemonURL, cfg.DaemonURL)
}

func TestPagerFromEnv(t *testing.T) {
	t.Setenv("CARTEL_PAGER", "most")
	t.Setenv("HOME", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"most"}, cfg.PagerArgs())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := &Config{DaemonURL: "http://example.com", PagerCmd: "cat"}
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", loaded.DaemonURL)
	assert.Equal(t, []string{"cat"}, loaded.PagerArgs())
}

func TestDefaultPagerArgsSplit(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, []string{"less", "+F"}, cfg.PagerArgs())
}
