package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewRunConfig()

	assert.Equal(t, "gh", cfg.Source.Name)
	assert.Equal(t, PaginationPage, cfg.Source.Pagination)
	assert.Equal(t, 100, cfg.Source.PageSize)
	assert.Equal(t, "tt", cfg.Destination.Name)
	assert.Equal(t, "20240904", cfg.Destination.APIVersion)
	assert.Equal(t, 200*time.Millisecond, cfg.Transport.RequestDelay)
	assert.Equal(t, 1, cfg.Engine.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunConfig)
		want   string
	}{
		{"missing source name", func(c *RunConfig) { c.Source.Name = "" }, "source.name"},
		{"bad pagination", func(c *RunConfig) { c.Source.Pagination = "offset" }, "pagination"},
		{"zero page size", func(c *RunConfig) { c.Source.PageSize = 0 }, "page_size"},
		{"negative delay", func(c *RunConfig) { c.Transport.RequestDelay = -1 }, "request_delay"},
		{"zero workers", func(c *RunConfig) { c.Engine.Workers = 0 }, "workers"},
		{"negative kind limit", func(c *RunConfig) { c.Engine.KindLimits = map[string]int{"job": -1} }, "kind_limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewRunConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  name: gh
  base_url: https://harvest.example.test
  page_size: 50
engine:
  workers: 4
  dry_run: true
  kind_limits:
    candidate: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://harvest.example.test", cfg.Source.BaseURL)
	assert.Equal(t, 50, cfg.Source.PageSize)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.True(t, cfg.Engine.DryRun)
	assert.Equal(t, 10, cfg.Engine.KindLimit("candidate"))
	assert.Equal(t, 0, cfg.Engine.KindLimit("job"))

	// Untouched sections keep their defaults.
	assert.Equal(t, "tt", cfg.Destination.Name)
	assert.Equal(t, 200*time.Millisecond, cfg.Transport.RequestDelay)
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("ATSYNC_TEST_TOKEN", "sekrit")

	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
destination:
  token: ${ATSYNC_TEST_TOKEN}
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sekrit", cfg.Destination.Token)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
