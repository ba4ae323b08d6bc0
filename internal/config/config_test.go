package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "edgegate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.EdgeStats.MaxWindow)
	assert.Equal(t, 50, cfg.EdgeStats.MinSample)
	assert.InDelta(t, 0.90, cfg.Gate.FullThreshold, 1e-9)
	assert.Equal(t, 30, cfg.Requirements.MinTrades)
	assert.Equal(t, ":8090", cfg.API.ListenAddr)
}

func TestLoad_PartialOverrideKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
edge_stats:
  min_sample: 25
gate:
  full_threshold: 0.95
redis:
  enabled: true
  addr: "redis.internal:6379"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.EdgeStats.MinSample)
	assert.Equal(t, 1000, cfg.EdgeStats.MaxWindow, "absent key keeps default")
	assert.InDelta(t, 0.95, cfg.Gate.FullThreshold, 1e-9)
	assert.InDelta(t, 0.75, cfg.Gate.ProbeMediumThreshold, 1e-9)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "gate: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config YAML")
}

func TestValidate_RejectsBadSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "zero max window",
			mutate: func(c *Config) { c.EdgeStats.MaxWindow = 0 },
			want:   "max_window",
		},
		{
			name:   "min sample above window",
			mutate: func(c *Config) { c.EdgeStats.MinSample = 2000 },
			want:   "min_sample",
		},
		{
			name:   "non-increasing gate thresholds",
			mutate: func(c *Config) { c.Gate.ProbeMediumThreshold = 0.95 },
			want:   "strictly increasing",
		},
		{
			name:   "quality weights off balance",
			mutate: func(c *Config) { c.Quality.WeightSignal = 0.9 },
			want:   "sum to 1.0",
		},
		{
			name:   "negative capital",
			mutate: func(c *Config) { c.Backtest.InitialCapital = -1 },
			want:   "initial_capital",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDefault_Validates(t *testing.T) {
	require.NoError(t, Default().Validate())
}
