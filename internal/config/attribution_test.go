package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAttributionConfig_MissingFile(t *testing.T) {
	cfg, err := LoadAttributionConfig("/nonexistent/path/.attributor.yaml")

	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MaxAttributionsPerInvocation)
	assert.Equal(t, 3, cfg.MaxAttributionPerRateLimitWindow)
	assert.Equal(t, "v1", cfg.APIVersion)
}

func TestLoadAttributionConfig_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".attributor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	cfg, err := LoadAttributionConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MaxAttributionsPerInvocation)
}

func TestLoadAttributionConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".attributor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_attributions_per_invocation: [unterminated"), 0o644))

	cfg, err := LoadAttributionConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MaxAttributionsPerInvocation)
}

func TestLoadAttributionConfig_OverlayOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".attributor.yaml")
	content := `
max_attributions_per_invocation: 250
max_attribution_per_rate_limit_window: 5
rate_limit_window_milliseconds: 3600000
aggregate_min_report_delay: "5m"
aggregate_max_report_delay: "30m"
cross_network_enabled: true
api_version: "v2"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadAttributionConfig(path)

	require.NoError(t, err)
	assert.Equal(t, 250, cfg.MaxAttributionsPerInvocation)
	assert.Equal(t, 5, cfg.MaxAttributionPerRateLimitWindow)
	assert.Equal(t, time.Hour, cfg.RateLimitWindow)
	assert.Equal(t, 5*time.Minute, cfg.AggregateMinReportDelay)
	assert.Equal(t, 30*time.Minute, cfg.AggregateMaxReportDelay)
	assert.True(t, cfg.CrossNetworkEnabled)
	assert.Equal(t, "v2", cfg.APIVersion)

	// Fields absent from the overlay keep their env-derived defaults.
	assert.Equal(t, 1024, cfg.MaxEventReportsPerDestination)
}

func TestLoadAttributionConfig_PartialOverlayLeavesRestAtDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".attributor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_version: \"v3\"\n"), 0o644))

	cfg, err := LoadAttributionConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "v3", cfg.APIVersion)
	assert.Equal(t, 100, cfg.MaxAttributionsPerInvocation)
	assert.False(t, cfg.CrossNetworkEnabled)
}

func TestLoadAttributionConfigFromEnv_UsesConfigPathEnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_version: \"v9\"\n"), 0o644))

	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadAttributionConfigFromEnv()

	require.NoError(t, err)
	assert.Equal(t, "v9", cfg.APIVersion)
}
