package config

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AttributionConfig is the immutable configuration surface spec.md §6
// names: batch cap, per-destination caps, rate-limit quota and window,
// aggregate-report scheduling jitter, contribution budget, the
// cross-network master switch, and an API version string. The pipeline
// passes APIVersion on to the aggregate path, but aggregate reports have
// no API-version field, so the value is not written into them.
// cmd/attributor builds the config once at process start and passes it
// down as a value — the design note in spec.md §9 ("Singleton
// configuration lookup" → inject the configuration struct) this repo
// follows throughout internal/pipeline and internal/batch. Every later
// invocation reuses that value; a change to the environment or the YAML
// file takes effect only when the process restarts.
type AttributionConfig struct {
	MaxAttributionsPerInvocation int

	MaxAggregateReportsPerDestination int
	MaxEventReportsPerDestination     int

	MaxAttributionPerRateLimitWindow int
	MaxDistinctReportingOrigins      int
	RateLimitWindow                  time.Duration

	AggregateMinReportDelay time.Duration
	AggregateMaxReportDelay time.Duration

	MaxSumOfAggregateValuesPerSource int64

	CrossNetworkEnabled bool

	APIVersion string
}

// overlay is the shape of the optional YAML file; any field left unset
// keeps the env-derived default, mirroring aliasing.Config's graceful
// degradation for .correlator.yaml.
//
//nolint:tagliatelle // snake_case is intentional for YAML config files
type overlay struct {
	MaxAttributionsPerInvocation *int `yaml:"max_attributions_per_invocation"`

	MaxAggregateReportsPerDestination *int `yaml:"max_aggregate_reports_per_destination"`
	MaxEventReportsPerDestination     *int `yaml:"max_event_reports_per_destination"`

	MaxAttributionPerRateLimitWindow *int    `yaml:"max_attribution_per_rate_limit_window"`
	MaxDistinctReportingOrigins      *int    `yaml:"max_distinct_reporting_origins"`
	RateLimitWindowMilliseconds      *int64  `yaml:"rate_limit_window_milliseconds"`
	AggregateMinReportDelay          *string `yaml:"aggregate_min_report_delay"`
	AggregateMaxReportDelay          *string `yaml:"aggregate_max_report_delay"`
	MaxSumOfAggregateValuesPerSource *int64  `yaml:"max_sum_of_aggregate_values_per_source"`
	CrossNetworkEnabled              *bool   `yaml:"cross_network_enabled"`
	APIVersion                       *string `yaml:"api_version"`
}

const (
	// DefaultConfigPath mirrors the teacher's dotfile convention
	// (.correlator.yaml → .attributor.yaml).
	DefaultConfigPath = ".attributor.yaml"

	// ConfigPathEnvVar names the environment variable that overrides
	// DefaultConfigPath.
	ConfigPathEnvVar = "ATTRIBUTOR_CONFIG_PATH"
)

func defaultAttributionConfig() AttributionConfig {
	return AttributionConfig{
		MaxAttributionsPerInvocation:       GetEnvInt("MAX_ATTRIBUTIONS_PER_INVOCATION", 100),
		MaxAggregateReportsPerDestination:  GetEnvInt("MAX_AGGREGATE_REPORTS_PER_DESTINATION", 1024),
		MaxEventReportsPerDestination:      GetEnvInt("MAX_EVENT_REPORTS_PER_DESTINATION", 1024),
		MaxAttributionPerRateLimitWindow:   GetEnvInt("MAX_ATTRIBUTION_PER_RATE_LIMIT_WINDOW", 3),
		MaxDistinctReportingOrigins:        GetEnvInt("MAX_DISTINCT_REPORTING_ORIGINS", 100),
		RateLimitWindow:                    GetEnvDuration("RATE_LIMIT_WINDOW", 30*24*time.Hour),
		AggregateMinReportDelay:            GetEnvDuration("AGGREGATE_MIN_REPORT_DELAY", 10*time.Minute),
		AggregateMaxReportDelay:            GetEnvDuration("AGGREGATE_MAX_REPORT_DELAY", time.Hour),
		MaxSumOfAggregateValuesPerSource:   GetEnvInt64("MAX_SUM_OF_AGGREGATE_VALUES_PER_SOURCE", 65536),
		CrossNetworkEnabled:                GetEnvBool("CROSS_NETWORK_ENABLED", false),
		APIVersion:                         GetEnvStr("API_VERSION", "v1"),
	}
}

// LoadAttributionConfig builds the configuration from the environment, then
// applies an optional YAML overlay at path. A missing or malformed overlay
// file is never fatal: it is logged and the env-derived defaults stand,
// exactly as aliasing.LoadConfig treats a missing or invalid
// .correlator.yaml.
func LoadAttributionConfig(path string) (AttributionConfig, error) {
	cfg := defaultAttributionConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("attribution config file not found, using env-derived defaults",
				slog.String("path", path))

			return cfg, nil
		}

		slog.Warn("failed to read attribution config file, using env-derived defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	if len(data) == 0 {
		return cfg, nil
	}

	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		slog.Warn("failed to parse attribution config file, using env-derived defaults",
			slog.String("path", path),
			slog.String("error", err.Error()))

		return cfg, nil
	}

	applyOverlay(&cfg, ov)

	return cfg, nil
}

// LoadAttributionConfigFromEnv loads config from the path named by
// ATTRIBUTOR_CONFIG_PATH, falling back to DefaultConfigPath.
func LoadAttributionConfigFromEnv() (AttributionConfig, error) {
	path := GetEnvStr(ConfigPathEnvVar, DefaultConfigPath)

	return LoadAttributionConfig(path)
}

func applyOverlay(cfg *AttributionConfig, ov overlay) {
	if ov.MaxAttributionsPerInvocation != nil {
		cfg.MaxAttributionsPerInvocation = *ov.MaxAttributionsPerInvocation
	}

	if ov.MaxAggregateReportsPerDestination != nil {
		cfg.MaxAggregateReportsPerDestination = *ov.MaxAggregateReportsPerDestination
	}

	if ov.MaxEventReportsPerDestination != nil {
		cfg.MaxEventReportsPerDestination = *ov.MaxEventReportsPerDestination
	}

	if ov.MaxAttributionPerRateLimitWindow != nil {
		cfg.MaxAttributionPerRateLimitWindow = *ov.MaxAttributionPerRateLimitWindow
	}

	if ov.MaxDistinctReportingOrigins != nil {
		cfg.MaxDistinctReportingOrigins = *ov.MaxDistinctReportingOrigins
	}

	if ov.RateLimitWindowMilliseconds != nil {
		cfg.RateLimitWindow = time.Duration(*ov.RateLimitWindowMilliseconds) * time.Millisecond
	}

	if ov.AggregateMinReportDelay != nil {
		if d, err := time.ParseDuration(*ov.AggregateMinReportDelay); err == nil {
			cfg.AggregateMinReportDelay = d
		}
	}

	if ov.AggregateMaxReportDelay != nil {
		if d, err := time.ParseDuration(*ov.AggregateMaxReportDelay); err == nil {
			cfg.AggregateMaxReportDelay = d
		}
	}

	if ov.MaxSumOfAggregateValuesPerSource != nil {
		cfg.MaxSumOfAggregateValuesPerSource = *ov.MaxSumOfAggregateValuesPerSource
	}

	if ov.CrossNetworkEnabled != nil {
		cfg.CrossNetworkEnabled = *ov.CrossNetworkEnabled
	}

	if ov.APIVersion != nil {
		cfg.APIVersion = *ov.APIVersion
	}
}
