package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvStr(t *testing.T) {
	t.Setenv("ATTRIBUTOR_TEST_STR", "value")
	assert.Equal(t, "value", GetEnvStr("ATTRIBUTOR_TEST_STR", "default"))
	assert.Equal(t, "default", GetEnvStr("ATTRIBUTOR_TEST_STR_UNSET", "default"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("ATTRIBUTOR_TEST_INT", "42")
	assert.Equal(t, 42, GetEnvInt("ATTRIBUTOR_TEST_INT", 1))

	t.Setenv("ATTRIBUTOR_TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 1, GetEnvInt("ATTRIBUTOR_TEST_INT_BAD", 1))
}

func TestGetEnvInt64(t *testing.T) {
	t.Setenv("ATTRIBUTOR_TEST_INT64", "9999999999")
	assert.Equal(t, int64(9999999999), GetEnvInt64("ATTRIBUTOR_TEST_INT64", 1))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true}, {"1", true}, {"yes", true}, {"YES", true},
		{"false", false}, {"0", false}, {"no", false},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("ATTRIBUTOR_TEST_BOOL", tc.value)
			assert.Equal(t, tc.want, GetEnvBool("ATTRIBUTOR_TEST_BOOL", !tc.want))
		})
	}

	assert.True(t, GetEnvBool("ATTRIBUTOR_TEST_BOOL_UNSET", true))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("ATTRIBUTOR_TEST_DURATION", "5m")
	assert.Equal(t, 5*time.Minute, GetEnvDuration("ATTRIBUTOR_TEST_DURATION", time.Second))

	t.Setenv("ATTRIBUTOR_TEST_DURATION_BAD", "not-a-duration")
	assert.Equal(t, time.Second, GetEnvDuration("ATTRIBUTOR_TEST_DURATION_BAD", time.Second))
}

func TestGetEnvLogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			t.Setenv("ATTRIBUTOR_TEST_LOG_LEVEL", tc.value)
			assert.Equal(t, tc.want, GetEnvLogLevel("ATTRIBUTOR_TEST_LOG_LEVEL", slog.LevelInfo))
		})
	}
}

func TestParseCommaSeparatedList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, ParseCommaSeparatedList("a, b,c"))
	assert.Equal(t, []string{}, ParseCommaSeparatedList(""))
	assert.Equal(t, []string{"a"}, ParseCommaSeparatedList("a,,"))
}
