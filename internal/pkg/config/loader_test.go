package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "custom_value")
	assert.Equal(t, "custom_value", LoadEnvString("TEST_STRING", "default_value"))

	t.Setenv("TEST_STRING", "")
	assert.Equal(t, "default_value", LoadEnvString("TEST_STRING", "default_value"))
}

func TestLoadEnvWithFallback(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		want         string
		wantFallback bool
	}{
		{name: "valid value", value: "*/5 * * * *", want: "*/5 * * * *"},
		{name: "descriptor", value: "@every 30s", want: "@every 30s"},
		{name: "unset uses default", value: "", want: "@every 1m"},
		{name: "invalid falls back", value: "not a schedule", want: "@every 1m", wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_SCHEDULE", tt.value)

			result := LoadEnvWithFallback("TEST_SCHEDULE", "@every 1m", ValidateCronSchedule)

			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			if tt.wantFallback {
				assert.Len(t, result.Warnings, 1)
				assert.Contains(t, result.Warnings[0], "Invalid TEST_SCHEDULE='not a schedule'")
				assert.Contains(t, result.Warnings[0], "falling back to default '@every 1m'")
			} else {
				assert.Empty(t, result.Warnings)
			}
		})
	}
}

func TestLoadEnvWithFallback_NilValidator(t *testing.T) {
	t.Setenv("TEST_STRING", "anything goes")

	result := LoadEnvWithFallback("TEST_STRING", "default", nil)

	assert.Equal(t, "anything goes", result.Value)
	assert.False(t, result.FallbackApplied)
}

func TestLoadEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		want         time.Duration
		wantFallback bool
	}{
		{name: "valid", value: "45s", want: 45 * time.Second},
		{name: "compound", value: "1m30s", want: 90 * time.Second},
		{name: "unset", value: "", want: 10 * time.Second},
		{name: "unparseable", value: "soon", want: 10 * time.Second, wantFallback: true},
		{name: "zero rejected", value: "0s", want: 10 * time.Second, wantFallback: true},
		{name: "negative rejected", value: "-5s", want: 10 * time.Second, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_TIMEOUT", tt.value)

			result := LoadEnvDuration("TEST_TIMEOUT", 10*time.Second, ValidatePositiveDuration)

			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvSeconds(t *testing.T) {
	t.Setenv("TEST_DELAY_SECS", "90")
	result := LoadEnvSeconds("TEST_DELAY_SECS", time.Minute, ValidatePositiveDuration)
	assert.Equal(t, 90*time.Second, result.Value)
	assert.False(t, result.FallbackApplied)

	t.Setenv("TEST_DELAY_SECS", "1.5")
	result = LoadEnvSeconds("TEST_DELAY_SECS", time.Minute, ValidatePositiveDuration)
	assert.Equal(t, time.Minute, result.Value)
	assert.True(t, result.FallbackApplied)
	assert.Contains(t, result.Warnings[0], "invalid integer format")
}

func TestLoadEnvSeconds_RejectsOverflow(t *testing.T) {
	// 18446744074s wraps to roughly 290ms if multiplied unchecked.
	for _, value := range []string{"18446744074", "9223372037", "-9223372037"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("TEST_DELAY_SECS", value)
			result := LoadEnvSeconds("TEST_DELAY_SECS", time.Minute, ValidatePositiveDuration)
			assert.Equal(t, time.Minute, result.Value)
			assert.True(t, result.FallbackApplied)
			require.Len(t, result.Warnings, 1)
			assert.Contains(t, result.Warnings[0], "out of range")
		})
	}

	t.Setenv("TEST_DELAY_SECS", "9223372036")
	result := LoadEnvSeconds("TEST_DELAY_SECS", time.Minute, ValidatePositiveDuration)
	assert.False(t, result.FallbackApplied)
	assert.Equal(t, 9223372036*time.Second, result.Value)
}

func TestLoadEnvInt(t *testing.T) {
	inRange := func(v int) error { return ValidateIntRange(v, 0, 1000) }

	tests := []struct {
		name         string
		value        string
		want         int
		wantFallback bool
	}{
		{name: "valid", value: "50", want: 50},
		{name: "zero allowed", value: "0", want: 0},
		{name: "unset", value: "", want: 20},
		{name: "trailing garbage", value: "12abc", want: 20, wantFallback: true},
		{name: "out of range", value: "5000", want: 20, wantFallback: true},
		{name: "negative", value: "-1", want: 20, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.value)

			result := LoadEnvInt("TEST_INT", 20, inRange)

			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvInt_ValidatorSeesParsedValue(t *testing.T) {
	t.Setenv("TEST_INT", "7")

	var seen int
	result := LoadEnvInt("TEST_INT", 1, func(v int) error {
		seen = v
		return errors.New("rejected")
	})

	assert.Equal(t, 7, seen)
	assert.Equal(t, 1, result.Value)
	assert.Contains(t, result.Warnings[0], "rejected")
}

func TestLoadEnvBool(t *testing.T) {
	tests := []struct {
		value        string
		want         bool
		wantFallback bool
	}{
		{value: "true", want: true},
		{value: "1", want: true},
		{value: "FALSE", want: false},
		{value: "0", want: false},
		{value: "", want: true},
		{value: "yes", want: true, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)

			result := LoadEnvBool("TEST_BOOL", true)

			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}
