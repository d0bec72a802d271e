// Package config provides fail-open loaders for environment variables.
//
// Every loader returns a LoadResult: either the parsed value or, when the
// variable is unset, empty, unparseable or rejected by the validator, the
// default. Rejections are reported as warnings instead of errors so that
// callers decide how loud to be about them.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"
)

// LoadResult is the outcome of loading one configuration value.
//
//	result := LoadEnvDuration("FETCH_TIMEOUT", 10*time.Second, ValidatePositiveDuration)
//	for _, w := range result.Warnings {
//	    slog.Warn("configuration fallback", slog.String("warning", w))
//	}
//	timeout := result.Value
type LoadResult[T any] struct {
	Value           T
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString returns the value of envKey, or defaultValue if it is unset or empty.
// No validation is performed.
func LoadEnvString(envKey, defaultValue string) string {
	value := os.Getenv(envKey)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadEnvWithFallback loads a string and validates it. A nil validator
// accepts any non-empty value.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) LoadResult[string] {
	return loadEnv(envKey, defaultValue, func(s string) (string, error) { return s, nil }, validator)
}

// LoadEnvDuration loads a Go duration string such as "30s" or "1h30m".
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) LoadResult[time.Duration] {
	return loadEnv(envKey, defaultValue, time.ParseDuration, validator)
}

// LoadEnvSeconds loads a whole number of seconds, e.g. POLL_DELAY_SECS=60.
func LoadEnvSeconds(envKey string, defaultValue time.Duration, validator func(time.Duration) error) LoadResult[time.Duration] {
	parse := func(s string) (time.Duration, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		if limit := math.MaxInt64 / int64(time.Second); int64(n) > limit || int64(n) < -limit {
			return 0, fmt.Errorf("out of range, max %d seconds", limit)
		}
		return time.Duration(n) * time.Second, nil
	}
	return loadEnv(envKey, defaultValue, parse, validator)
}

// LoadEnvInt loads a base-10 integer.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) LoadResult[int] {
	parse := func(s string) (int, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid integer format")
		}
		return n, nil
	}
	return loadEnv(envKey, defaultValue, parse, validator)
}

// LoadEnvBool loads a boolean in any form accepted by strconv.ParseBool.
func LoadEnvBool(envKey string, defaultValue bool) LoadResult[bool] {
	parse := func(s string) (bool, error) {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("invalid boolean format, expected 'true' or 'false'")
		}
		return b, nil
	}
	return loadEnv(envKey, defaultValue, parse, nil)
}

// loadEnv is the shared read, parse, validate, fall back pipeline.
// Warning format: "Invalid {envKey}='{value}': {error}, falling back to default '{default}'"
func loadEnv[T any](envKey string, defaultValue T, parse func(string) (T, error), validator func(T) error) LoadResult[T] {
	raw := os.Getenv(envKey)
	if raw == "" {
		return LoadResult[T]{Value: defaultValue}
	}

	fallback := func(err error) LoadResult[T] {
		return LoadResult[T]{
			Value: defaultValue,
			Warnings: []string{fmt.Sprintf(
				"Invalid %s='%s': %v, falling back to default '%v'",
				envKey, raw, err, defaultValue,
			)},
			FallbackApplied: true,
		}
	}

	value, err := parse(raw)
	if err != nil {
		return fallback(err)
	}
	if validator != nil {
		if err := validator(value); err != nil {
			return fallback(err)
		}
	}
	return LoadResult[T]{Value: value}
}
