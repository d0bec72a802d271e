package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSchedule validates a five-field cron expression
// ("minute hour day month weekday") or a descriptor such as "@every 30s".
// It accepts exactly what cron.ParseStandard accepts, which is the parser the
// poll loop uses for POLL_SCHEDULE.
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", schedule, err)
	}
	return nil
}

// ValidateDuration validates that min <= duration <= max.
func ValidateDuration(duration, min, max time.Duration) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%v) cannot be greater than max (%v)", min, max)
	}
	if duration < min {
		return fmt.Errorf("duration %v is below minimum %v", duration, min)
	}
	if duration > max {
		return fmt.Errorf("duration %v exceeds maximum %v", duration, max)
	}
	return nil
}

// ValidateIntRange validates that min <= value <= max.
func ValidateIntRange(value, min, max int) error {
	if min > max {
		return fmt.Errorf("invalid range: min (%d) cannot be greater than max (%d)", min, max)
	}
	if value < min {
		return fmt.Errorf("value %d is below minimum %d", value, min)
	}
	if value > max {
		return fmt.Errorf("value %d exceeds maximum %d", value, max)
	}
	return nil
}

// ValidatePositiveDuration rejects zero and negative durations.
func ValidatePositiveDuration(duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %v", duration)
	}
	return nil
}

// ValidatePort validates a TCP port number.
func ValidatePort(port int) error {
	return ValidateIntRange(port, 1, 65535)
}
