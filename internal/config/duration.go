package config

import (
	"fmt"
	"strings"
	"time"
)

const DefaultShutdownTimeout = 15 * time.Second

// ParseDurationField parses an optional non-negative Go duration; empty means 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid config: %s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid config: %s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}

// Shutdown returns shutdown_timeout or its default.
func (c Config) Shutdown() time.Duration {
	d, err := ParseDurationOrDefault("shutdown_timeout", c.ShutdownTimeout, DefaultShutdownTimeout)
	if err != nil {
		return DefaultShutdownTimeout
	}
	return d
}
