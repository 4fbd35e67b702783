package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // timezone database for hosts without one
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "text"}
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.RemoteEnabled() && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters when database.dsn is set (got %d)", len(c.Auth.JWTSecret))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be within 1..65535 (got %d)", c.Server.Port)
	}

	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("server.rate_limit_per_minute must not be negative")
	}

	if strings.TrimSpace(c.Local.Path) == "" {
		return fmt.Errorf("local.path is required")
	}

	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if err := c.Tracker.validate(); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}

	return nil
}

func (l *LogConfig) validate() error {
	if !slices.Contains(validLogLevels, strings.ToLower(l.Level)) {
		return fmt.Errorf("level must be one of %v (got %q)", validLogLevels, l.Level)
	}
	if !slices.Contains(validLogFormats, strings.ToLower(l.Format)) {
		return fmt.Errorf("format must be one of %v (got %q)", validLogFormats, l.Format)
	}
	return nil
}

func (t *TrackerConfig) validate() error {
	if t.AuditProbability < 0 || t.AuditProbability > 1 {
		return fmt.Errorf("audit_probability must be within [0, 1] (got %v)", t.AuditProbability)
	}

	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return fmt.Errorf("timezone %q: %w", t.Timezone, err)
	}
	t.Location = loc

	return nil
}
