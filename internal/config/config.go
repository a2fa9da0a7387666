// Package config reads service configuration from environment variables,
// following the same convention as the rest of the deployment (a .env file
// may be loaded by main before this runs).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "ACCESSLAB_"

// Config carries every tunable the service consumes.
type Config struct {
	Addr          string
	PGDSN         string
	SessionSecret string
	LogSecret     string
	SessionTTL    time.Duration

	LockoutThreshold int
	LockoutDuration  time.Duration

	// Business-hours window for rule-based access, [Open, Close) in the
	// server's local time zone.
	HoursOpen  int
	HoursClose int

	// TOTPSkew is the tolerated clock drift in 30-second steps.
	TOTPSkew uint
}

// Load reads configuration from the environment, applying defaults.
// Secrets have no defaults and are validated by the caller where required.
func Load() (Config, error) {
	cfg := Config{
		Addr:          getenv("ADDR", ":8080"),
		PGDSN:         getenv("PG_DSN", ""),
		SessionSecret: getenv("SESSION_SECRET", ""),
		LogSecret:     getenv("LOG_KEY", ""),
	}

	ttlMinutes, err := getint("SESSION_TTL_MINUTES", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = time.Duration(ttlMinutes) * time.Minute

	cfg.LockoutThreshold, err = getint("LOCKOUT_THRESHOLD", 5)
	if err != nil {
		return Config{}, err
	}
	lockMinutes, err := getint("LOCKOUT_MINUTES", 15)
	if err != nil {
		return Config{}, err
	}
	cfg.LockoutDuration = time.Duration(lockMinutes) * time.Minute

	cfg.HoursOpen, err = getint("HOURS_OPEN", 9)
	if err != nil {
		return Config{}, err
	}
	cfg.HoursClose, err = getint("HOURS_CLOSE", 17)
	if err != nil {
		return Config{}, err
	}

	skew, err := getint("TOTP_SKEW", 1)
	if err != nil {
		return Config{}, err
	}
	if skew < 0 {
		return Config{}, fmt.Errorf("config: %sTOTP_SKEW must be non-negative", envPrefix)
	}
	cfg.TOTPSkew = uint(skew)

	if cfg.LockoutThreshold < 1 {
		return Config{}, fmt.Errorf("config: %sLOCKOUT_THRESHOLD must be at least 1", envPrefix)
	}
	if cfg.HoursOpen < 0 || cfg.HoursClose > 24 || cfg.HoursOpen >= cfg.HoursClose {
		return Config{}, fmt.Errorf("config: business hours window %d-%d is invalid", cfg.HoursOpen, cfg.HoursClose)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(envPrefix + key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(envPrefix + key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s%s must be an integer: %w", envPrefix, key, err)
	}
	return v, nil
}
