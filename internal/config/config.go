package config

import (
	"os"
	"strconv"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate.
type Config struct {
	AdminUser     string
	AdminPassword string

	DatabaseURL string

	ListenAddr string

	// ReconcileIntervalHours controls how often the reconciliation
	// worker re-checks every credit scope against its ceiling. The
	// sweep also runs once at startup.
	ReconcileIntervalHours int

	// SnapshotIntervalMinutes controls how often per-KPI coverage
	// snapshots are recorded for trend charts.
	SnapshotIntervalMinutes int
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		AdminUser:               getenv("APP_ADMIN_USER", "admin"),
		AdminPassword:           getenv("APP_ADMIN_PASSWORD", "changeme"),
		DatabaseURL:             os.Getenv("APP_DATABASE_URL"),
		ListenAddr:              getenv("APP_LISTEN_ADDR", ":8080"),
		ReconcileIntervalHours:  24,
		SnapshotIntervalMinutes: 60,
	}

	if v := os.Getenv("APP_RECONCILE_INTERVAL_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			cfg.ReconcileIntervalHours = hours
		}
	}
	if v := os.Getenv("APP_SNAPSHOT_INTERVAL_MINUTES"); v != "" {
		if mins, err := strconv.Atoi(v); err == nil && mins > 0 {
			cfg.SnapshotIntervalMinutes = mins
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
