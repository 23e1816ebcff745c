package config

import (
	"os"
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyRenewDefaults(&cfg.Renew)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		// stderr so messages reach the invoking shell even when stdout
		// belongs to a supervised command
		cfg.Output = "stderr"
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyRenewDefaults sets renewal schedule defaults.
func applyRenewDefaults(cfg *RenewConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	// An explicit config value wins; otherwise honor the KRB5_CONFIG
	// environment variable the way the MIT library does.
	if cfg.Krb5Conf == "" {
		if env := os.Getenv("KRB5_CONFIG"); env != "" {
			cfg.Krb5Conf = env
		} else {
			cfg.Krb5Conf = "/etc/krb5.conf"
		}
	}
	// Cache has no default here; the resolver falls back to KRB5CCNAME
	// and the per-UID default cache at use time
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
