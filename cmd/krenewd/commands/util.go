package commands

import (
	"fmt"
	"os"
	"path/filepath"

	krb5config "github.com/jcmturner/gokrb5/v8/config"

	"github.com/arenillas/krenewd/internal/logger"
	"github.com/arenillas/krenewd/pkg/ccache"
	"github.com/arenillas/krenewd/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Syslog: cfg.Logging.Syslog,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// LoadKrb5Config parses the Kerberos client configuration used for KDC
// lookup during renewal.
func LoadKrb5Config(path string) (*krb5config.Config, error) {
	conf, err := krb5config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return conf, nil
}

// ResolveCacheName picks the cache to operate on: an explicit flag or config
// value wins, otherwise KRB5CCNAME and the per-UID default.
func ResolveCacheName(name string) string {
	if name != "" {
		return name
	}
	return ccache.DefaultName()
}

// GetDefaultStateDir returns the default state directory path.
func GetDefaultStateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "/tmp"
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "krenewd")
}

// GetDefaultPidFile returns the default PID file path.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), "krenewd.pid")
}

// GetDefaultLogFile returns the default log file path for daemon mode.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), "krenewd.log")
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
