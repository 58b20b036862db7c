package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matt/alivelock/internal/logger"
)

// Environment variables that override the config file.
const (
	EnvConfigPath  = "ALIVELOCK_CONFIG"
	EnvLogLevel    = "ALIVELOCK_LOG_LEVEL"
	EnvGracePeriod = "ALIVELOCK_GRACE_PERIOD"
)

// Log format constants
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the application configuration.
type Config struct {
	// GracePeriod is how long a signalled process may take to unwind on its
	// own before its locks are released and it is killed by the signal.
	GracePeriod time.Duration

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is "text" or "json".
	LogFormat string

	// WaitInterval is the polling fallback used while waiting for a lock.
	WaitInterval time.Duration

	// Color enables colored terminal output.
	Color bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		GracePeriod:  5 * time.Second,
		LogLevel:     "warn",
		LogFormat:    FormatText,
		WaitInterval: time.Second,
		Color:        true,
	}
}

// GlobalConfigPath returns the path to the config file.
// ALIVELOCK_CONFIG takes precedence over the user config directory.
func GlobalConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "alivelock", "config.toml"), nil
}

// Load reads the config file if it exists and applies environment overrides.
// Priority (highest to lowest): environment > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := GlobalConfigPath()
	if err == nil {
		if _, err := os.Stat(path); err == nil {
			if err := loadConfigFile(path, cfg); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile reads a TOML config file and merges it into the given config.
func loadConfigFile(path string, cfg *Config) error {
	// Pointers detect which fields were actually set in the file
	type rawConfig struct {
		GracePeriod  *string `toml:"grace_period"`
		LogLevel     *string `toml:"log_level"`
		LogFormat    *string `toml:"log_format"`
		WaitInterval *string `toml:"wait_interval"`
		Color        *bool   `toml:"color"`
	}

	var fileCfg rawConfig
	md, err := toml.DecodeFile(path, &fileCfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if fileCfg.GracePeriod != nil {
		d, err := time.ParseDuration(*fileCfg.GracePeriod)
		if err != nil {
			return fmt.Errorf("invalid grace_period: %w", err)
		}
		cfg.GracePeriod = d
	}
	if fileCfg.LogLevel != nil {
		cfg.LogLevel = *fileCfg.LogLevel
	}
	if fileCfg.LogFormat != nil {
		cfg.LogFormat = *fileCfg.LogFormat
	}
	if fileCfg.WaitInterval != nil {
		d, err := time.ParseDuration(*fileCfg.WaitInterval)
		if err != nil {
			return fmt.Errorf("invalid wait_interval: %w", err)
		}
		cfg.WaitInterval = d
	}
	if fileCfg.Color != nil {
		cfg.Color = *fileCfg.Color
	}

	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvGracePeriod); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvGracePeriod, err)
		}
		cfg.GracePeriod = d
	}
	return nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if c.GracePeriod < 0 {
		return fmt.Errorf("grace_period must not be negative, got %s", c.GracePeriod)
	}
	if c.WaitInterval <= 0 {
		return fmt.Errorf("wait_interval must be positive, got %s", c.WaitInterval)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format: %s (valid options: %s, %s)", c.LogFormat, FormatText, FormatJSON)
	}
	return nil
}

// LoggerConfig converts the config into logger settings.
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	if level, err := logger.ParseLevel(c.LogLevel); err == nil {
		lc.Level = level
	}
	lc.Format = c.LogFormat
	return lc
}

// ToTOML returns the config as a TOML string.
func (c *Config) ToTOML() string {
	var sb strings.Builder
	sb.WriteString("# alivelock configuration\n\n")

	sb.WriteString("# How long a signalled process may take to release its locks on its own\n")
	sb.WriteString("# before they are released for it and it is killed by the signal\n")
	sb.WriteString("grace_period = ")
	sb.WriteString(strconv.Quote(c.GracePeriod.String()))
	sb.WriteString("\n\n")

	sb.WriteString("# Log level: debug, info, warn, error\n")
	sb.WriteString("log_level = ")
	sb.WriteString(strconv.Quote(c.LogLevel))
	sb.WriteString("\n\n")

	sb.WriteString("# Log format: text or json\n")
	sb.WriteString("log_format = ")
	sb.WriteString(strconv.Quote(c.LogFormat))
	sb.WriteString("\n\n")

	sb.WriteString("# Polling fallback while waiting for a lock to be released\n")
	sb.WriteString("wait_interval = ")
	sb.WriteString(strconv.Quote(c.WaitInterval.String()))
	sb.WriteString("\n\n")

	sb.WriteString("# Colored terminal output\n")
	sb.WriteString("color = ")
	sb.WriteString(strconv.FormatBool(c.Color))
	sb.WriteString("\n")

	return sb.String()
}

// WriteDefault writes the default config to path, refusing to overwrite.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(DefaultConfig().ToTOML()); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
