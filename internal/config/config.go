package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for mattersend.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig identifies the Mattermost server, credential, and
// default channel. All three are passed to the client as-is; malformed
// values surface as request failures, not here.
type ServerConfig struct {
	URL            string `yaml:"url" env:"MATTERSEND_URL"`
	Token          string `yaml:"token" env:"MATTERSEND_TOKEN"`
	ChannelID      string `yaml:"channelId" env:"MATTERSEND_CHANNEL_ID"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" env:"MATTERSEND_TIMEOUT_SECONDS"`
}

// HistoryConfig configures the local SQLite send log used by the CLI.
type HistoryConfig struct {
	Enabled       bool   `yaml:"enabled" env:"MATTERSEND_HISTORY_ENABLED"`
	DBPath        string `yaml:"dbPath" env:"MATTERSEND_HISTORY_DB"`
	RetentionDays int    `yaml:"retentionDays"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"MATTERSEND_LOG_LEVEL"`
}

// DefaultConfigDir returns the default config directory (~/.mattersend).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mattersend"
	}
	return filepath.Join(home, ".mattersend")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load reads a config file, expands ${VAR} references, applies
// MATTERSEND_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	// Environment variables win over the file.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("cannot apply environment overrides: %w", err)
	}

	cfg.History.DBPath = ExpandPath(cfg.History.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values. Empty server
// fields are allowed here; doctor reports them.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.TimeoutSeconds < 0 {
		errs = append(errs, "server.timeoutSeconds must be >= 0")
	}
	if cfg.History.RetentionDays < 1 {
		errs = append(errs, "history.retentionDays must be >= 1")
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Sanitize returns a copy of the config with the token masked, for
// display by `mattersend config list`.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	out.Server.Token = maskSecret(cfg.Server.Token)
	return &out
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) < 12 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
