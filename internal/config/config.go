// ABOUTME: Configuration loading and parsing for wanotify
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete wanotify configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Session  SessionConfig  `yaml:"session"`
	Notifier NotifierConfig `yaml:"notifier"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the HTTP surface address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// SessionConfig holds the credential storage configuration
type SessionConfig struct {
	// Dir is the directory holding pairing credentials. Owned exclusively
	// by the session store; wiped and recreated on a logged-out disconnect.
	Dir string `yaml:"dir"`
}

// NotifierConfig holds recipient defaults and reconnection timing
type NotifierConfig struct {
	// DefaultRecipient is the salon owner's number, used by the send
	// subcommand when --to is omitted. Digits only.
	DefaultRecipient string `yaml:"default_recipient"`

	SendRatePerMinute int `yaml:"send_rate_per_minute"`

	ReconnectDelay     time.Duration `yaml:"-"`
	RetryDelayUnknown  time.Duration `yaml:"-"`
	LogoutGrace        time.Duration `yaml:"-"`
	LogoutRestartDelay time.Duration `yaml:"-"`
	SendTimeout        time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ReconnectDelayRaw     string `yaml:"reconnect_delay"`
	RetryDelayUnknownRaw  string `yaml:"retry_delay_unknown"`
	LogoutGraceRaw        string `yaml:"logout_grace"`
	LogoutRestartDelayRaw string `yaml:"logout_restart_delay"`
	SendTimeoutRaw        string `yaml:"send_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults mirror the original deployment: port 3001, 10s reconnect on
// transient loss, 15s on unknown causes, 1s+3s grace around a logout wipe.
const (
	defaultHTTPAddr           = "localhost:3001"
	defaultSessionDir         = "whatsapp_auth"
	defaultSendRatePerMinute  = 20
	defaultReconnectDelay     = 10 * time.Second
	defaultRetryDelayUnknown  = 15 * time.Second
	defaultLogoutGrace        = 1 * time.Second
	defaultLogoutRestartDelay = 3 * time.Second
	defaultSendTimeout        = 30 * time.Second
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded. A missing file
// is not an error; defaults apply. WHATSAPP_PORT and WHATSAPP_NUMBER override
// the listen port and default recipient regardless of file contents.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// run on defaults
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyDefaults(&cfg)

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = defaultHTTPAddr
	}
	if cfg.Session.Dir == "" {
		cfg.Session.Dir = defaultSessionDir
	}
	if cfg.Notifier.SendRatePerMinute == 0 {
		cfg.Notifier.SendRatePerMinute = defaultSendRatePerMinute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// applyEnvOverrides honors the two environment variables the original bot used.
func applyEnvOverrides(cfg *Config) error {
	if port := os.Getenv("WHATSAPP_PORT"); port != "" {
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("WHATSAPP_PORT must be numeric, got %q", port)
		}
		cfg.Server.HTTPAddr = "localhost:" + port
	}
	if num := os.Getenv("WHATSAPP_NUMBER"); num != "" {
		cfg.Notifier.DefaultRecipient = num
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Session.Dir == "" {
		return fmt.Errorf("session.dir is required")
	}
	if c.Notifier.SendRatePerMinute < 1 {
		return fmt.Errorf("notifier.send_rate_per_minute must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw string
		dst *time.Duration
		def time.Duration
		key string
	}{
		{cfg.Notifier.ReconnectDelayRaw, &cfg.Notifier.ReconnectDelay, defaultReconnectDelay, "reconnect_delay"},
		{cfg.Notifier.RetryDelayUnknownRaw, &cfg.Notifier.RetryDelayUnknown, defaultRetryDelayUnknown, "retry_delay_unknown"},
		{cfg.Notifier.LogoutGraceRaw, &cfg.Notifier.LogoutGrace, defaultLogoutGrace, "logout_grace"},
		{cfg.Notifier.LogoutRestartDelayRaw, &cfg.Notifier.LogoutRestartDelay, defaultLogoutRestartDelay, "logout_restart_delay"},
		{cfg.Notifier.SendTimeoutRaw, &cfg.Notifier.SendTimeout, defaultSendTimeout, "send_timeout"},
	}

	for _, f := range fields {
		if f.raw == "" {
			*f.dst = f.def
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.key, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
