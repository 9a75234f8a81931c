// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "0.0.0.0:3001"

session:
  dir: "./auth"

notifier:
  default_recipient: "5511993940514"
  send_rate_per_minute: 10
  reconnect_delay: "5s"
  retry_delay_unknown: "20s"
  logout_grace: "2s"
  logout_restart_delay: "4s"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:3001" {
		t.Errorf("http_addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Session.Dir != "./auth" {
		t.Errorf("session dir = %q", cfg.Session.Dir)
	}
	if cfg.Notifier.DefaultRecipient != "5511993940514" {
		t.Errorf("default_recipient = %q", cfg.Notifier.DefaultRecipient)
	}
	if cfg.Notifier.ReconnectDelay != 5*time.Second {
		t.Errorf("reconnect_delay = %v", cfg.Notifier.ReconnectDelay)
	}
	if cfg.Notifier.RetryDelayUnknown != 20*time.Second {
		t.Errorf("retry_delay_unknown = %v", cfg.Notifier.RetryDelayUnknown)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.HTTPAddr != "localhost:3001" {
		t.Errorf("default http_addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Session.Dir != "whatsapp_auth" {
		t.Errorf("default session dir = %q", cfg.Session.Dir)
	}
	if cfg.Notifier.ReconnectDelay != 10*time.Second {
		t.Errorf("default reconnect_delay = %v", cfg.Notifier.ReconnectDelay)
	}
	if cfg.Notifier.RetryDelayUnknown != 15*time.Second {
		t.Errorf("default retry_delay_unknown = %v", cfg.Notifier.RetryDelayUnknown)
	}
	if cfg.Notifier.LogoutGrace != time.Second {
		t.Errorf("default logout_grace = %v", cfg.Notifier.LogoutGrace)
	}
	if cfg.Notifier.LogoutRestartDelay != 3*time.Second {
		t.Errorf("default logout_restart_delay = %v", cfg.Notifier.LogoutRestartDelay)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_WANOTIFY_RECIPIENT", "11987654321")

	path := writeConfig(t, `
notifier:
  default_recipient: "${TEST_WANOTIFY_RECIPIENT}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Notifier.DefaultRecipient != "11987654321" {
		t.Errorf("default_recipient = %q", cfg.Notifier.DefaultRecipient)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WHATSAPP_PORT", "4002")
	t.Setenv("WHATSAPP_NUMBER", "5511999998888")

	path := writeConfig(t, `
server:
  http_addr: "localhost:3001"

notifier:
  default_recipient: "5511993940514"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.HTTPAddr != "localhost:4002" {
		t.Errorf("http_addr = %q, want WHATSAPP_PORT override", cfg.Server.HTTPAddr)
	}
	if cfg.Notifier.DefaultRecipient != "5511999998888" {
		t.Errorf("default_recipient = %q, want WHATSAPP_NUMBER override", cfg.Notifier.DefaultRecipient)
	}
}

func TestLoad_BadPortOverride(t *testing.T) {
	t.Setenv("WHATSAPP_PORT", "not-a-port")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for non-numeric WHATSAPP_PORT")
	}
	if !strings.Contains(err.Error(), "WHATSAPP_PORT") {
		t.Errorf("error should mention WHATSAPP_PORT: %v", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
notifier:
  reconnect_delay: "soon"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "reconnect_delay") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"zero rate", func(c *Config) { c.Notifier.SendRatePerMinute = -1 }, "send_rate_per_minute"},
		{"no session dir", func(c *Config) { c.Session.Dir = "" }, "session.dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			applyDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}
