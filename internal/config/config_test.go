package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("INBOXCTL_HOME", tmpDir)

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HomeDir != tmpDir {
		t.Errorf("HomeDir = %q, want %q", cfg.HomeDir, tmpDir)
	}
	if cfg.View.PageSize != 6 {
		t.Errorf("View.PageSize = %d, want 6", cfg.View.PageSize)
	}
	if cfg.Gateway.Timeout.Duration != 30*time.Second {
		t.Errorf("Gateway.Timeout = %v, want 30s", cfg.Gateway.Timeout)
	}
	if cfg.Gateway.MaxInFlight != 8 {
		t.Errorf("Gateway.MaxInFlight = %d, want 8", cfg.Gateway.MaxInFlight)
	}
	if cfg.DevServer.Port != 8080 {
		t.Errorf("DevServer.Port = %d, want 8080", cfg.DevServer.Port)
	}
	if got, want := cfg.DatabasePath(), filepath.Join(tmpDir, "devserver.db"); got != want {
		t.Errorf("DatabasePath() = %q, want %q", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeConfig(t, tmpDir, `
[gateway]
url = "https://mail.example.com"
api_key = "secret"
timeout = "5s"
max_in_flight = 3

[user]
id = 12
email = "me@example.com"

[view]
page_size = 10

[devserver]
port = 9090

[watch]
folders = ["inbox", "Work"]
`)

	cfg, err := Load(path, tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.URL != "https://mail.example.com" || cfg.Gateway.APIKey != "secret" {
		t.Errorf("Gateway = %+v", cfg.Gateway)
	}
	if cfg.Gateway.Timeout.Duration != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Gateway.Timeout)
	}
	if cfg.Gateway.MaxInFlight != 3 {
		t.Errorf("MaxInFlight = %d, want 3", cfg.Gateway.MaxInFlight)
	}
	// Unset keys keep their defaults.
	if cfg.Gateway.RateLimitQPS != 10 {
		t.Errorf("RateLimitQPS = %v, want 10", cfg.Gateway.RateLimitQPS)
	}
	if cfg.User.ID != 12 || cfg.User.Email != "me@example.com" {
		t.Errorf("User = %+v", cfg.User)
	}
	if cfg.View.PageSize != 10 {
		t.Errorf("PageSize = %d, want 10", cfg.View.PageSize)
	}
	if cfg.DevServerAddr() != "127.0.0.1:9090" {
		t.Errorf("DevServerAddr() = %q", cfg.DevServerAddr())
	}
	if len(cfg.Watch.Folders) != 2 || cfg.Watch.Folders[1] != "Work" || cfg.Watch.Schedule != "*/5 * * * *" {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad duration", "[gateway]\ntimeout = \"soon\"\n", "decode config"},
		{"unknown key", "[gateway]\nurll = \"x\"\n", "unknown config keys: gateway.urll"},
		{"bad toml", "[gateway\n", "decode config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			path := writeConfig(t, tmpDir, tt.content)
			_, err := Load(path, tmpDir)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	_, err := Load(filepath.Join(tmpDir, "nope.toml"), tmpDir)
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default(t.TempDir())
		c.User = UserConfig{ID: 1, Email: "me@example.com"}
		return c
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"zero page size", func(c *Config) { c.View.PageSize = 0 }, false},
		{"zero in flight", func(c *Config) { c.Gateway.MaxInFlight = 0 }, false},
		{"missing email", func(c *Config) { c.User.Email = "" }, false},
		{"bad email", func(c *Config) { c.User.Email = "nope" }, false},
		{"blank url", func(c *Config) { c.Gateway.URL = " " }, false},
		{"negative qps", func(c *Config) { c.Gateway.RateLimitQPS = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() error = %v, want ok=%t", err, tt.ok)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Default(tmpDir)
	cfg.User = UserConfig{ID: 3, Email: "x@example.com"}
	cfg.Gateway.Timeout = Duration{90 * time.Second}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load("", tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.User != cfg.User || loaded.Gateway.Timeout != cfg.Gateway.Timeout {
		t.Errorf("loaded = %+v / %+v", loaded.User, loaded.Gateway)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"~", home},
		{"~/mail.db", filepath.Join(home, "mail.db")},
		{"/abs/path", "/abs/path"},
		{"~other/x", "~other/x"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
