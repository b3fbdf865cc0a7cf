// Package config handles loading and managing inboxctl configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wesm/inboxctl/internal/fileutil"
)

// GatewayConfig holds the remote mail service connection settings.
type GatewayConfig struct {
	URL           string   `toml:"url"`
	APIKey        string   `toml:"api_key"`
	AllowInsecure bool     `toml:"allow_insecure"` // allow plain http
	Timeout       Duration `toml:"timeout"`
	RateLimitQPS  float64  `toml:"rate_limit_qps"` // 0 disables client throttling
	MaxInFlight   int      `toml:"max_in_flight"`  // concurrent requests per bulk action
}

// UserConfig identifies the logged-in account.
type UserConfig struct {
	ID    int64  `toml:"id"`
	Email string `toml:"email"`
}

// ViewConfig holds list display settings.
type ViewConfig struct {
	PageSize int `toml:"page_size"`
}

// DevServerConfig holds the local reference server settings.
type DevServerConfig struct {
	BindAddr string `toml:"bind_addr"`
	Port     int    `toml:"port"`
	APIKey   string `toml:"api_key"`
	Database string `toml:"database"`
	RateQPS  int    `toml:"rate_limit_qps"`
}

// WatchConfig holds the new-mail poller settings.
type WatchConfig struct {
	Folders  []string `toml:"folders"`
	Schedule string   `toml:"schedule"` // five-field cron expression
}

// Config represents the inboxctl configuration.
type Config struct {
	Gateway   GatewayConfig   `toml:"gateway"`
	User      UserConfig      `toml:"user"`
	View      ViewConfig      `toml:"view"`
	DevServer DevServerConfig `toml:"devserver"`
	Watch     WatchConfig     `toml:"watch"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	ConfigPath string `toml:"-"`
}

// Duration is a time.Duration that decodes from strings like "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultHome returns the default inboxctl home directory.
// Respects INBOXCTL_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("INBOXCTL_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".inboxctl"
	}
	return filepath.Join(home, ".inboxctl")
}

// Default returns a configuration with every default applied.
func Default(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Gateway: GatewayConfig{
			URL:          "http://127.0.0.1:8080",
			Timeout:      Duration{30 * time.Second},
			RateLimitQPS: 10,
			MaxInFlight:  8,
		},
		View: ViewConfig{
			PageSize: 6,
		},
		DevServer: DevServerConfig{
			BindAddr: "127.0.0.1",
			Port:     8080,
			RateQPS:  50,
		},
		Watch: WatchConfig{
			Folders:  []string{"inbox"},
			Schedule: "*/5 * * * *",
		},
	}
}

// Load reads the configuration from path. When path is empty the file is
// config.toml under homeDir; when homeDir is empty DefaultHome is used.
// A missing file yields the defaults.
func Load(path, homeDir string) (*Config, error) {
	if homeDir == "" {
		homeDir = DefaultHome()
	} else {
		homeDir = expandPath(homeDir)
	}
	explicit := path != ""
	if !explicit {
		path = filepath.Join(homeDir, "config.toml")
	}
	path = expandPath(path)

	cfg := Default(homeDir)
	cfg.ConfigPath = path

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	cfg.DevServer.Database = expandPath(cfg.DevServer.Database)
	return cfg, nil
}

// Validate checks the settings that the client needs before it can talk to
// the service.
func (c *Config) Validate() error {
	if c.View.PageSize < 1 {
		return fmt.Errorf("view.page_size must be positive, got %d", c.View.PageSize)
	}
	if c.Gateway.MaxInFlight < 1 {
		return fmt.Errorf("gateway.max_in_flight must be positive, got %d", c.Gateway.MaxInFlight)
	}
	if c.Gateway.RateLimitQPS < 0 {
		return fmt.Errorf("gateway.rate_limit_qps must not be negative")
	}
	if strings.TrimSpace(c.Gateway.URL) == "" {
		return errors.New("gateway.url is required")
	}
	if c.User.Email == "" {
		return errors.New("user.email is required")
	}
	if _, err := mail.ParseAddress(c.User.Email); err != nil {
		return fmt.Errorf("user.email %q: %w", c.User.Email, err)
	}
	return nil
}

// DatabasePath returns the path to the reference server's SQLite database.
func (c *Config) DatabasePath() string {
	if c.DevServer.Database != "" {
		return c.DevServer.Database
	}
	return filepath.Join(c.HomeDir, "devserver.db")
}

// DevServerAddr returns the host:port the reference server listens on.
func (c *Config) DevServerAddr() string {
	return fmt.Sprintf("%s:%d", c.DevServer.BindAddr, c.DevServer.Port)
}

// Save writes the configuration to ConfigPath, creating the home directory.
func (c *Config) Save() error {
	path := c.ConfigPath
	if path == "" {
		path = filepath.Join(c.HomeDir, "config.toml")
	}
	if err := fileutil.SecureMkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := fileutil.SecureWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
