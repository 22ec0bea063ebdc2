package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

const stateFileName = ".sessionguard.json"

// Config holds runtime settings for the SessionGuard CLI.
//
// Fields:
//   - ServerURL: base URL of the SessionGuard HTTP API.
//   - StateFile: where the session cookie and CSRF token are kept between runs.
//   - RequestTimeout: per request deadline.
type Config struct {
	ServerURL      string        `env:"SERVER_URL"`
	StateFile      string        `env:"STATE_FILE"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// LoadDefaults populates c with sensible defaults. The state file lives in
// the user's home directory, or the working directory when there is none.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:3000"
	c.StateFile = stateFileName
	if home, err := os.UserHomeDir(); err == nil {
		c.StateFile = filepath.Join(home, stateFileName)
	}
	c.RequestTimeout = 10 * time.Second
}

// Validate rejects settings the client cannot work with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server URL %q must be an absolute http(s) URL", c.ServerURL)
	}
	if c.StateFile == "" {
		return fmt.Errorf("state file path is required")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	parseFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
