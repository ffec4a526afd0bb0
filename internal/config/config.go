package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIBase        = "http://localhost:5000"
	DefaultCookieName     = ".AspNetCore.Cookies"
	DefaultRequestTimeout = 15 * time.Second
)

// Config represents the global ~/.tradechat/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	APIBase        string `toml:"api_base"`
	FeedURL        string `toml:"feed_url"`
	SessionCookie  string `toml:"session_cookie"`
	CookieName     string `toml:"cookie_name"`
	UserID         string `toml:"user_id"`
	MetricsAddr    string `toml:"metrics_addr"`
	RequestTimeout string `toml:"request_timeout"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEffective reads path if it exists, loads an optional .env file next to
// the working directory and applies TCHAT_* overrides and defaults. A missing
// config file is not an error.
func LoadEffective(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		cfg = &Config{}
	}
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()
	if _, err := cfg.Timeout(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		key string
		dst *string
	}{
		{"TCHAT_DEFAULT_SESSION", &c.DefaultSession},
		{"TCHAT_API_BASE", &c.APIBase},
		{"TCHAT_FEED_URL", &c.FeedURL},
		{"TCHAT_SESSION_COOKIE", &c.SessionCookie},
		{"TCHAT_COOKIE_NAME", &c.CookieName},
		{"TCHAT_USER_ID", &c.UserID},
		{"TCHAT_METRICS_ADDR", &c.MetricsAddr},
		{"TCHAT_REQUEST_TIMEOUT", &c.RequestTimeout},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.APIBase == "" {
		c.APIBase = DefaultAPIBase
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
}

// Timeout parses request_timeout, falling back to DefaultRequestTimeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" {
		return DefaultRequestTimeout, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid request_timeout %q", c.RequestTimeout)
	}
	return d, nil
}

// Save writes config to the given path, creating parent dirs as needed.
// The file may hold a session cookie, so it is private to the user.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
