// Package config loads and saves the o365connect settings file,
// ~/.o365connect/config.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/o365connect/internal/connectors/microsoft"
	"github.com/custodia-labs/o365connect/internal/core/domain"
)

// Environment overrides.
const (
	EnvClientID    = "O365CONNECT_CLIENT_ID"
	EnvRedirectURI = "O365CONNECT_REDIRECT_URI"
	EnvHome        = "O365CONNECT_HOME"
)

// Session backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the settings file.
type Config struct {
	ClientID          string `toml:"client_id"`
	RedirectURI       string `toml:"redirect_uri"`
	Authority         string `toml:"authority"`
	DiscoveryURL      string `toml:"discovery_url"`
	DiscoveryResource string `toml:"discovery_resource"`

	Session    SessionConfig    `toml:"session"`
	TokenCache TokenCacheConfig `toml:"token_cache"`
	Archive    ArchiveConfig    `toml:"archive"`
	Mail       MailConfig       `toml:"mail"`
}

// SessionConfig selects where the session and token cache live.
type SessionConfig struct {
	Backend     string `toml:"backend"`
	DBPath      string `toml:"db_path,omitempty"`
	RedisAddr   string `toml:"redis_addr,omitempty"`
	RedisPrefix string `toml:"redis_prefix,omitempty"`
}

// TokenCacheConfig holds the refresh-token sealing passphrase. An empty
// passphrase uses one derived from this machine.
type TokenCacheConfig struct {
	Passphrase string `toml:"passphrase,omitempty"`
}

// ArchiveConfig controls the local copy of sent mail.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path,omitempty"`
}

// MailConfig overrides the message sent by the send command.
type MailConfig struct {
	Subject      string `toml:"subject,omitempty"`
	BodyTemplate string `toml:"body_template,omitempty"`
}

// Default returns a config with every optional field filled in. The client
// id has no default.
func Default() *Config {
	return &Config{
		RedirectURI:       microsoft.DefaultRedirectURI,
		Authority:         microsoft.DefaultAuthority,
		DiscoveryURL:      microsoft.DefaultDiscoveryURL,
		DiscoveryResource: microsoft.DefaultDiscoveryResource,
		Session:           SessionConfig{Backend: BackendSQLite},
		Archive:           ArchiveConfig{Enabled: true},
	}
}

// Dir returns the settings directory. O365CONNECT_HOME overrides it.
func Dir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".o365connect"), nil
}

// DefaultPath returns the settings file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfiguration, path, err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvClientID)); v != "" {
		c.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvRedirectURI)); v != "" {
		c.RedirectURI = v
	}
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.RedirectURI == "" {
		c.RedirectURI = d.RedirectURI
	}
	if c.Authority == "" {
		c.Authority = d.Authority
	}
	if c.DiscoveryURL == "" {
		c.DiscoveryURL = d.DiscoveryURL
	}
	if c.DiscoveryResource == "" {
		c.DiscoveryResource = d.DiscoveryResource
	}
	if c.Session.Backend == "" {
		c.Session.Backend = BackendSQLite
	}
}

// App returns the Azure AD application settings.
func (c *Config) App() microsoft.AppConfig {
	return microsoft.AppConfig{
		ClientID:    strings.TrimSpace(c.ClientID),
		RedirectURI: c.RedirectURI,
		Authority:   c.Authority,
	}
}

// Validate reports an ErrConfiguration for any setting that would stop the
// app from signing in.
func (c *Config) Validate() error {
	if err := c.App().Validate(); err != nil {
		return err
	}
	if c.DiscoveryResource == "" {
		return fmt.Errorf("%w: discovery resource is not set", domain.ErrConfiguration)
	}
	switch c.Session.Backend {
	case BackendSQLite:
	case BackendRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("%w: session.redis_addr is required for the redis backend", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown session backend %q", domain.ErrConfiguration, c.Session.Backend)
	}
	return nil
}

// DBPath returns the sqlite database path.
func (c *Config) DBPath(dir string) string {
	if c.Session.DBPath != "" {
		return c.Session.DBPath
	}
	return filepath.Join(dir, "data", "connect.db")
}

// ArchivePath returns the Maildir root for sent mail.
func (c *Config) ArchivePath(dir string) string {
	if c.Archive.Path != "" {
		return c.Archive.Path
	}
	return filepath.Join(dir, "sent")
}
