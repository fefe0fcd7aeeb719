// Package config loads runtime configuration for the tresor CLI.
//
// Sources and precedence: built-in defaults, then an optional JSON file
// (selected via -c or -config), then command-line flags.
package config

import (
	"os"
	"path/filepath"
)

// Config holds runtime settings for the tresor CLI.
type Config struct {
	// ServerURL is the base URL of the storage server API.
	ServerURL string
	// IdentityPath is where the encrypted key file lives.
	IdentityPath string
	// CachePath is the SQLite file caching decrypted directory listings.
	CachePath string
	// AccessToken authenticates API requests. Usually set per invocation.
	AccessToken string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.ServerURL = "http://127.0.0.1:8080"
	c.IdentityPath = filepath.Join(home, ".tresor", "identity.json")
	c.CachePath = filepath.Join(home, ".tresor", "cache.db")
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags. Later sources take
// precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
