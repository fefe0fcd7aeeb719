// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the tresor server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP API.
//   - DatabaseDriver: "sqlite" or "postgres".
//   - DatabaseDSN: connection string for the chosen driver.
//   - StorageDir: root directory for staged and finalized encrypted files.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use test
//     defaults in prod.
//   - AccessTokenValidityDuration: token lifetime.
//   - QuotaBytes: per-user storage cap in plaintext bytes; 0 disables it.
//   - IssueTokenUser: when set, print an access token for this user id and
//     exit instead of serving.
type Config struct {
	EndpointAddr                string
	DatabaseDriver              string
	DatabaseDSN                 string
	StorageDir                  string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	QuotaBytes                  int64
	IssueTokenUser              string
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "tresor.db"
	c.StorageDir = "./data"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 24 * time.Hour
	c.QuotaBytes = 0
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
