package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.EndpointAddr)
	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, 24*time.Hour, c.AccessTokenValidityDuration)
	assert.Zero(t, c.QuotaBytes)
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	b, err := json.Marshal(map[string]any{
		"endpoint_addr":                  ":9999",
		"database_driver":                "postgres",
		"database_dsn":                   "postgres://localhost/tresor",
		"access_token_validity_duration": "1h",
		"quota_bytes":                    1073741824,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))

	os.Args = []string{"testbin", "-config", path}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, ":9999", cfg.EndpointAddr)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "postgres://localhost/tresor", cfg.DatabaseDSN)
	assert.Equal(t, time.Hour, cfg.AccessTokenValidityDuration)
	assert.Equal(t, int64(1073741824), cfg.QuotaBytes)
	// Fields absent from the file keep their defaults.
	assert.Equal(t, "./data", cfg.StorageDir)
}
