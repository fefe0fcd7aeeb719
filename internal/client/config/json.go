package config

import (
	"encoding/json"
	"os"

	"github.com/almers2006/tresor/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Values are
// copied into the runtime Config afterwards.
type JsonConfig struct {
	ServerURL    string `json:"server_url"`
	IdentityPath string `json:"identity_path"`
	CachePath    string `json:"cache_path"`
	AccessToken  string `json:"access_token"`
}

// parseJson overlays cfg with values from the JSON file named by the -c or
// -config flag. Absent file path means nothing is loaded. Read or unmarshal
// errors panic; configuration problems are not recoverable at this point.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.IdentityPath != "" {
		cfg.IdentityPath = jc.IdentityPath
	}
	if jc.CachePath != "" {
		cfg.CachePath = jc.CachePath
	}
	if jc.AccessToken != "" {
		cfg.AccessToken = jc.AccessToken
	}
}
