package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sessionguard/internal/flagx"
	"github.com/dmitrijs2005/sessionguard/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file.
type JsonConfig struct {
	ServerURL      string          `json:"server_url"`
	StateFile      string          `json:"state_file"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with the file named by -c / -config, if any.
// Read or decode failures panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()
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
	if jc.StateFile != "" {
		cfg.StateFile = jc.StateFile
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
