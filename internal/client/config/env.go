package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces the client's environment variables,
// e.g. SESSIONGUARD_CLIENT_SERVER_URL.
const EnvPrefix = "SESSIONGUARD_CLIENT_"

func parseEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
