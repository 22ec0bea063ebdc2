package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment variable read by the server,
// e.g. SESSIONGUARD_DATABASE_DSN.
const EnvPrefix = "SESSIONGUARD_"

// loadDotEnv is a seam so tests do not pick up a developer's .env file.
var loadDotEnv = func() { _ = godotenv.Load() }

// parseEnv overlays variables from the process environment (and a .env file
// in the working directory, when present). Unset variables leave the current
// value untouched.
func parseEnv(config *Config) error {
	loadDotEnv()
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
