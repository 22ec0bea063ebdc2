package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sessionguard/internal/flagx"
	"github.com/dmitrijs2005/sessionguard/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Durations
// use timex.Duration so both "336h" and integer nanoseconds are accepted.
// Pointer fields distinguish "absent" from an explicit zero value.
type JsonConfig struct {
	EndpointAddrHTTP   string          `json:"endpoint_addr_http"`
	StorageBackend     string          `json:"storage_backend"`
	DatabaseDSN        string          `json:"database_dsn"`
	MongoURI           string          `json:"mongo_uri"`
	MongoDatabase      string          `json:"mongo_database"`
	RedisURL           string          `json:"redis_url"`
	BcryptCost         int             `json:"bcrypt_cost"`
	SessionTTL         *timex.Duration `json:"session_ttl"`
	CookieSecure       *bool           `json:"cookie_secure"`
	CookieMaxAge       *timex.Duration `json:"cookie_max_age"`
	CORSAllowedOrigins []string        `json:"cors_allowed_origins"`
	LogLevel           string          `json:"log_level"`
	GinMode            string          `json:"gin_mode"`
}

// parseJson loads the file named by -c / -config, if any, and copies every
// field present in it into config. Read or decode failures panic: a broken
// config file must stop the server at startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.MongoURI, c.MongoURI)
	setString(&config.MongoDatabase, c.MongoDatabase)
	setString(&config.RedisURL, c.RedisURL)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.GinMode, c.GinMode)

	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.SessionTTL != nil {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.CookieMaxAge != nil {
		config.CookieMaxAge = c.CookieMaxAge.Duration
	}
	if len(c.CORSAllowedOrigins) > 0 {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
