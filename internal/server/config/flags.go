package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionguard/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":3000")
//	-b string   storage backend: memory, postgres, mongo
//	-d string   PostgreSQL DSN
//	-m string   MongoDB URI
//	-n string   MongoDB database name
//	-r string   Redis URL for the session store
//	-k int      bcrypt cost
//	-t int      session TTL, minutes (0 disables wall-clock expiry)
//	-o string   comma separated CORS origins
//	-l string   log level
//
// Duration flags are accepted as integers in minutes.
// Parse errors panic, like a broken JSON file.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-b", "-d", "-m", "-n", "-r", "-k", "-t", "-o", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.StorageBackend, "b", config.StorageBackend, "storage backend (memory, postgres, mongo)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.MongoURI, "m", config.MongoURI, "MongoDB URI")
	fs.StringVar(&config.MongoDatabase, "n", config.MongoDatabase, "MongoDB database")
	fs.StringVar(&config.RedisURL, "r", config.RedisURL, "Redis URL for sessions")
	fs.IntVar(&config.BcryptCost, "k", config.BcryptCost, "bcrypt cost")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session TTL (in minutes, 0 = none)")
	origins := fs.String("o", strings.Join(config.CORSAllowedOrigins, ","), "CORS allowed origins (comma separated)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Only explicitly passed flags override; minute granularity would
	// otherwise truncate a TTL that came from JSON or the environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
		case "o":
			config.CORSAllowedOrigins = splitOrigins(*origins)
		}
	})
}

func splitOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
