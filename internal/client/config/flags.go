package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionguard/internal/flagx"
)

// ValueFlags lists every client flag that takes a value, the JSON config
// selector included. The command line parser uses it to tell flag values
// apart from the command name.
var ValueFlags = []string{"-c", "-config", "-s", "-f", "-t"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-s string   server base URL
//	-f string   state file path
//	-t int      request timeout in seconds
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-f", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "server base URL")
	fs.StringVar(&cfg.StateFile, "f", cfg.StateFile, "state file path")
	timeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			cfg.RequestTimeout = time.Duration(*timeout) * time.Second
		}
	})
}
