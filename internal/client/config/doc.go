// Package config loads runtime configuration for the SessionGuard CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Environment variables prefixed with SESSIONGUARD_CLIENT_.
//  4. Command-line flags, which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_url": "http://127.0.0.1:3000",
//	  "state_file": "/home/me/.sessionguard.json",
//	  "request_timeout": "10s"
//	}
package config
