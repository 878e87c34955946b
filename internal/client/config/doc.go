// Package config loads runtime configuration for the filestore CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via -c, -config or $FILESTORE_CONFIG.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URI of the filestore HTTP API
//	-i string   client id tokens are minted for
//	-k string   client secret (prompted for when empty)
//	-b string   bucket selected at startup
//	-t int      token validity (minutes)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "5m" or integer nanoseconds:
//
//	{
//	  "server_uri": "http://127.0.0.1:8080",
//	  "client_id": "ops",
//	  "bucket": "incoming",
//	  "token_validity": "5m"
//	}
package config
