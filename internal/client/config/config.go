package config

import "time"

// Config holds runtime settings for the filestore CLI.
//
// Fields:
//   - ServerURI: base URI of the filestore HTTP API.
//   - ClientID / ClientSecret: identity and HMAC secret bearer tokens are minted with.
//   - Bucket: bucket selected at startup. Empty selects none.
//   - TokenValidity: lifetime of each minted token.
type Config struct {
	ServerURI     string
	ClientID      string
	ClientSecret  string
	Bucket        string
	TokenValidity time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURI = "http://127.0.0.1:8080"
	c.TokenValidity = 5 * time.Minute
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
