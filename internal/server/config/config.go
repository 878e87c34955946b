// Package config handles configuration for the filestore server,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"path"
	"strings"
	"time"
)

// Config holds runtime settings for the filestore server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the HTTP API.
//   - LogLevel: minimum level logged (debug, info, warn, error).
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps metadata in memory.
//   - SecretKey: HMAC secret for verifying JWTs (HS256). Do not use test defaults in prod.
//   - TokenValidityDuration: lifetime of tokens minted for peer calls.
//   - FilestoreEnabled: whether this component hosts buckets itself.
//   - FilestoreActual: root directory relative bucket locations resolve against.
//   - Buckets: configured bucket names and their policies.
//   - RemoteURI / RemoteClientID / RemoteClientSecret: peer filestore API and the
//     credentials used to mint bearer tokens for it.
//   - S3AccessKey / S3SecretKey / S3Region / S3BaseEndpoint: credentials for s3:// buckets.
//   - ExcludedNames / ExcludedDirs: housekeeping entries hidden from raw listings.
type Config struct {
	EndpointAddrHTTP      string
	LogLevel              string
	DatabaseDSN           string
	SecretKey             string
	TokenValidityDuration time.Duration
	FilestoreEnabled      bool
	FilestoreActual       string
	Buckets               []BucketConfig
	RemoteURI             string
	RemoteClientID        string
	RemoteClientSecret    string
	S3AccessKey           string
	S3SecretKey           string
	S3Region              string
	S3BaseEndpoint        string
	ExcludedNames         []string
	ExcludedDirs          []string
}

// BucketConfig is the configured policy of one bucket.
type BucketConfig struct {
	Name string `json:"name"`
	// Enabled defaults to true when omitted.
	Enabled        *bool    `json:"enabled,omitempty"`
	AcceptExt      []string `json:"accept_ext"`
	AllowDelete    bool     `json:"allow_delete"`
	AllowOverwrite bool     `json:"allow_overwrite"`
	ExposeURI      string   `json:"expose_uri"`
	// Actual is a storage URI or a plain path.
	Actual string `json:"actual"`
}

func (b BucketConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// ActualURI derives the byte store URI of the bucket. URIs with a scheme are
// kept, plain paths become osfs URIs and relative locations are joined onto
// root. Without Actual the bucket lives in root/<name>.
func (b BucketConfig) ActualURI(root string) string {
	actual := b.Actual
	if actual == "" {
		return "osfs://" + path.Join(root, b.Name)
	}

	scheme, rest, ok := strings.Cut(actual, "://")
	if !ok {
		scheme, rest = "osfs", actual
	}
	if scheme != "osfs" {
		return actual
	}
	if !path.IsAbs(rest) && !strings.HasPrefix(rest, "~") {
		rest = path.Join(root, rest)
	}
	return "osfs://" + rest
}

// LoadDefaults populates Config with development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.LogLevel = "info"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.TokenValidityDuration = 5 * time.Minute
	c.FilestoreEnabled = true
	c.FilestoreActual = "/var/lib/filestore"
	c.S3Region = "us-east-1"
	c.ExcludedNames = []string{"lost+found", ".DS_Store"}
	c.ExcludedDirs = []string{"lost+found"}
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
