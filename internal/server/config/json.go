package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/filestore/internal/flagx"
	"github.com/dmitrijs2005/filestore/internal/timex"
)

// JsonConfig is the shape of the JSON configuration file. Interval fields
// use timex.Duration, which accepts "1m" style strings and integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP      string         `json:"endpoint_addr_http"`
	LogLevel              string         `json:"log_level"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	FilestoreEnabled      bool           `json:"filestore_enabled"`
	FilestoreActual       string         `json:"filestore_actual"`
	Buckets               []BucketConfig `json:"buckets"`
	RemoteURI             string         `json:"remote_uri"`
	RemoteClientID        string         `json:"remote_client_id"`
	RemoteClientSecret    string         `json:"remote_client_secret"`
	S3AccessKey           string         `json:"s3_access_key"`
	S3SecretKey           string         `json:"s3_secret_key"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	ExcludedNames         []string       `json:"excluded_names"`
	ExcludedDirs          []string       `json:"excluded_dirs"`
}

// parseJson overlays the JSON file named by -c/-config (or $FILESTORE_CONFIG)
// onto config. Keys missing from the file keep their current values. An
// unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFile()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{
		EndpointAddrHTTP:      config.EndpointAddrHTTP,
		LogLevel:              config.LogLevel,
		DatabaseDSN:           config.DatabaseDSN,
		SecretKey:             config.SecretKey,
		TokenValidityDuration: timex.Duration{Duration: config.TokenValidityDuration},
		FilestoreEnabled:      config.FilestoreEnabled,
		FilestoreActual:       config.FilestoreActual,
		Buckets:               config.Buckets,
		RemoteURI:             config.RemoteURI,
		RemoteClientID:        config.RemoteClientID,
		RemoteClientSecret:    config.RemoteClientSecret,
		S3AccessKey:           config.S3AccessKey,
		S3SecretKey:           config.S3SecretKey,
		S3Region:              config.S3Region,
		S3BaseEndpoint:        config.S3BaseEndpoint,
		ExcludedNames:         config.ExcludedNames,
		ExcludedDirs:          config.ExcludedDirs,
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.LogLevel = c.LogLevel
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.TokenValidityDuration = c.TokenValidityDuration.Duration
	config.FilestoreEnabled = c.FilestoreEnabled
	config.FilestoreActual = c.FilestoreActual
	config.Buckets = c.Buckets
	config.RemoteURI = c.RemoteURI
	config.RemoteClientID = c.RemoteClientID
	config.RemoteClientSecret = c.RemoteClientSecret
	config.S3AccessKey = c.S3AccessKey
	config.S3SecretKey = c.S3SecretKey
	config.S3Region = c.S3Region
	config.S3BaseEndpoint = c.S3BaseEndpoint
	config.ExcludedNames = c.ExcludedNames
	config.ExcludedDirs = c.ExcludedDirs
}
