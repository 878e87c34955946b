package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/filestore/internal/flagx"
	"github.com/dmitrijs2005/filestore/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerURI     string         `json:"server_uri"`
	ClientID      string         `json:"client_id"`
	ClientSecret  string         `json:"client_secret"`
	Bucket        string         `json:"bucket"`
	TokenValidity timex.Duration `json:"token_validity"`
}

// parseJson overlays cfg with the JSON file named by -c/-config. Keys the
// file omits keep their current values. Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFile()
	if jsonConfigFile == "" {
		return
	}

	jc := JsonConfig{
		ServerURI:     cfg.ServerURI,
		ClientID:      cfg.ClientID,
		ClientSecret:  cfg.ClientSecret,
		Bucket:        cfg.Bucket,
		TokenValidity: timex.Duration{Duration: cfg.TokenValidity},
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerURI = jc.ServerURI
	cfg.ClientID = jc.ClientID
	cfg.ClientSecret = jc.ClientSecret
	cfg.Bucket = jc.Bucket
	cfg.TokenValidity = jc.TokenValidity.Duration
}
