package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/filestore/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-l string   log level
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      peer token validity, minutes
//	-f bool     host buckets locally (use -f=false to disable)
//	-r string   filestore root directory
//	-m string   remote filestore URI
//	-i string   remote client id
//	-k string   remote client secret
//	-u string   S3 access key
//	-p string   S3 secret key
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Durations are given in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-l", "-d", "-s", "-t", "-r", "-m", "-i", "-k", "-u", "-p", "-g", "-e"}, "-f")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidityDuration := fs.Int("t", int(config.TokenValidityDuration.Minutes()), "token_validity_duration (in minutes)")

	fs.BoolVar(&config.FilestoreEnabled, "f", config.FilestoreEnabled, "host buckets locally")
	fs.StringVar(&config.FilestoreActual, "r", config.FilestoreActual, "filestore root directory")
	fs.StringVar(&config.RemoteURI, "m", config.RemoteURI, "remote filestore URI")
	fs.StringVar(&config.RemoteClientID, "i", config.RemoteClientID, "remote client id")
	fs.StringVar(&config.RemoteClientSecret, "k", config.RemoteClientSecret, "remote client secret")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.TokenValidityDuration = time.Duration(*tokenValidityDuration) * time.Minute
}
