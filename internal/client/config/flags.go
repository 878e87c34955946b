package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/filestore/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URI of the filestore API
//	-i string   client id
//	-k string   client secret
//	-b string   bucket selected at startup
//	-t int      token validity in minutes
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-k", "-b", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURI, "a", cfg.ServerURI, "filestore API URI")
	fs.StringVar(&cfg.ClientID, "i", cfg.ClientID, "client id")
	fs.StringVar(&cfg.ClientSecret, "k", cfg.ClientSecret, "client secret")
	fs.StringVar(&cfg.Bucket, "b", cfg.Bucket, "bucket")
	tokenValidity := fs.Int("t", int(cfg.TokenValidity.Minutes()), "token validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.TokenValidity = time.Duration(*tokenValidity) * time.Minute
}
