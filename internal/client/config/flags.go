package config

import (
	"flag"
	"os"

	"github.com/almers2006/tresor/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-s string   base URL of the storage server
//	-k string   path to the identity key file
//	-d string   path to the local cache database
//	-t string   API access token
//
// Args are filtered down to the flags handled here so commands can define
// their own without interference.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-k", "-d", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "base url of the storage server")
	fs.StringVar(&cfg.IdentityPath, "k", cfg.IdentityPath, "path to the identity key file")
	fs.StringVar(&cfg.CachePath, "d", cfg.CachePath, "path to the local cache database")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "api access token")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
