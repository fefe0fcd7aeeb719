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
//	-a string   bind address for the HTTP API
//	-e string   database engine: sqlite or postgres
//	-d string   database DSN
//	-f string   storage root directory
//	-s string   JWT signing secret
//	-q int      per-user quota in bytes (0 = unlimited)
//	-i string   issue an access token for this user id and exit
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-e", "-d", "-f", "-s", "-q", "-i"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.EndpointAddr, "a", cfg.EndpointAddr, "address and port to listen on")
	fs.StringVar(&cfg.DatabaseDriver, "e", cfg.DatabaseDriver, "database engine (sqlite or postgres)")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database dsn")
	fs.StringVar(&cfg.StorageDir, "f", cfg.StorageDir, "storage root directory")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "jwt signing secret")
	fs.Int64Var(&cfg.QuotaBytes, "q", cfg.QuotaBytes, "per-user quota in bytes (0 = unlimited)")
	fs.StringVar(&cfg.IssueTokenUser, "i", cfg.IssueTokenUser, "issue an access token for this user id and exit")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
