package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophgroups/internal/flagx"
)

var knownFlags = []string{
	"-a", "-d", "-k", "-i", "-m", "-l", "-n", "-U", "-P", "-K",
	"-w", "-x", "-strict", "-B", "-D", "-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     gRPC bind address (e.g., ":50051")
//	-d string     PostgreSQL DSN, empty for in-memory snapshots
//	-k string     key directory
//	-i duration   autosave interval (e.g., "5m")
//	-m string     metrics bind address
//	-l float      new sessions per second per peer
//	-n int        session burst per peer
//	-U string     bootstrap admin user
//	-P string     bootstrap admin password
//	-K string     auth service public key file
//	-w int        proof-of-work bits
//	-x int        max message bytes
//	-strict bool  bind capability tokens to the session host token
//	-B string     blob backend: file, s3 or memory
//	-D string     blob directory for the file backend
//	-u -p -b -g -e  S3 user, password, bucket, region and base endpoint
//
// os.Args is first filtered with flagx.FilterArgs so -c/-config and flags of
// other components do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.KeyDir, "k", config.KeyDir, "key directory")
	fs.DurationVar(&config.AutosaveInterval, "i", config.AutosaveInterval, "autosave interval")
	fs.StringVar(&config.MetricsAddr, "m", config.MetricsAddr, "metrics address")
	fs.Float64Var(&config.SessionRate, "l", config.SessionRate, "sessions per second per peer")
	fs.IntVar(&config.SessionBurst, "n", config.SessionBurst, "session burst per peer")
	fs.StringVar(&config.AdminUser, "U", config.AdminUser, "bootstrap admin user")
	fs.StringVar(&config.AdminPassword, "P", config.AdminPassword, "bootstrap admin password")
	fs.StringVar(&config.AuthPublicKeyFile, "K", config.AuthPublicKeyFile, "auth service public key file")
	fs.IntVar(&config.PowBits, "w", config.PowBits, "proof-of-work bits")
	fs.IntVar(&config.MaxMessageBytes, "x", config.MaxMessageBytes, "max message bytes")
	fs.BoolVar(&config.StrictHostBinding, "strict", config.StrictHostBinding, "bind tokens to the session host token")
	fs.StringVar(&config.BlobBackend, "B", config.BlobBackend, "blob backend (file, s3, memory)")
	fs.StringVar(&config.BlobDir, "D", config.BlobDir, "blob directory")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
