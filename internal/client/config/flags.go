package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophgroups/internal/flagx"
)

// ValueFlags are the flags that take an argument, including -c/-config. The
// command line is flags first, then the command and its arguments.
var ValueFlags = []string{"-a", "-m", "-u", "-k", "-H", "-t", "-c", "-config"}

// parseFlags reads the leading flags of os.Args into cfg.
func parseFlags(cfg *Config) {
	args := os.Args[1:]
	flagArgs := args[:len(args)-len(flagx.Positional(args, ValueFlags))]
	flagArgs = flagx.FilterArgs(flagArgs, []string{"-a", "-m", "-u", "-k", "-H", "-t", "-y"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.AuthAddr, "a", cfg.AuthAddr, "auth service address")
	fs.StringVar(&cfg.MessageAddr, "m", cfg.MessageAddr, "message service address")
	fs.StringVar(&cfg.Username, "u", cfg.Username, "user name")
	fs.StringVar(&cfg.KeyDir, "k", cfg.KeyDir, "client key directory")
	fs.StringVar(&cfg.HostsDB, "H", cfg.HostsDB, "pinned hosts database")
	fs.DurationVar(&cfg.Timeout, "t", cfg.Timeout, "per-command timeout")
	fs.BoolVar(&cfg.TrustHosts, "y", cfg.TrustHosts, "trust unknown hosts")

	if err := fs.Parse(flagArgs); err != nil {
		panic(err)
	}
}

// Args returns the command and its arguments from os.Args.
func Args() []string {
	return flagx.Positional(os.Args[1:], ValueFlags)
}
