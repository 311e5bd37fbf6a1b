// Package config loads runtime configuration for the command-line client.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags.
//
// Supported flags
//
//	-a string     auth service address
//	-m string     message service address
//	-u string     user name
//	-k string     directory of the client keypair
//	-H string     SQLite file of pinned host fingerprints
//	-t duration   per-command timeout
//	-y            trust unknown hosts without asking
//
// JSON durations may be strings like "30s" or integer nanoseconds:
//
//	{
//	  "auth_addr": "127.0.0.1:50051",
//	  "message_addr": "127.0.0.1:50052",
//	  "username": "alice",
//	  "timeout": "30s"
//	}
package config
