package config

import (
	"path/filepath"
	"time"
)

// Config holds runtime settings for the client.
type Config struct {
	AuthAddr    string
	MessageAddr string
	Username    string
	KeyDir      string
	HostsDB     string
	Timeout     time.Duration
	TrustHosts  bool
}

// LoadDefaults points the client at services on localhost and keeps its
// files under .gophgroups in the working directory.
func (c *Config) LoadDefaults() {
	c.AuthAddr = "127.0.0.1:50051"
	c.MessageAddr = "127.0.0.1:50052"
	c.Username = ""
	c.KeyDir = filepath.Join(".gophgroups", "keys")
	c.HostsDB = filepath.Join(".gophgroups", "hosts.db")
	c.Timeout = 30 * time.Second
	c.TrustHosts = false
}

// LoadConfig applies defaults, then JSON (if present), then flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
