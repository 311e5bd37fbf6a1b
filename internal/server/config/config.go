// Package config handles configuration for both services, including
// defaults, JSON overlay, and command-line flags.
package config

import (
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophgroups/internal/common"
	"github.com/dmitrijs2005/gophgroups/internal/cryptox"
)

// Service selects the defaults of one binary.
type Service string

const (
	AuthService    Service = "auth"
	MessageService Service = "msg"
)

// Blob backends for message bodies.
const (
	BlobFile   = "file"
	BlobS3     = "s3"
	BlobMemory = "memory"
)

// Config holds runtime settings for a service.
//
// Fields:
//   - EndpointAddr: bind address of the gRPC endpoint.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps snapshots in memory.
//   - KeyDir: directory of the RSA keypair and master key.
//   - AutosaveInterval: period between store snapshots.
//   - MetricsAddr: bind address of /metrics. Empty disables it.
//   - SessionRate / SessionBurst: new connections per second per peer host.
//   - AdminUser / AdminPassword: bootstrap administrator (auth service).
//   - AuthPublicKeyFile: public key of the auth service (message service).
//   - PowBits: proof-of-work difficulty (message service).
//   - MaxMessageBytes: largest accepted message ciphertext.
//   - StrictHostBinding: reject capability tokens minted for another session.
//   - BlobBackend / BlobDir / S3*: where message bodies live.
type Config struct {
	EndpointAddr      string
	DatabaseDSN       string
	KeyDir            string
	AutosaveInterval  time.Duration
	MetricsAddr       string
	SessionRate       float64
	SessionBurst      int
	AdminUser         string
	AdminPassword     string
	AuthPublicKeyFile string
	PowBits           int
	MaxMessageBytes   int
	StrictHostBinding bool
	BlobBackend       string
	BlobDir           string
	S3RootUser        string
	S3RootPassword    string
	S3Bucket          string
	S3Region          string
	S3BaseEndpoint    string
}

// LoadDefaults populates Config with development defaults for s.
// NOTE: the S3 credentials are insecure and must be overridden in production.
func (c *Config) LoadDefaults(s Service) {
	c.DatabaseDSN = ""
	c.AutosaveInterval = common.DefaultAutosaveInterval
	c.MetricsAddr = ""
	c.SessionRate = 5
	c.SessionBurst = 10
	c.AdminUser = "admin"
	c.AdminPassword = ""
	c.AuthPublicKeyFile = filepath.Join("keys", string(AuthService), cryptox.PublicKeyFile)
	c.PowBits = 20
	c.MaxMessageBytes = 4096
	c.StrictHostBinding = true
	c.BlobBackend = BlobFile
	c.BlobDir = "messages"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "messages"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"

	c.KeyDir = filepath.Join("keys", string(s))
	switch s {
	case MessageService:
		c.EndpointAddr = ":50052"
	default:
		c.EndpointAddr = ":50051"
	}
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig(s Service) *Config {
	cfg := &Config{}
	cfg.LoadDefaults(s)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
