package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophgroups/internal/flagx"
	"github.com/dmitrijs2005/gophgroups/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Absent fields keep the values
// already in Config; pointers tell "absent" from a zero value.
type JsonConfig struct {
	EndpointAddr      *string         `json:"endpoint_addr"`
	DatabaseDSN       *string         `json:"database_dsn"`
	KeyDir            *string         `json:"key_dir"`
	AutosaveInterval  *timex.Duration `json:"autosave_interval"`
	MetricsAddr       *string         `json:"metrics_addr"`
	SessionRate       *float64        `json:"session_rate"`
	SessionBurst      *int            `json:"session_burst"`
	AdminUser         *string         `json:"admin_user"`
	AdminPassword     *string         `json:"admin_password"`
	AuthPublicKeyFile *string         `json:"auth_public_key_file"`
	PowBits           *int            `json:"pow_bits"`
	MaxMessageBytes   *int            `json:"max_message_bytes"`
	StrictHostBinding *bool           `json:"strict_host_binding"`
	BlobBackend       *string         `json:"blob_backend"`
	BlobDir           *string         `json:"blob_dir"`
	S3RootUser        *string         `json:"s3_root_user"`
	S3RootPassword    *string         `json:"s3_root_password"`
	S3Bucket          *string         `json:"s3_bucket"`
	S3Region          *string         `json:"s3_region"`
	S3BaseEndpoint    *string         `json:"s3_base_endpoint"`
}

// parseJson overlays the JSON file named by -c/-config onto config. Without
// the flag nothing is loaded. An unreadable or invalid file panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	set(&config.EndpointAddr, c.EndpointAddr)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.KeyDir, c.KeyDir)
	if c.AutosaveInterval != nil {
		config.AutosaveInterval = c.AutosaveInterval.Duration
	}
	set(&config.MetricsAddr, c.MetricsAddr)
	set(&config.SessionRate, c.SessionRate)
	set(&config.SessionBurst, c.SessionBurst)
	set(&config.AdminUser, c.AdminUser)
	set(&config.AdminPassword, c.AdminPassword)
	set(&config.AuthPublicKeyFile, c.AuthPublicKeyFile)
	set(&config.PowBits, c.PowBits)
	set(&config.MaxMessageBytes, c.MaxMessageBytes)
	set(&config.StrictHostBinding, c.StrictHostBinding)
	set(&config.BlobBackend, c.BlobBackend)
	set(&config.BlobDir, c.BlobDir)
	set(&config.S3RootUser, c.S3RootUser)
	set(&config.S3RootPassword, c.S3RootPassword)
	set(&config.S3Bucket, c.S3Bucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
