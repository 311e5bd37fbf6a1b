package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophgroups/internal/flagx"
	"github.com/dmitrijs2005/gophgroups/internal/timex"
)

// JsonConfig is the on-disk shape of Config; absent fields keep their
// current values.
type JsonConfig struct {
	AuthAddr    *string         `json:"auth_addr"`
	MessageAddr *string         `json:"message_addr"`
	Username    *string         `json:"username"`
	KeyDir      *string         `json:"key_dir"`
	HostsDB     *string         `json:"hosts_db"`
	Timeout     *timex.Duration `json:"timeout"`
	TrustHosts  *bool           `json:"trust_hosts"`
}

// parseJson overlays cfg with the file named by -c/-config. It panics on a
// missing or malformed file.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.AuthAddr != nil {
		cfg.AuthAddr = *jc.AuthAddr
	}
	if jc.MessageAddr != nil {
		cfg.MessageAddr = *jc.MessageAddr
	}
	if jc.Username != nil {
		cfg.Username = *jc.Username
	}
	if jc.KeyDir != nil {
		cfg.KeyDir = *jc.KeyDir
	}
	if jc.HostsDB != nil {
		cfg.HostsDB = *jc.HostsDB
	}
	if jc.Timeout != nil {
		cfg.Timeout = jc.Timeout.Duration
	}
	if jc.TrustHosts != nil {
		cfg.TrustHosts = *jc.TrustHosts
	}
}
