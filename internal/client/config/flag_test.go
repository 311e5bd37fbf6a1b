package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name        string
		args        []string
		expected    *Config
		command     []string
		expectPanic bool
	}{
		{
			name: "all flags then command",
			args: []string{"cmd", "-a", "auth:1", "-m", "msg:2", "-u", "alice", "-k", "/keys", "-H", "/hosts.db", "-t", "5s", "-y",
				"send", "team", "general", "hello", "-u", "ignored"},
			expected: &Config{AuthAddr: "auth:1", MessageAddr: "msg:2", Username: "alice", KeyDir: "/keys", HostsDB: "/hosts.db", Timeout: 5 * time.Second, TrustHosts: true},
			command:  []string{"send", "team", "general", "hello", "-u", "ignored"},
		},
		{
			name:     "config flag is skipped",
			args:     []string{"cmd", "-c", "cfg.json", "-u", "bob", "keys"},
			expected: &Config{Username: "bob"},
			command:  []string{"keys"},
		},
		{
			name:        "bad timeout",
			args:        []string{"cmd", "-t", "later"},
			expectPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args
			cfg := &Config{}

			if tt.expectPanic {
				require.Panics(t, func() { parseFlags(cfg) })
				return
			}
			require.NotPanics(t, func() { parseFlags(cfg) })
			assert.Empty(t, cmp.Diff(tt.expected, cfg))
			assert.Equal(t, tt.command, Args())
		})
	}
}
