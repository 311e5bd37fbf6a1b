package flagx

import (
	"os"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	serverFlags := []string{"-a", "-d", "-B", "-strict"}

	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "config flags only",
			args:    []string{"-c", "auth.json", "-a", ":50051"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-c", "auth.json"},
		},
		{
			name:    "equals form",
			args:    []string{"-config=msg.json", "-a", ":50052"},
			allowed: []string{"-c", "-config"},
			want:    []string{"-config=msg.json"},
		},
		{
			name:    "service flags keep order and values",
			args:    []string{"-c", "msg.json", "-d", "postgres://u@db/groups", "-B", "s3", "-a", ":50052"},
			allowed: serverFlags,
			want:    []string{"-d", "postgres://u@db/groups", "-B", "s3", "-a", ":50052"},
		},
		{
			name:    "bool flag followed by another flag takes no value",
			args:    []string{"-strict", "-a", ":1"},
			allowed: serverFlags,
			want:    []string{"-strict", "-a", ":1"},
		},
		{
			name:    "bool flag with explicit value",
			args:    []string{"-strict=false"},
			allowed: serverFlags,
			want:    []string{"-strict=false"},
		},
		{
			name:    "client command words are dropped",
			args:    []string{"-u", "alice", "send", "devs", "general", "hi"},
			allowed: []string{"-u"},
			want:    []string{"-u", "alice"},
		},
		{
			name:    "dangling flag at the end",
			args:    []string{"-d"},
			allowed: serverFlags,
			want:    []string{"-d"},
		},
		{
			name:    "value that looks like a flag in equals form",
			args:    []string{"-config=--weird.json"},
			allowed: []string{"-config"},
			want:    []string{"-config=--weird.json"},
		},
		{
			name:    "repeated flag is preserved",
			args:    []string{"-c", "one.json", "-c", "two.json"},
			allowed: []string{"-c"},
			want:    []string{"-c", "one.json", "-c", "two.json"},
		},
		{
			name:    "empty args",
			args:    []string{},
			allowed: serverFlags,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FilterArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func Test_jsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("short -c with value", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/path/short.json"}
		assert.Equal(t, "/path/short.json", JsonConfigFlags())
	})

	t.Run("long -config with value", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", "/path/long.json"}
		assert.Equal(t, "/path/long.json", JsonConfigFlags())
	})

	t.Run("other flags and commands are ignored", func(t *testing.T) {
		os.Args = []string{"testbin", "-a", ":50051", "-y", "channels"}
		assert.Empty(t, JsonConfigFlags())
	})

	t.Run("multiple flags, last wins", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", "/path/1.json", "-config", "/path/2.json"}
		assert.Equal(t, "/path/2.json", JsonConfigFlags())
	})
}

func TestPositional(t *testing.T) {
	valueFlags := []string{"-a", "-u", "-c"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "flags then command", args: []string{"-a", "host:1", "-u", "alice", "send", "g", "c", "hi"}, want: []string{"send", "g", "c", "hi"}},
		{name: "equals form", args: []string{"-a=host:1", "channels"}, want: []string{"channels"}},
		{name: "bool flag stands alone", args: []string{"-y", "read", "g", "c"}, want: []string{"read", "g", "c"}},
		{name: "flags after command are positional", args: []string{"send", "g", "c", "-a"}, want: []string{"send", "g", "c", "-a"}},
		{name: "double dash", args: []string{"-u", "bob", "--", "-weird"}, want: []string{"-weird"}},
		{name: "only flags", args: []string{"-c", "cfg.json"}, want: []string{}},
		{name: "empty", args: []string{}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Positional(tt.args, valueFlags))
		})
	}
}
