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
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd", "-a", "127.0.0.1:9090", "-i", "10", "-d", "1500"}, expectPanic: false,
			expected: &Config{ServerEndpointAddr: "127.0.0.1:9090", OnlineCheckInterval: 10 * time.Second, AutosaveDelay: 1500 * time.Millisecond}},
		{name: "Test2 blob flags", args: []string{"cmd", "-m", "s3", "-e", "http://s3:9000", "-g", "eu-west-1", "-b", "files", "-u", "ak", "-p", "sk", "-k", "tok"}, expectPanic: false,
			expected: &Config{BlobBackend: "s3", BlobEndpoint: "http://s3:9000", BlobRegion: "eu-west-1", BlobBucket: "files", BlobAccessKey: "ak", BlobSecretKey: "sk", AccessToken: "tok"}},
		{name: "Test3 incorrect check interval", args: []string{"cmd", "-a", "127.0.0.1:9090", "-i", "abc"}, expectPanic: true, expected: &Config{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
