package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:8081", "-g", "127.0.0.1:9090", "-D", "sqlite", "-d", "file:auth.db",
				"-s", "secret", "-i", "iss", "-u", "aud", "-t", "5", "-r", "30", "-k", "redis",
			},
			expected: &Config{
				EndpointAddrHTTP:   "127.0.0.1:8081",
				EndpointAddrGRPC:   "127.0.0.1:9090",
				DatabaseDriver:     "sqlite",
				DatabaseDSN:        "file:auth.db",
				SigningKey:         "secret",
				Issuer:             "iss",
				Audience:           "aud",
				AccessTokenMinutes: 5,
				RefreshTokenDays:   30,
				TokenStore:         "redis",
			},
		},
		{
			name:     "foreign flags are ignored",
			args:     []string{"-c", "cfg.json", "-env", "x.env", "-t", "9"},
			expected: &Config{AccessTokenMinutes: 9},
		},
		{
			name:    "non-integer minutes",
			args:    []string{"-t", "abc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			err := parseFlags(config, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
