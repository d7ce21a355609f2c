package xapi

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr error
	}{
		{"nil", nil, ErrNilConfig},
		{"missing host", &Config{}, ErrMissingHost},
		{"no scheme", &Config{Host: "api.example.com"}, ErrInvalidHost},
		{"bad scheme", &Config{Host: "ftp://api.example.com"}, ErrInvalidHost},
		{"insecure", &Config{Host: "http://api.example.com"}, ErrInsecureHost},
		{"insecure allowed", &Config{Host: "http://localhost:8080", AllowInsecure: true}, nil},
		{"negative timeout", &Config{Host: "https://a.example.com", Timeout: -time.Second}, ErrInvalidTimeout},
		{"relative refresh path", &Config{Host: "https://a.example.com", RefreshPath: "users/refresh"}, ErrInvalidRefreshPath},
		{"5xx status", &Config{Host: "https://a.example.com", UnauthorizedStatus: 500}, ErrInvalidUnauthorizedStatus},
		{"valid", &Config{Host: "https://a.example.com/api/v1", UnauthorizedStatus: 419}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{Host: " https://api.example.com/api/v1/ "}
	cfg.ApplyDefaults()

	assert.Equal(t, "https://api.example.com/api/v1", cfg.Host)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, PathRefreshToken, cfg.RefreshPath)
	assert.Equal(t, DefaultUnauthorizedStatus, cfg.UnauthorizedStatus)
	assert.Equal(t, DefaultInvalidTokenMessage, cfg.InvalidTokenMessage)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, DefaultInvalidTokenMessage, cfg.invalidTokenSignal())

	cfg.InvalidTokenMessage = "-"
	assert.Empty(t, cfg.invalidTokenSignal())
}

func TestConfig_Clone(t *testing.T) {
	assert.Nil(t, (*Config)(nil).Clone())

	cfg := &Config{Host: "https://a.example.com", TLS: &TLSConfig{RootCAFile: "/ca.pem"}}
	clone := cfg.Clone()
	clone.TLS.RootCAFile = "/other.pem"
	assert.Equal(t, "/ca.pem", cfg.TLS.RootCAFile)
}

func TestTLSConfig_BuildTLSConfig(t *testing.T) {
	tlsCfg, err := (&TLSConfig{InsecureSkipVerify: true}).BuildTLSConfig()
	require.NoError(t, err)
	assert.True(t, tlsCfg.InsecureSkipVerify)
	assert.Nil(t, tlsCfg.RootCAs)

	_, err = (&TLSConfig{RootCAFile: filepath.Join(t.TempDir(), "missing.pem")}).BuildTLSConfig()
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a cert"), 0o600))
	_, err = (&TLSConfig{RootCAFile: bad}).BuildTLSConfig()
	assert.ErrorContains(t, err, "parse CA certificate")
}

func TestParseConfig(t *testing.T) {
	t.Run("yaml nested under api", func(t *testing.T) {
		data := []byte(`
api:
  host: https://api.example.com/api/v1
  timeout: 5s
  refresh_path: /auth/refresh
  unauthorized_status: 419
  invalid_token_message: Revoked
  tls:
    insecure_skip_verify: true
`)
		cfg, err := ParseConfig(data, ".yaml")
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com/api/v1", cfg.Host)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Equal(t, "/auth/refresh", cfg.RefreshPath)
		assert.Equal(t, 419, cfg.UnauthorizedStatus)
		assert.Equal(t, "Revoked", cfg.InvalidTokenMessage)
		require.NotNil(t, cfg.TLS)
		assert.True(t, cfg.TLS.InsecureSkipVerify)
	})

	t.Run("json at root", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{"host":"http://localhost:3000","allow_insecure":true}`), ".JSON")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:3000", cfg.Host)
		assert.True(t, cfg.AllowInsecure)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("empty", func(t *testing.T) {
		cfg, err := ParseConfig(nil, ".yml")
		require.NoError(t, err)
		assert.Empty(t, cfg.Host)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := ParseConfig([]byte("host = x"), ".toml")
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseConfig([]byte(`{"host":`), ".json")
		assert.ErrorIs(t, err, ErrLoadConfig)
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xtube.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host: https://api.example.com\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.Host)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadConfig)
}
