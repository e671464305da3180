package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoloqi/geoloqi-go/geoloqi"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
client:
  id: abc
  secret: def
  redirect_uri: https://example.com/callback
api:
  timeout: 10s
  use_dynamic_exceptions: true
  batch_concurrency: 4
auth:
  access_token: token-1
  refresh_token: refresh-1
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Client.ID)
	assert.Equal(t, "def", cfg.Client.Secret)
	assert.Equal(t, "https://example.com/callback", cfg.Client.RedirectURI)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.True(t, cfg.API.UseDynamicExceptions)
	assert.Equal(t, 4, cfg.API.BatchConcurrency)
	assert.Equal(t, "token-1", cfg.Auth.AccessToken)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, path, cfg.File)

	// defaults fill everything the file leaves out
	assert.Equal(t, geoloqi.APIURL, cfg.API.BaseURL)
	assert.Equal(t, "net_http", cfg.API.Adapter)
	assert.True(t, cfg.API.ThrowExceptions)
	assert.True(t, cfg.API.SymbolizeNames)
	assert.Equal(t, geoloqi.DefaultRetryRule, cfg.API.RetryRule)
	assert.True(t, cfg.Logging.Color)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
client:
  id: from-file
`)
	t.Setenv("GEOLOQI_CLIENT_ID", "from-env")
	t.Setenv("GEOLOQI_AUTH_ACCESS_TOKEN", "env-token")
	t.Setenv("GEOLOQI_API_TIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Client.ID)
	assert.Equal(t, "env-token", cfg.Auth.AccessToken)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
}

func TestLoadNumericTimeout(t *testing.T) {
	path := writeConfig(t, `
api:
  timeout: 45
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.API.Timeout)
	assert.Equal(t, 45*time.Second, cfg.SessionConfig(nil).Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			API: APIConfig{
				BaseURL: geoloqi.APIURL,
				Adapter: "net_http",
			},
			Logging: LoggingConfig{Level: "info", Format: "console"},
		}
	}

	tests := []struct {
		name    string
		modify  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid",
			modify: func(*Config) {},
		},
		{
			name:    "invalid logging level",
			modify:  func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantErr: "invalid logging level: verbose",
		},
		{
			name:    "invalid logging format",
			modify:  func(cfg *Config) { cfg.Logging.Format = "xml" },
			wantErr: "invalid logging format: xml",
		},
		{
			name:    "missing base url",
			modify:  func(cfg *Config) { cfg.API.BaseURL = "" },
			wantErr: "api.base_url is required",
		},
		{
			name:    "unknown adapter",
			modify:  func(cfg *Config) { cfg.API.Adapter = "excon" },
			wantErr: "unknown adapter: excon",
		},
		{
			name:    "broken retry rule",
			modify:  func(cfg *Config) { cfg.API.RetryRule = "token ==" },
			wantErr: "invalid retry_rule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)

			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := &Config{
		Client: ClientConfig{ID: "abc", Secret: "def", RedirectURI: "https://example.com/cb"},
		API: APIConfig{
			BaseURL:          "http://localhost:9000",
			Adapter:          "pooled",
			Timeout:          5 * time.Second,
			ThrowExceptions:  true,
			BatchConcurrency: 2,
		},
	}
	logger := zerolog.Nop()

	out := cfg.SessionConfig(&logger)
	assert.Equal(t, "abc", out.ClientID)
	assert.Equal(t, "def", out.ClientSecret)
	assert.Equal(t, geoloqi.AdapterPooled, out.Adapter)
	assert.Equal(t, 5*time.Second, out.Timeout)
	assert.Equal(t, 2, out.BatchConcurrency)
	assert.Nil(t, out.Logger, "logger is attached only with tracing on")

	cfg.Logging.Trace = true
	assert.Same(t, &logger, cfg.SessionConfig(&logger).Logger)
}

func TestAuthMap(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{AccessToken: "abc"}}
	assert.Equal(t, map[string]any{"access_token": "abc"}, cfg.AuthMap())

	cfg.Auth.RefreshToken = "def"
	cfg.Auth.ExpiresAt = "Thu, 01 Jan 2026 12:00:00 +0000"
	cred := geoloqi.NewCredential(cfg.AuthMap())
	assert.Equal(t, "def", cred.RefreshToken)
	assert.True(t, cred.HasExpiry())
}

func TestSaveAuth(t *testing.T) {
	path := writeConfig(t, `
client:
  id: abc
logging:
  level: debug
`)

	expires := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	err := SaveAuth(path, geoloqi.Credential{
		AccessToken:  "saved-token",
		RefreshToken: "saved-refresh",
		ExpiresAt:    expires,
	})
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Client.ID, "other settings are kept")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "saved-token", cfg.Auth.AccessToken)
	assert.Equal(t, "saved-refresh", cfg.Auth.RefreshToken)

	cred := geoloqi.NewCredential(cfg.AuthMap())
	assert.True(t, expires.Equal(cred.ExpiresAt))
}

func TestSaveAuthWithoutFile(t *testing.T) {
	assert.Error(t, SaveAuth("", geoloqi.Credential{AccessToken: "abc"}))
}
