package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/geoloqi/geoloqi-go/geoloqi"
)

// EnvPrefix prefixes environment overrides, e.g. GEOLOQI_CLIENT_ID
const EnvPrefix = "GEOLOQI"

// Load loads the configuration from file and environment. Without an
// explicit path a missing config file is not an error.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".geoloqi"))
		}

		// Check /etc
		v.AddConfigPath("/etc/geoloqi/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		geoloqi.SecondsToDurationHookFunc(),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults sets default configuration values. Every key gets a default
// so environment overrides apply to it.
func setDefaults(v *viper.Viper) {
	defaults := geoloqi.DefaultConfig()

	// Client defaults
	v.SetDefault("client.id", "")
	v.SetDefault("client.secret", "")
	v.SetDefault("client.redirect_uri", "")

	// API defaults
	v.SetDefault("api.base_url", defaults.BaseURL)
	v.SetDefault("api.adapter", string(defaults.Adapter))
	v.SetDefault("api.timeout", defaults.Timeout)
	v.SetDefault("api.use_mash", defaults.UseMash)
	v.SetDefault("api.throw_exceptions", defaults.ThrowExceptions)
	v.SetDefault("api.use_dynamic_exceptions", defaults.UseDynamicExceptions)
	v.SetDefault("api.symbolize_names", defaults.SymbolizeNames)
	v.SetDefault("api.retry_rule", defaults.RetryRule)
	v.SetDefault("api.batch_concurrency", defaults.BatchConcurrency)

	// Stored credential
	v.SetDefault("auth.access_token", "")
	v.SetDefault("auth.refresh_token", "")
	v.SetDefault("auth.expires_at", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.trace", false)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}

	sessionCfg := cfg.SessionConfig(nil)
	if err := sessionCfg.Validate(); err != nil {
		return err
	}

	return nil
}

// SessionConfig converts the file settings into a library config. The
// logger is attached only when tracing is enabled.
func (c *Config) SessionConfig(logger *zerolog.Logger) geoloqi.Config {
	cfg := geoloqi.Config{
		ClientID:             c.Client.ID,
		ClientSecret:         c.Client.Secret,
		RedirectURI:          c.Client.RedirectURI,
		Adapter:              geoloqi.Adapter(c.API.Adapter),
		Timeout:              c.API.Timeout,
		BaseURL:              c.API.BaseURL,
		UseMash:              c.API.UseMash,
		ThrowExceptions:      c.API.ThrowExceptions,
		UseDynamicExceptions: c.API.UseDynamicExceptions,
		SymbolizeNames:       c.API.SymbolizeNames,
		RetryRule:            c.API.RetryRule,
		BatchConcurrency:     c.API.BatchConcurrency,
	}
	if c.Logging.Trace {
		cfg.Logger = logger
	}
	return cfg
}

// AuthMap returns the stored credential in the form NewSession accepts
func (c *Config) AuthMap() map[string]any {
	auth := make(map[string]any, 3)
	if c.Auth.AccessToken != "" {
		auth["access_token"] = c.Auth.AccessToken
	}
	if c.Auth.RefreshToken != "" {
		auth["refresh_token"] = c.Auth.RefreshToken
	}
	if c.Auth.ExpiresAt != "" {
		auth["expires_at"] = c.Auth.ExpiresAt
	}
	return auth
}

// SaveAuth writes a credential into the auth section of a config file,
// keeping the other settings of the file.
func SaveAuth(path string, cred geoloqi.Credential) error {
	if path == "" {
		return fmt.Errorf("no config file to save the credential to")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error reading config: %w", err)
	}

	expiresAt := ""
	if cred.HasExpiry() {
		expiresAt = cred.Map()["expires_at"].(string)
	}

	v.Set("auth.access_token", cred.AccessToken)
	v.Set("auth.refresh_token", cred.RefreshToken)
	v.Set("auth.expires_at", expiresAt)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}
