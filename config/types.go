package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Client  ClientConfig  `mapstructure:"client"`
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`

	// File is the config file the values were read from, empty when none was found
	File string `mapstructure:"-"`
}

// ClientConfig holds the OAuth2 application registration
type ClientConfig struct {
	ID          string `mapstructure:"id"`
	Secret      string `mapstructure:"secret"`
	RedirectURI string `mapstructure:"redirect_uri"`
}

// APIConfig contains connection and response handling settings
type APIConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	Adapter              string        `mapstructure:"adapter"`
	Timeout              time.Duration `mapstructure:"timeout"`
	UseMash              bool          `mapstructure:"use_mash"`
	ThrowExceptions      bool          `mapstructure:"throw_exceptions"`
	UseDynamicExceptions bool          `mapstructure:"use_dynamic_exceptions"`
	SymbolizeNames       bool          `mapstructure:"symbolize_names"`
	RetryRule            string        `mapstructure:"retry_rule"`
	BatchConcurrency     int           `mapstructure:"batch_concurrency"`
}

// AuthConfig holds a stored user credential
type AuthConfig struct {
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
	// ExpiresAt is an RFC 1123 or RFC 3339 timestamp, empty when the token never expires
	ExpiresAt string `mapstructure:"expires_at"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
	// Trace logs every API exchange at debug level
	Trace bool `mapstructure:"trace"`
}
