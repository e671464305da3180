package geoloqi

import (
	"fmt"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
)

// Adapter selects the HTTP transport a Session is built with.
type Adapter string

const (
	// AdapterNetHTTP uses a dedicated, non-shared transport (the default)
	AdapterNetHTTP Adapter = "net_http"
	// AdapterPooled uses a transport tuned for connection reuse
	AdapterPooled Adapter = "pooled"
)

// DefaultRetryRule decides whether an API error is worth one token renewal and retry.
const DefaultRetryRule = `token == "expired_token" && not (description contains "The auth code expired")`

// DefaultTimeout is used when Config.Timeout is zero
const DefaultTimeout = 30 * time.Second

// Config holds the connection and behavior options of a Session.
// A Session keeps its own copy, so changing a Config after the Session
// was created has no effect on it.
type Config struct {
	// ClientID is the OAuth2 client id of the application
	ClientID string `mapstructure:"client_id"`
	// ClientSecret is the OAuth2 client secret of the application
	ClientSecret string `mapstructure:"client_secret"`
	// RedirectURI is where users land after authorizing. When empty the
	// URI registered for the application is used by the server.
	RedirectURI string `mapstructure:"redirect_uri"`
	// Adapter selects the transport. Ignored when HTTPClient is set.
	Adapter Adapter `mapstructure:"adapter"`
	// Timeout of each HTTP call. Ignored when HTTPClient is set.
	Timeout time.Duration `mapstructure:"timeout"`
	// BaseURL of the API, without the version segment
	BaseURL string `mapstructure:"base_url"`

	// UseMash returns payloads as Mash trees with dotted-path access
	UseMash bool `mapstructure:"use_mash"`
	// ThrowExceptions returns server-reported errors as *APIError. When false
	// error payloads come back as ordinary results and callers check HasError.
	ThrowExceptions bool `mapstructure:"throw_exceptions"`
	// UseDynamicExceptions gives every server error token its own ErrorKind
	UseDynamicExceptions bool `mapstructure:"use_dynamic_exceptions"`
	// SymbolizeNames is accepted for compatibility with existing option maps.
	// Decoded payload keys are always kept verbatim.
	SymbolizeNames bool `mapstructure:"symbolize_names"`
	// RetryRule is an expr expression over token, description and status
	RetryRule string `mapstructure:"retry_rule"`
	// BatchConcurrency bounds how many batch chunks are posted at once
	BatchConcurrency int `mapstructure:"batch_concurrency"`

	// Logger receives trace lines for every exchange. Nil disables tracing.
	Logger *zerolog.Logger `mapstructure:"-"`
	// HTTPClient overrides the client built from Adapter and Timeout
	HTTPClient *http.Client `mapstructure:"-"`
	// RetryPredicate overrides RetryRule
	RetryPredicate func(*APIError) bool `mapstructure:"-"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Adapter:          AdapterNetHTTP,
		Timeout:          DefaultTimeout,
		BaseURL:          APIURL,
		ThrowExceptions:  true,
		SymbolizeNames:   true,
		RetryRule:        DefaultRetryRule,
		BatchConcurrency: 1,
	}
}

// NewConfig decodes a raw options map into a Config. Unset options keep
// their defaults; unknown keys are rejected.
func NewConfig(opts map[string]any) (*Config, error) {
	cfg := DefaultConfig()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			SecondsToDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, &ConfigError{Reason: "failed to create config decoder", Err: err}
	}
	if err := decoder.Decode(opts); err != nil {
		return nil, &ConfigError{Reason: "invalid config options", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SecondsToDurationHookFunc returns a decode hook that reads a bare number
// into a time.Duration as seconds, so "timeout: 30" means 30s.
func SecondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))

	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}

		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			seconds, err := cast.ToFloat64E(data)
			if err != nil {
				return nil, err
			}
			return time.Duration(seconds * float64(time.Second)), nil
		}
		return data, nil
	}
}

// HasClientID checks if the OAuth2 client id is present
func (c *Config) HasClientID() bool {
	return c.ClientID != ""
}

// HasClientSecret checks if the OAuth2 client secret is present
func (c *Config) HasClientSecret() bool {
	return c.ClientSecret != ""
}

// Validate checks the adapter and compiles the retry rule
func (c *Config) Validate() error {
	switch c.Adapter {
	case "", AdapterNetHTTP, AdapterPooled:
	default:
		return &ConfigError{Reason: fmt.Sprintf("unknown adapter: %s", c.Adapter)}
	}

	if c.BatchConcurrency < 0 {
		return &ConfigError{Reason: fmt.Sprintf("invalid batch_concurrency: %d", c.BatchConcurrency)}
	}

	if c.RetryPredicate == nil {
		if _, err := compileRetryRule(c.RetryRule); err != nil {
			return &ConfigError{Reason: "invalid retry_rule", Err: err}
		}
	}
	return nil
}

// httpClient builds the outbound client for a Session
func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}

	var client *http.Client
	if c.Adapter == AdapterPooled {
		client = cleanhttp.DefaultPooledClient()
	} else {
		client = cleanhttp.DefaultClient()
	}

	client.Timeout = c.Timeout
	if client.Timeout == 0 {
		client.Timeout = DefaultTimeout
	}
	return client
}

var (
	defaultMu     sync.RWMutex
	defaultConfig = DefaultConfig()
)

// Default returns the process-wide default Config used by sessions created
// without an explicit config.
func Default() Config {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultConfig
}

// SetDefault replaces the process-wide default Config.
func SetDefault(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultConfig = cfg
	return nil
}
