package geoloqi

import (
	"maps"
	"net/http"
	"time"
)

// Option configures a Session.
type Option func(*sessionOptions)

// sessionOptions holds the construction options of a Session.
type sessionOptions struct {
	auth        map[string]any
	accessToken string
	config      *Config
	configMap   map[string]any
	httpClient  *http.Client
	clock       func() time.Time
}

// WithAuth seeds the session with a stored credential map.
func WithAuth(auth map[string]any) Option {
	return func(o *sessionOptions) {
		o.auth = maps.Clone(auth)
	}
}

// WithAccessToken seeds the session with a bare access token. It wins over
// an access_token given through WithAuth.
func WithAccessToken(token string) Option {
	return func(o *sessionOptions) {
		o.accessToken = token
	}
}

// WithConfig sets the session config. The session keeps its own copy.
func WithConfig(cfg Config) Option {
	return func(o *sessionOptions) {
		o.config = &cfg
	}
}

// WithConfigMap sets the session config from a raw options map, see NewConfig.
func WithConfigMap(opts map[string]any) Option {
	return func(o *sessionOptions) {
		o.configMap = opts
	}
}

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(client *http.Client) Option {
	return func(o *sessionOptions) {
		o.httpClient = client
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *sessionOptions) {
		if now != nil {
			o.clock = now
		}
	}
}
