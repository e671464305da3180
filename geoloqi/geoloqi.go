package geoloqi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const (
	// APIVersion is the version segment prefixed to every API path
	APIVersion = 1
	// APIURL is the base URL of the Geoloqi API
	APIURL = "https://api.geoloqi.com"
	// OAuthURL is the OAuth2 authorization endpoint users are sent to
	OAuthURL = "https://beta.geoloqi.com/oauth/authorize"
	// Version of this client, sent in the User-Agent header
	Version = "1.0.0"

	tokenPath = "oauth/token"
	batchPath = "batch/run"
)

// UserAgent is sent with every request
var UserAgent = "geoloqi-go " + Version

// Param is one extra query parameter of an authorize URL. A slice of
// Params keeps the order the caller gave them in.
type Param struct {
	Key   string
	Value string
}

// AuthorizeURL builds the URL a user visits to grant the application access.
func AuthorizeURL(clientID, redirectURI string, extra ...Param) (string, error) {
	if clientID == "" {
		return "", &ArgumentError{Reason: "client_id required to authorize url. Pass with the session config"}
	}

	var b strings.Builder
	b.WriteString(OAuthURL)
	b.WriteString("?response_type=code&client_id=")
	b.WriteString(url.QueryEscape(clientID))
	b.WriteString("&redirect_uri=")
	b.WriteString(url.QueryEscape(redirectURI))
	for _, p := range extra {
		b.WriteString("&")
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteString("=")
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String(), nil
}

// Get makes a one-off GET request with a bare access token and the default config.
func Get(ctx context.Context, accessToken, path string, query any) (*Result, error) {
	return Run(ctx, http.MethodGet, accessToken, path, query)
}

// Post makes a one-off POST request with a bare access token and the default config.
func Post(ctx context.Context, accessToken, path string, body any) (*Result, error) {
	return Run(ctx, http.MethodPost, accessToken, path, body)
}

// Run makes a one-off request on a fresh Session.
func Run(ctx context.Context, method, accessToken, path string, body any) (*Result, error) {
	session, err := NewSession(WithAccessToken(accessToken))
	if err != nil {
		return nil, err
	}
	return session.Run(ctx, method, path, body, nil)
}
