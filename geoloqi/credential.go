package geoloqi

import (
	"maps"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/oauth2"
)

// expiryMargin is taken off the server-reported lifetime so a token is
// renewed slightly before the server stops accepting it.
const expiryMargin = 5 * time.Second

// Credential is the OAuth2 token bundle held by a Session. It is a value:
// sessions replace it wholesale and never mutate it in place.
type Credential struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the lifetime in seconds reported by the server, 0 if unknown
	ExpiresIn int64
	// ExpiresAt is when the token should be considered expired. Zero means never.
	ExpiresAt time.Time
	// Extra holds every other field the server returned (scope, token_type, ...)
	Extra map[string]any
}

// NewCredential builds a Credential from a map as returned by the token endpoint
// or as previously stored by the caller. Keys are canonicalized first.
func NewCredential(m map[string]any) Credential {
	var c Credential
	c.Extra = make(map[string]any)

	for k, v := range m {
		switch key := canonicalKey(k); key {
		case "access_token":
			c.AccessToken = cast.ToString(v)
		case "refresh_token":
			c.RefreshToken = cast.ToString(v)
		case "expires_in":
			c.ExpiresIn = cast.ToInt64(v)
		case "expires_at":
			c.ExpiresAt = parseExpiresAt(v)
		default:
			c.Extra[key] = v
		}
	}
	return c
}

// parseExpiresAt accepts a time, an RFC 1123/2822 or RFC 3339 string, or unix seconds.
func parseExpiresAt(v any) time.Time {
	switch t := v.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return t
	case string:
		if t == "" {
			return time.Time{}
		}
		for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	}

	if secs, err := cast.ToInt64E(v); err == nil && secs > 0 {
		return time.Unix(secs, 0)
	}
	return time.Time{}
}

// expiresAt computes the expiry of a freshly issued token. A lifetime of zero means it never expires.
func expiresAt(now time.Time, expiresIn int64) time.Time {
	if expiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(time.Duration(expiresIn) * time.Second).Add(-expiryMargin)
}

// Expired reports whether the credential has a known expiry strictly before now.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now)
}

// HasExpiry reports whether an expiry is known
func (c Credential) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// Get returns any field of the credential by canonical key
func (c Credential) Get(key string) any {
	return c.Map()[canonicalKey(key)]
}

// Map returns the credential as a map suitable for storage and for
// re-creating the credential with NewCredential.
func (c Credential) Map() map[string]any {
	m := maps.Clone(c.Extra)
	if m == nil {
		m = make(map[string]any)
	}
	if c.AccessToken != "" {
		m["access_token"] = c.AccessToken
	}
	if c.RefreshToken != "" {
		m["refresh_token"] = c.RefreshToken
	}
	if c.ExpiresIn != 0 {
		m["expires_in"] = c.ExpiresIn
	}
	if !c.ExpiresAt.IsZero() {
		m["expires_at"] = c.ExpiresAt.Format(time.RFC1123Z)
	}
	return m
}

// OAuth2Token converts the credential into a golang.org/x/oauth2 token.
func (c Credential) OAuth2Token() *oauth2.Token {
	tokenType := cast.ToString(c.Extra["token_type"])
	if tokenType == "" {
		tokenType = "OAuth"
	}
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    tokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.ExpiresAt,
	}
	return tok.WithExtra(maps.Clone(c.Extra))
}
