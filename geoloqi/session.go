package geoloqi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var _ oauth2.TokenSource = (*Session)(nil)

var nopLogger = zerolog.Nop()

// Session owns one OAuth2 credential and one outbound HTTP client. It is safe
// for concurrent use; credential replacement is serialized per session.
type Session struct {
	config    Config
	client    *http.Client
	now       func() time.Time
	retryRule *vm.Program

	mu   sync.RWMutex
	cred *Credential
	last *Response

	// renewMu serializes every token exchange that replaces cred
	renewMu  sync.Mutex
	renewals singleflight.Group

	appMu    sync.Mutex
	appToken string
}

// NewSession creates a session. Without WithConfig or WithConfigMap the
// process-wide default config is used.
func NewSession(opts ...Option) (*Session, error) {
	o := sessionOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	var cfg Config
	switch {
	case o.config != nil:
		cfg = *o.config
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	case o.configMap != nil:
		parsed, err := NewConfig(o.configMap)
		if err != nil {
			return nil, err
		}
		cfg = *parsed
	default:
		cfg = Default()
	}

	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = APIURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	s := &Session{
		config: cfg,
		client: cfg.httpClient(),
		now:    o.clock,
	}

	if cfg.RetryPredicate == nil {
		program, err := compileRetryRule(cfg.RetryRule)
		if err != nil {
			return nil, &ConfigError{Reason: "invalid retry_rule", Err: err}
		}
		s.retryRule = program
	}

	auth := o.auth
	if auth == nil {
		auth = make(map[string]any)
	}
	if o.accessToken != "" {
		auth["access_token"] = o.accessToken
	}
	cred := NewCredential(auth)
	s.cred = &cred

	return s, nil
}

// Config returns a copy of the session config
func (s *Session) Config() Config {
	return s.config
}

func (s *Session) credential() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cred
}

func (s *Session) setCredential(cred Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = &cred
}

// Auth returns a snapshot of the current credential. Persisting it is up to the caller.
func (s *Session) Auth() Credential {
	cred := s.credential()
	cred.Extra = maps.Clone(cred.Extra)
	return cred
}

// SetAuth replaces the current credential wholesale.
func (s *Session) SetAuth(auth map[string]any) {
	s.renewMu.Lock()
	defer s.renewMu.Unlock()
	s.setCredential(NewCredential(auth))
}

// AccessToken returns the current access token
func (s *Session) AccessToken() string {
	return s.credential().AccessToken
}

// HasAccessToken checks if the session has an access token
func (s *Session) HasAccessToken() bool {
	return s.AccessToken() != ""
}

// LastResponse returns the raw response of the most recent exchange, or nil
func (s *Session) LastResponse() *Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// AuthorizeURL builds the authorize URL for the session's client id. An empty
// redirectURI falls back to the configured one.
func (s *Session) AuthorizeURL(redirectURI string, extra ...Param) (string, error) {
	if redirectURI == "" {
		redirectURI = s.config.RedirectURI
	}
	return AuthorizeURL(s.config.ClientID, redirectURI, extra...)
}

// Get makes a GET request. query may be a query string, url.Values, a map or a struct.
func (s *Session) Get(ctx context.Context, path string, query any, headers map[string]string) (*Result, error) {
	return s.Run(ctx, http.MethodGet, path, query, headers)
}

// Post makes a POST request. body is JSON-encoded unless it is a string or []byte.
func (s *Session) Post(ctx context.Context, path string, body any, headers map[string]string) (*Result, error) {
	return s.Run(ctx, http.MethodPost, path, body, headers)
}

// AppGet makes a GET request authenticated with the application's client credentials.
func (s *Session) AppGet(ctx context.Context, path string, query any, headers map[string]string) (*Result, error) {
	appHeaders, err := s.appHeaders(headers)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, http.MethodGet, path, query, appHeaders)
}

// AppPost makes a POST request authenticated with the application's client credentials.
func (s *Session) AppPost(ctx context.Context, path string, body any, headers map[string]string) (*Result, error) {
	appHeaders, err := s.appHeaders(headers)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, http.MethodPost, path, body, appHeaders)
}

func (s *Session) appHeaders(headers map[string]string) (map[string]string, error) {
	if !s.config.HasClientID() || !s.config.HasClientSecret() {
		return nil, &ConfigError{Reason: "client_id and client_secret are required for application requests"}
	}

	out := maps.Clone(headers)
	if out == nil {
		out = make(map[string]string, 1)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(s.config.ClientID + ":" + s.config.ClientSecret))
	out["Authorization"] = "Basic " + credentials
	return out, nil
}

// Run makes a request and interprets the response. An expired credential is
// renewed first, and an expired_token error from the server triggers one
// renewal and one retry.
func (s *Session) Run(ctx context.Context, method, path string, body any, headers map[string]string) (*Result, error) {
	value, _, err := s.run(ctx, method, path, body, headers)
	if err != nil {
		return nil, err
	}
	return newResult(value, s.config.UseMash), nil
}

// bodyFunc builds a request body at send time, so a body that embeds the
// access token picks up the renewed one on every attempt.
type bodyFunc func() any

func (s *Session) run(ctx context.Context, method, path string, body any, headers map[string]string) (any, *Response, error) {
	if requestIDFrom(ctx) == "" {
		ctx = withRequestID(ctx, uuid.NewString())
	}

	if !isTokenPath(path) {
		if cred := s.credential(); cred.Expired(s.now()) {
			s.log().Info().
				Time("expires_at", cred.ExpiresAt).
				Str("path", path).
				Msg("Access token expired, renewing before request")

			if err := s.renew(ctx, cred.AccessToken); err != nil {
				return nil, nil, err
			}
		}
	}

	for attempt := 0; ; attempt++ {
		token := s.AccessToken()

		payload := body
		if build, ok := body.(bodyFunc); ok {
			payload = build()
		}

		resp, err := s.Execute(ctx, method, path, payload, headers)
		if err != nil {
			return nil, nil, err
		}

		value, err := s.decode(resp)
		if err != nil {
			return nil, resp, err
		}

		apiErr := s.apiError(resp.Status(), value)
		if apiErr == nil {
			return value, resp, nil
		}

		if attempt > 0 {
			return nil, resp, &RenewalError{Err: apiErr}
		}
		if isTokenPath(path) || !s.shouldRetry(apiErr) {
			return nil, resp, apiErr
		}

		s.log().Info().
			Str("path", path).
			Str("error", apiErr.Type).
			Msg("API reported an expired token, renewing and retrying once")

		if err := s.renew(ctx, token); err != nil {
			return nil, resp, err
		}
	}
}

// decode parses a response body. Object keys are kept exactly as the server sent them.
func (s *Session) decode(resp *Response) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(resp.Body()), &value); err != nil {
		return nil, &ProtocolError{Status: resp.Status(), Body: resp.Body(), Err: err}
	}
	return value, nil
}

func (s *Session) apiError(status int, value any) *APIError {
	if !s.config.ThrowExceptions {
		return nil
	}
	return detectAPIError(status, value, s.config.UseDynamicExceptions)
}

// errorIndicator returns the "error" field of a payload object when it marks
// an error: present and neither null nor false. An empty string still counts.
func errorIndicator(m map[string]any) (any, bool) {
	raw, ok := m["error"]
	if !ok || raw == nil || raw == false {
		return nil, false
	}
	return raw, true
}

// detectAPIError builds an APIError when value is an object carrying an error indicator.
func detectAPIError(status int, value any, dynamic bool) *APIError {
	m, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := errorIndicator(m)
	if !ok {
		return nil
	}

	apiErr := NewAPIError(status, cast.ToString(raw), cast.ToString(m["error_description"]))
	if dynamic {
		apiErr.Kind = KindFor(apiErr.Type)
	}
	return apiErr
}

func (s *Session) shouldRetry(apiErr *APIError) bool {
	if s.config.RetryPredicate != nil {
		return s.config.RetryPredicate(apiErr)
	}

	retry, err := evalRetryRule(s.retryRule, apiErr)
	if err != nil {
		s.log().Warn().Err(err).Msg("Retry rule failed, not retrying")
		return false
	}
	return retry
}

// renew refreshes the credential unless another caller already replaced the
// one that was found stale. Concurrent callers share a single exchange.
func (s *Session) renew(ctx context.Context, stale string) error {
	_, err, _ := s.renewals.Do("renew", func() (any, error) {
		s.renewMu.Lock()
		defer s.renewMu.Unlock()

		cred := s.credential()
		if cred.AccessToken != stale && !cred.Expired(s.now()) {
			return nil, nil
		}
		return s.establish(ctx, refreshParams(cred))
	})
	return err
}

func refreshParams(cred Credential) map[string]any {
	return map[string]any{
		"grant_type":    "refresh_token",
		"refresh_token": cred.RefreshToken,
	}
}

// Establish performs a token exchange with the given grant parameters and
// stores the returned credential.
func (s *Session) Establish(ctx context.Context, params map[string]any) (Credential, error) {
	s.renewMu.Lock()
	defer s.renewMu.Unlock()
	return s.establish(ctx, params)
}

// RenewAccessToken exchanges the stored refresh token for a new credential.
func (s *Session) RenewAccessToken(ctx context.Context) (Credential, error) {
	s.renewMu.Lock()
	defer s.renewMu.Unlock()
	return s.establish(ctx, refreshParams(s.credential()))
}

// GetAuth exchanges an authorization code for a credential. An empty
// redirectURI falls back to the configured one.
func (s *Session) GetAuth(ctx context.Context, code, redirectURI string) (Credential, error) {
	if redirectURI == "" {
		redirectURI = s.config.RedirectURI
	}

	s.renewMu.Lock()
	defer s.renewMu.Unlock()
	return s.establish(ctx, map[string]any{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": redirectURI,
	})
}

// ApplicationAccessToken returns the application's client-credentials token.
// The exchange happens once per session; the user credential is left alone.
func (s *Session) ApplicationAccessToken(ctx context.Context) (string, error) {
	s.appMu.Lock()
	defer s.appMu.Unlock()

	if s.appToken != "" {
		return s.appToken, nil
	}

	cred, err := s.exchange(ctx, map[string]any{"grant_type": "client_credentials"})
	if err != nil {
		return "", err
	}
	s.appToken = cred.AccessToken
	return s.appToken, nil
}

// Token implements oauth2.TokenSource, renewing an expired credential first.
func (s *Session) Token() (*oauth2.Token, error) {
	cred := s.credential()
	if cred.Expired(s.now()) {
		if err := s.renew(context.Background(), cred.AccessToken); err != nil {
			return nil, err
		}
		cred = s.credential()
	}
	if cred.AccessToken == "" {
		return nil, &ConfigError{Reason: "session has no access token"}
	}
	return cred.OAuth2Token(), nil
}

// establish must be called with renewMu held.
func (s *Session) establish(ctx context.Context, params map[string]any) (Credential, error) {
	cred, err := s.exchange(ctx, params)
	if err != nil {
		return Credential{}, err
	}
	s.setCredential(cred)

	s.log().Debug().
		Bool("has_refresh_token", cred.RefreshToken != "").
		Time("expires_at", cred.ExpiresAt).
		Msg("Stored new credential")
	return cred, nil
}

// exchange posts to the token endpoint and returns the issued credential without storing it.
func (s *Session) exchange(ctx context.Context, params map[string]any) (Credential, error) {
	if !s.config.HasClientID() || !s.config.HasClientSecret() {
		return Credential{}, &ConfigError{Reason: "client_id and client_secret are required to get access token"}
	}

	body := map[string]any{
		"client_id":     s.config.ClientID,
		"client_secret": s.config.ClientSecret,
	}
	maps.Copy(body, params)

	value, resp, err := s.run(ctx, http.MethodPost, tokenPath, body, nil)
	if err != nil {
		return Credential{}, err
	}

	m, ok := value.(map[string]any)
	if !ok {
		return Credential{}, fmt.Errorf("%w: token endpoint returned %T, not an object", ErrProtocol, value)
	}
	// error payloads are never stored, whatever ThrowExceptions says
	if apiErr := detectAPIError(resp.Status(), m, s.config.UseDynamicExceptions); apiErr != nil {
		return Credential{}, apiErr
	}

	cred := NewCredential(m)
	cred.ExpiresAt = expiresAt(s.now(), cred.ExpiresIn)
	return cred, nil
}

// Batch collects the calls made by build and runs them as batch requests.
func (s *Session) Batch(ctx context.Context, build func(b *Batch)) ([]BatchResult, error) {
	b := NewBatch(s)
	build(b)
	return b.Run(ctx)
}

func (s *Session) log() *zerolog.Logger {
	if s.config.Logger != nil {
		return s.config.Logger
	}
	return &nopLogger
}

func isTokenPath(path string) bool {
	return strings.TrimPrefix(path, "/") == tokenPath
}
