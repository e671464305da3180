package geoloqi

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Common errors
var (
	// ErrConfig indicates missing or invalid client configuration
	ErrConfig = errors.New("geoloqi configuration error")
	// ErrArgument indicates an argument that cannot be satisfied
	ErrArgument = errors.New("geoloqi argument error")
	// ErrProtocol indicates a response body that is not valid JSON
	ErrProtocol = errors.New("geoloqi protocol error")
	// ErrBatchResult indicates a batch response without a result list
	ErrBatchResult = errors.New("batch response has no result list")
)

// ConfigError is returned when required configuration is absent or invalid.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Is reports ErrConfig as matching every ConfigError.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// ArgumentError is returned when a caller passes an argument that cannot be satisfied.
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string { return e.Reason }

func (e *ArgumentError) Is(target error) bool { return target == ErrArgument }

// ProtocolError is returned when the API answers with something that is not JSON.
type ProtocolError struct {
	Status int
	Body   string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("API returned invalid JSON. Status: %d Body: %s", e.Status, e.Body)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// APIError represents an error reported by the Geoloqi API server itself.
type APIError struct {
	// Status is the HTTP status code, e.g. 404
	Status int
	// Type is the error token, e.g. "not_found" or "invalid_input"
	Type string
	// Reason is the optional human-readable explanation
	Reason string
	// Kind is KindAPI, or the per-token kind when dynamic exceptions are enabled
	Kind *ErrorKind
}

// NewAPIError builds an APIError of the generic kind.
func NewAPIError(status int, errType, reason string) *APIError {
	return &APIError{Status: status, Type: errType, Reason: reason, Kind: KindAPI}
}

// Error implements the error interface
func (e *APIError) Error() string {
	msg := e.Type
	if e.Reason != "" {
		msg += " - " + e.Reason
	}
	return fmt.Sprintf("%s (%d)", msg, e.Status)
}

// Is matches the error's kind. Every APIError is of kind KindAPI.
func (e *APIError) Is(target error) bool {
	kind, ok := target.(*ErrorKind)
	if !ok {
		return false
	}
	return kind == KindAPI || kind == e.Kind
}

// IsNotFound checks if the error indicates a not found response
func (e *APIError) IsNotFound() bool {
	return e.Status == 404
}

// IsUnauthorized checks if the error indicates an authentication failure
func (e *APIError) IsUnauthorized() bool {
	return e.Status == 401 || e.Status == 403
}

// RenewalError is returned when a request still fails after the access token was renewed.
type RenewalError struct {
	Err error
}

func (e *RenewalError) Error() string {
	return "Unable to procure fresh access token from API on second attempt"
}

func (e *RenewalError) Unwrap() error { return e.Err }

// ErrorKind names a class of API error. Kinds are registry entries: the same
// token always yields the same *ErrorKind, so they can be compared with errors.Is.
type ErrorKind struct {
	name  string
	token string
}

// Name returns the kind name, e.g. "NotFoundError".
func (k *ErrorKind) Name() string { return k.name }

// Token returns the server error token the kind was created for, empty for KindAPI.
func (k *ErrorKind) Token() string { return k.token }

func (k *ErrorKind) Error() string { return k.name }

// KindAPI is the generic kind shared by every APIError.
var KindAPI = &ErrorKind{name: "ApiError"}

var (
	kinds       sync.Map
	nonWordRuns = regexp.MustCompile(`\W+`)
)

// KindFor returns the memoized kind for a server error token. An empty token maps to KindAPI.
func KindFor(token string) *ErrorKind {
	if token == "" {
		return KindAPI
	}
	if kind, ok := kinds.Load(token); ok {
		return kind.(*ErrorKind)
	}
	kind, _ := kinds.LoadOrStore(token, &ErrorKind{name: kindName(token), token: token})
	return kind.(*ErrorKind)
}

// kindName turns "not_found" into "NotFoundError".
func kindName(token string) string {
	var b strings.Builder
	for _, word := range strings.Split(nonWordRuns.ReplaceAllString(token, "_"), "_") {
		if word == "" {
			continue
		}
		b.WriteString(strings.ToUpper(word[:1]))
		b.WriteString(strings.ToLower(word[1:]))
	}
	b.WriteString("Error")
	return b.String()
}
