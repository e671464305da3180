package geoloqi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-querystring/query"
	"github.com/spf13/cast"
)

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Execute sends one request and returns the raw response without
// interpreting it. For GET, body becomes query parameters; for other methods
// strings and byte slices are sent as is and anything else is JSON-encoded.
func (s *Session) Execute(ctx context.Context, method, path string, body any, headers map[string]string) (*Response, error) {
	method = strings.ToUpper(method)

	target, params, err := s.requestURL(path)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if method == http.MethodGet {
		extra, err := queryParams(body)
		if err != nil {
			return nil, err
		}
		for k, vs := range extra {
			for _, v := range vs {
				params.Add(k, v)
			}
		}
	} else if body != nil {
		payload, err := encodeBody(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}
	target.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = s.requestHeaders(headers)

	raw, err := s.client.Do(req)
	if err != nil {
		s.log().Debug().
			Err(err).
			Str("request_id", requestIDFrom(ctx)).
			Str("method", method).
			Str("path", path).
			Msg("geoloqi request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer raw.Body.Close()

	data, err := io.ReadAll(raw.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	resp := NewResponse(raw.StatusCode, raw.Header, string(data))

	s.mu.Lock()
	s.last = resp
	s.mu.Unlock()

	s.trace(ctx, method, path, params, req.Header, resp)
	return resp, nil
}

// requestURL prefixes the API version and splits off a query string given in the path.
func (s *Session) requestURL(path string) (*url.URL, url.Values, error) {
	path = strings.TrimPrefix(path, "/")

	rawQuery := ""
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path, rawQuery = path[:i], path[i+1:]
	}

	target, err := url.Parse(s.config.BaseURL + "/" + strconv.Itoa(APIVersion) + "/" + path)
	if err != nil {
		return nil, nil, &ArgumentError{Reason: fmt.Sprintf("invalid path %q: %v", path, err)}
	}

	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, nil, &ArgumentError{Reason: fmt.Sprintf("invalid query in path %q: %v", path, err)}
	}
	return target, params, nil
}

// requestHeaders merges caller headers over the defaults
func (s *Session) requestHeaders(headers map[string]string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("User-Agent", UserAgent)
	if token := s.AccessToken(); token != "" {
		h.Set("Authorization", "OAuth "+token)
	}

	for k, v := range headers {
		h.Set(k, v)
	}
	return h
}

// queryParams turns a GET body into query parameters
func queryParams(body any) (url.Values, error) {
	switch v := body.(type) {
	case nil:
		return url.Values{}, nil
	case string:
		return parseQuery(v)
	case []byte:
		return parseQuery(string(v))
	case url.Values:
		return v, nil
	case map[string]string:
		params := url.Values{}
		for k, val := range v {
			params.Set(k, val)
		}
		return params, nil
	case map[string]any:
		return mapParams(v), nil
	case Mash:
		return mapParams(v), nil
	default:
		params, err := query.Values(v)
		if err != nil {
			return nil, &ArgumentError{Reason: fmt.Sprintf("cannot encode %T as query parameters: %v", body, err)}
		}
		return params, nil
	}
}

func parseQuery(raw string) (url.Values, error) {
	params, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return nil, &ArgumentError{Reason: fmt.Sprintf("invalid query string %q: %v", raw, err)}
	}
	return params, nil
}

func mapParams(m map[string]any) url.Values {
	params := url.Values{}
	for k, val := range m {
		switch val.(type) {
		case []any, []string, []int, []float64:
			for _, item := range cast.ToStringSlice(val) {
				params.Add(k, item)
			}
		default:
			params.Set(k, cast.ToString(val))
		}
	}
	return params
}

// encodeBody serializes a non-GET body
func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return payload, nil
	}
}

// trace writes one diagnostic line per exchange. It never affects the outcome.
func (s *Session) trace(ctx context.Context, method, path string, params url.Values, headers http.Header, resp *Response) {
	if s.config.Logger == nil {
		return
	}

	s.config.Logger.Debug().
		Str("request_id", requestIDFrom(ctx)).
		Str("method", method).
		Str("path", path).
		Str("query", params.Encode()).
		Interface("request_headers", maskAuthorization(headers)).
		Int("status", resp.Status()).
		Interface("response_headers", resp.headers).
		Str("body", resp.Body()).
		Msg("geoloqi exchange")
}

func maskAuthorization(headers http.Header) http.Header {
	masked := headers.Clone()
	if auth := masked.Get("Authorization"); auth != "" {
		scheme, _, _ := strings.Cut(auth, " ")
		masked.Set("Authorization", scheme+" [redacted]")
	}
	return masked
}
