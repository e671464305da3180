package geoloqi

import "net/http"

// Response is an immutable snapshot of one HTTP exchange with the API.
type Response struct {
	status  int
	headers http.Header
	body    string
}

// NewResponse creates a Response from its parts.
func NewResponse(status int, headers http.Header, body string) *Response {
	return &Response{status: status, headers: headers.Clone(), body: body}
}

// Status returns the HTTP status code
func (r *Response) Status() int { return r.status }

// Headers returns a copy of the response headers
func (r *Response) Headers() http.Header { return r.headers.Clone() }

// Body returns the raw response body
func (r *Response) Body() string { return r.body }
