package geoloqi

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"
)

// Result is a decoded API payload. Objects are map[string]any, or Mash when
// the session was configured with UseMash.
type Result struct {
	value any
}

func newResult(value any, useMash bool) *Result {
	if useMash {
		value = toMash(value)
	}
	return &Result{value: value}
}

// Value returns the decoded payload as is
func (r *Result) Value() any {
	return r.value
}

// Map returns the payload as an object, or nil when it is not one
func (r *Result) Map() map[string]any {
	switch t := r.value.(type) {
	case map[string]any:
		return t
	case Mash:
		return map[string]any(t)
	}
	return nil
}

// Mash returns the payload with dotted-path access, or nil when it is not an object
func (r *Result) Mash() Mash {
	m := r.Map()
	if m == nil {
		return nil
	}
	if mash, ok := toMash(m).(Mash); ok {
		return mash
	}
	return nil
}

// Get returns a top-level field of an object payload
func (r *Result) Get(key string) any {
	if m := r.Map(); m != nil {
		return m[key]
	}
	return nil
}

// String returns a top-level field as a string
func (r *Result) String(key string) string {
	return cast.ToString(r.Get(key))
}

// HasError reports whether the payload carries a server error indicator.
// Only relevant when ThrowExceptions is off.
func (r *Result) HasError() bool {
	m := r.Map()
	if m == nil {
		return false
	}
	_, ok := errorIndicator(m)
	return ok
}

// ErrorType returns the server error token, if any
func (r *Result) ErrorType() string {
	return cast.ToString(r.Get("error"))
}

// Decode copies the payload into out, typically a struct with json-tagged
// fields. Numbers and strings are converted where the field type asks for it.
func (r *Result) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(r.value); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}
