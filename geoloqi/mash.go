package geoloqi

import (
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Mash is a decoded JSON object with dotted-path access.
//
//	profile.String("name")
//	profile.Float("location.position.latitude")
//	layers.String("layers.0.layer_id")
type Mash map[string]any

// toMash converts every object in a decoded JSON tree to a Mash
func toMash(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(Mash, len(t))
		for k, val := range t {
			m[k] = toMash(val)
		}
		return m
	case Mash:
		return t
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = toMash(val)
		}
		return out
	default:
		return v
	}
}

// Get walks a dotted path. Numeric segments index into arrays.
func (m Mash) Get(path string) any {
	value, _ := m.lookup(path)
	return value
}

// Has reports whether the path exists
func (m Mash) Has(path string) bool {
	_, ok := m.lookup(path)
	return ok
}

func (m Mash) lookup(path string) (any, bool) {
	var current any = m
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case Mash:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(segment)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			current = node[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// String returns the value at path as a string
func (m Mash) String(path string) string {
	return cast.ToString(m.Get(path))
}

// Int returns the value at path as an int
func (m Mash) Int(path string) int {
	return cast.ToInt(m.Get(path))
}

// Float returns the value at path as a float64
func (m Mash) Float(path string) float64 {
	return cast.ToFloat64(m.Get(path))
}

// Bool returns the value at path as a bool
func (m Mash) Bool(path string) bool {
	return cast.ToBool(m.Get(path))
}

// Mash returns the object at path, or nil
func (m Mash) Mash(path string) Mash {
	switch t := m.Get(path).(type) {
	case Mash:
		return t
	case map[string]any:
		return Mash(t)
	}
	return nil
}

// Slice returns the array at path, or nil
func (m Mash) Slice(path string) []any {
	s, _ := m.Get(path).([]any)
	return s
}
