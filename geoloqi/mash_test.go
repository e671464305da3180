package geoloqi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileJSON = `{
	"user_id": "4ze",
	"name": "Test User",
	"is_anonymous": false,
	"location": {"position": {"latitude": 45.5165, "longitude": -122.6764}},
	"layers": [{"layer_id": "1Wn", "subscribed": true}, {"layer_id": "2Xo"}]
}`

func decodeFixture(t *testing.T, raw string) any {
	t.Helper()
	var value any
	require.NoError(t, json.Unmarshal([]byte(raw), &value))
	return value
}

func TestMashPaths(t *testing.T) {
	m, ok := toMash(decodeFixture(t, profileJSON)).(Mash)
	require.True(t, ok)

	assert.Equal(t, "4ze", m.String("user_id"))
	assert.Equal(t, 45.5165, m.Float("location.position.latitude"))
	assert.Equal(t, "2Xo", m.String("layers.1.layer_id"))
	assert.True(t, m.Bool("layers.0.subscribed"))
	assert.False(t, m.Bool("is_anonymous"))
	assert.Len(t, m.Slice("layers"), 2)

	position := m.Mash("location.position")
	require.NotNil(t, position)
	assert.Equal(t, -122.6764, position.Float("longitude"))

	assert.True(t, m.Has("is_anonymous"))
	assert.False(t, m.Has("layers.2.layer_id"))
	assert.False(t, m.Has("name.first"))
	assert.Nil(t, m.Get("missing.path"))
	assert.Empty(t, m.String("missing"))
	assert.Zero(t, m.Int("layers.x"))
}

func TestMashConvertsNestedObjects(t *testing.T) {
	m := toMash(decodeFixture(t, profileJSON)).(Mash)

	_, isMash := m["location"].(Mash)
	assert.True(t, isMash)

	layers := m["layers"].([]any)
	_, isMash = layers[0].(Mash)
	assert.True(t, isMash)
}

func TestResultAccessors(t *testing.T) {
	result := newResult(decodeFixture(t, profileJSON), false)

	assert.Equal(t, "Test User", result.String("name"))
	assert.NotNil(t, result.Map())
	assert.IsType(t, map[string]any{}, result.Value())
	assert.Equal(t, "1Wn", result.Mash().String("layers.0.layer_id"))
	assert.False(t, result.HasError())

	mashed := newResult(decodeFixture(t, profileJSON), true)
	assert.IsType(t, Mash{}, mashed.Value())
	assert.Equal(t, "Test User", mashed.Get("name"))
}

func TestResultArrayPayload(t *testing.T) {
	result := newResult(decodeFixture(t, `[1, 2, 3]`), true)

	assert.Nil(t, result.Map())
	assert.Nil(t, result.Mash())
	assert.Nil(t, result.Get("anything"))
	assert.Equal(t, []any{1.0, 2.0, 3.0}, result.Value())
}

func TestResultHasError(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected bool
	}{
		{"error token", `{"error": "not_found"}`, true},
		{"empty token", `{"error": ""}`, true},
		{"null", `{"error": null}`, false},
		{"false", `{"error": false}`, false},
		{"absent", `{"result": "ok"}`, false},
		{"array", `[{"error": "x"}]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := decodeFixture(t, tt.raw)
			assert.Equal(t, tt.expected, newResult(value, false).HasError())
			assert.Equal(t, tt.expected, newResult(value, true).HasError())
			assert.Equal(t, tt.expected, detectAPIError(http.StatusBadRequest, value, false) != nil,
				"HasError and error detection agree")
		})
	}
}

func TestResultDecode(t *testing.T) {
	type layer struct {
		LayerID    string `json:"layer_id"`
		Subscribed bool   `json:"subscribed"`
	}
	type profile struct {
		UserID string  `json:"user_id"`
		Name   string  `json:"name"`
		Layers []layer `json:"layers"`
	}

	var p profile
	require.NoError(t, newResult(decodeFixture(t, profileJSON), true).Decode(&p))

	assert.Equal(t, "4ze", p.UserID)
	assert.Equal(t, "Test User", p.Name)
	require.Len(t, p.Layers, 2)
	assert.Equal(t, "1Wn", p.Layers[0].LayerID)
	assert.True(t, p.Layers[0].Subscribed)
	assert.False(t, p.Layers[1].Subscribed)
}
