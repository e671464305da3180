package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoloqi/geoloqi-go/geoloqi"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"scope=can_see_location", "state=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, []geoloqi.Param{
		{Key: "scope", Value: "can_see_location"},
		{Key: "state", Value: "a=b"},
		{Key: "empty", Value: ""},
	}, params)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)

	_, err = parseParams([]string{"=x"})
	assert.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	headers, err := parseHeaders([]string{"X-Test: yes", "Accept:text/plain"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Test": "yes", "Accept": "text/plain"}, headers)

	headers, err = parseHeaders(nil)
	require.NoError(t, err)
	assert.Nil(t, headers)

	_, err = parseHeaders([]string{"missing-colon"})
	assert.Error(t, err)
}

func TestReadBody(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		body, err := readBody(`{"name": "Test Layer"}`)
		require.NoError(t, err)
		assert.Equal(t, json.RawMessage(`{"name": "Test Layer"}`), body)
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "points.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"latitude": 45.5}]`), 0o600))

		body, err := readBody("@" + path)
		require.NoError(t, err)
		assert.Equal(t, json.RawMessage(`[{"latitude": 45.5}]`), body)
	})

	t.Run("empty", func(t *testing.T) {
		body, err := readBody("")
		require.NoError(t, err)
		assert.Nil(t, body)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := readBody(`{"name":`)
		assert.Error(t, err)
	})
}

func TestLoadAndQueueBatchJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"path": "layer/create", "body": {"name": "Test 1"}},
		{"method": "get", "path": "place/list", "body": {"limit": 2}},
		{"method": "POST", "path": "layer/create", "headers": {"X-Test": "yes"}}
	]`), 0o600))

	jobs, err := loadBatchJobs(path)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	s, err := geoloqi.NewSession(geoloqi.WithConfig(geoloqi.DefaultConfig()))
	require.NoError(t, err)

	b := geoloqi.NewBatch(s)
	require.NoError(t, queueJobs(b, jobs))
	assert.Equal(t, 3, b.Len())

	t.Run("unsupported method", func(t *testing.T) {
		err := queueJobs(geoloqi.NewBatch(s), []batchJob{{Method: "DELETE", Path: "place/delete/1"}})
		assert.ErrorContains(t, err, "unsupported method DELETE")
	})

	t.Run("missing path", func(t *testing.T) {
		err := queueJobs(geoloqi.NewBatch(s), []batchJob{{Method: "POST"}})
		assert.ErrorContains(t, err, "has no path")
	})
}
