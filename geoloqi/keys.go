package geoloqi

import "strings"

// canonicalKey folds a key into the identifier form used for credential
// keys: lowercase, with runs of non-word characters collapsed to "_".
func canonicalKey(key string) string {
	key = strings.TrimSpace(key)
	return strings.ToLower(nonWordRuns.ReplaceAllString(key, "_"))
}
