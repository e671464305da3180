package geoloqi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCredential(t *testing.T) {
	cred := NewCredential(map[string]any{
		"Access-Token":  "abc",
		"refresh_token": "def",
		"expires_in":    "3600",
		"Token Type":    "OAuth",
		"scope":         "can_see_location",
	})

	assert.Equal(t, "abc", cred.AccessToken)
	assert.Equal(t, "def", cred.RefreshToken)
	assert.Equal(t, int64(3600), cred.ExpiresIn)
	assert.False(t, cred.HasExpiry())
	assert.Equal(t, "OAuth", cred.Extra["token_type"])
	assert.Equal(t, "can_see_location", cred.Get("Scope"))
}

func TestCredentialExpiresAtFormats(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	tests := []struct {
		name  string
		value any
	}{
		{"time", at},
		{"rfc1123z", at.Format(time.RFC1123Z)},
		{"rfc3339", at.Format(time.RFC3339)},
		{"unix seconds", at.Unix()},
		{"unix seconds as float", float64(at.Unix())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := NewCredential(map[string]any{"access_token": "abc", "expires_at": tt.value})
			assert.True(t, at.Equal(cred.ExpiresAt), "got %s", cred.ExpiresAt)
		})
	}

	t.Run("unparseable", func(t *testing.T) {
		cred := NewCredential(map[string]any{"expires_at": "next tuesday"})
		assert.False(t, cred.HasExpiry())
	})
}

func TestCredentialMapRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	cred := Credential{
		AccessToken:  "abc",
		RefreshToken: "def",
		ExpiresIn:    3600,
		ExpiresAt:    at,
		Extra:        map[string]any{"scope": "all"},
	}

	m := cred.Map()
	assert.Equal(t, "abc", m["access_token"])
	assert.Equal(t, "all", m["scope"])

	back := NewCredential(m)
	assert.Equal(t, cred.AccessToken, back.AccessToken)
	assert.Equal(t, cred.RefreshToken, back.RefreshToken)
	assert.Equal(t, cred.ExpiresIn, back.ExpiresIn)
	assert.True(t, at.Equal(back.ExpiresAt))
	assert.Equal(t, cred.Extra, back.Extra)
}

func TestExpiresAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, expiresAt(now, 0).IsZero(), "zero lifetime never expires")
	assert.True(t, expiresAt(now, -5).IsZero())
	assert.Equal(t, now.Add(55*time.Second), expiresAt(now, 60))
}

func TestCredentialExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		expected  bool
	}{
		{"no expiry", time.Time{}, false},
		{"in the past", now.Add(-time.Second), true},
		{"exactly now", now, false},
		{"in the future", now.Add(time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := Credential{AccessToken: "abc", ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.expected, cred.Expired(now))
		})
	}
}

func TestCredentialOAuth2Token(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cred := NewCredential(map[string]any{
		"access_token":  "abc",
		"refresh_token": "def",
		"expires_at":    at,
		"scope":         "all",
	})

	tok := cred.OAuth2Token()
	require.NotNil(t, tok)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "def", tok.RefreshToken)
	assert.Equal(t, "OAuth", tok.TokenType)
	assert.True(t, at.Equal(tok.Expiry))
	assert.Equal(t, "all", tok.Extra("scope"))

	cred.Extra["token_type"] = "Bearer"
	assert.Equal(t, "Bearer", cred.OAuth2Token().TokenType)
}

func TestCanonicalKey(t *testing.T) {
	tests := map[string]string{
		"access_token":  "access_token",
		"Access-Token":  "access_token",
		" ExpiresIn ":   "expiresin",
		"error.message": "error_message",
		"a--b  c":       "a_b_c",
	}

	for in, expected := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, expected, canonicalKey(in))
		})
	}
}
