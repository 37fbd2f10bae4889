// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCredentialsProviderCachesTokenUntilInvalidated(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "token-1",
			"expiresIn":   3600,
		})
	}))
	defer srv.Close()

	p := NewClientCredentialsProvider(srv.URL, "id", "secret", nil)

	tok1, err := p.Token(context.Background())
	require.NoError(t, err)
	tok2, err := p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "token-1", tok1)
	assert.Equal(t, tok1, tok2)
	assert.Equal(t, 1, calls, "second Token call should be served from cache")
}

func TestClientCredentialsProviderReauthenticatesAfterInvalidate(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken": "token-refreshed",
			"expiresIn":   3600,
		})
	}))
	defer srv.Close()

	p := NewClientCredentialsProvider(srv.URL, "id", "secret", nil)
	_, err := p.Token(context.Background())
	require.NoError(t, err)

	p.Invalidate()
	tok, err := p.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "token-refreshed", tok)
	assert.Equal(t, 2, calls)
}

func TestClientCredentialsProviderSurfacesAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewClientCredentialsProvider(srv.URL, "id", "wrong-secret", nil)
	_, err := p.Token(context.Background())
	assert.Error(t, err)
}
