// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

type staticTokens struct{ invalidated int32 }

func (s *staticTokens) Token(context.Context) (string, error) { return "tok", nil }
func (s *staticTokens) Invalidate()                            { atomic.AddInt32(&s.invalidated, 1) }

func TestUpsertBatchSendsOneRequestPerSplitBatch(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{
		BaseURL:   srv.URL,
		Tokens:    &staticTokens{},
		RateLimit: rate.Inf,
		Burst:     100,
	})

	entities := make([]portapi.Entity, 45)
	for i := range entities {
		entities[i] = entity(string(rune('a' + i%26)))
	}
	err := c.UpsertBatch(context.Background(), "service", entities)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests), "45 entities at 20/batch should need 3 requests")
}

func TestDoInvalidatesTokenOn401AndSurfacesAuthError(t *testing.T) {
	tokens := &staticTokens{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Options{
		BaseURL:    srv.URL,
		Tokens:     tokens,
		RateLimit:  rate.Inf,
		Burst:      100,
		MaxRetries: 1,
	})

	err := c.UpsertBatch(context.Background(), "service", []portapi.Entity{entity("a")})
	assert.Error(t, err)
	assert.Greater(t, atomic.LoadInt32(&tokens.invalidated), int32(0))
}

func TestDeleteBatchToleratesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Tokens: &staticTokens{}, RateLimit: rate.Inf, Burst: 100, MaxRetries: 1})

	k, err := portapi.NewEntityKey("service", "checkout")
	require.NoError(t, err)
	err = c.DeleteBatch(context.Background(), portapi.EntityKeySet{k})
	assert.NoError(t, err)
}

func TestDoRetriesThenSucceeds(t *testing.T) {
	var attempt int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempt, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Options{
		BaseURL:    srv.URL,
		Tokens:     &staticTokens{},
		RateLimit:  rate.Inf,
		Burst:      100,
		MaxRetries: 5,
	})
	c.retry.baseDelay = time.Millisecond

	err := c.UpsertBatch(context.Background(), "service", []portapi.Entity{entity("a")})
	assert.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempt))
}
