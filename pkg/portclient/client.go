// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Package portclient is the REST client for Port's catalog API: batched
// upserts, deletes, search, and integration-state persistence, with
// backpressure (token-bucket rate limit plus a circuit breaker), retry
// with exponential backoff honoring Retry-After, and bearer-token refresh
// on 401.
//
// Grounded on the teacher's pkg/inventory client family (one object
// talking to a remote API on behalf of a run) and pkg/apply/task (batched,
// per-group task execution reporting per-item success/failure back into
// shared bookkeeping); the HTTP/REST shape itself is new, since the
// teacher talks to an apiserver through client-go rather than over plain
// JSON.
package portclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

// Client is the Port REST client surface the rest of the core depends on.
// pkg/runctx.PortClient is the narrower slice kind pipelines see.
type Client interface {
	UpsertBatch(ctx context.Context, blueprint string, entities []portapi.Entity) error
	DeleteBatch(ctx context.Context, keys portapi.EntityKeySet) error
	Search(ctx context.Context, si portapi.SearchIdentifier) ([]string, error)

	EnsureBlueprint(ctx context.Context, bp portapi.Blueprint) error
	GetIntegrationState(ctx context.Context, identifier string) (map[string]any, error)
	SetIntegrationState(ctx context.Context, identifier string, state map[string]any) error
}

// TokenProvider returns the bearer token to attach to requests, refreshing
// it when necessary. Implementations must be safe for concurrent use.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	// Invalidate forces the next Token call to re-authenticate, called
	// after a request comes back 401.
	Invalidate()
}

// Options configures a RESTClient.
type Options struct {
	BaseURL string
	Tokens  TokenProvider
	HTTP    *http.Client
	Log     logr.Logger

	// RateLimit is the steady-state request rate allowed against Port's
	// API; Burst is the token bucket's capacity. Both default to
	// generous, conservative values if zero.
	RateLimit rate.Limit
	Burst     int

	// MaxConcurrent bounds how many requests may be in flight at once,
	// independent of the rate limiter (which only bounds start rate).
	MaxConcurrent int

	// MaxRetries bounds retry attempts for a transient failure.
	MaxRetries int
}

func (o *Options) setDefaults() {
	if o.HTTP == nil {
		o.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	if o.RateLimit == 0 {
		o.RateLimit = 25
	}
	if o.Burst == 0 {
		o.Burst = 50
	}
	if o.MaxConcurrent == 0 {
		o.MaxConcurrent = 10
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 4
	}
}

// RESTClient is the default Client implementation.
type RESTClient struct {
	baseURL string
	tokens  TokenProvider
	http    *http.Client
	log     logr.Logger

	limiter *rate.Limiter
	sem     chan struct{}
	breaker *gobreaker.CircuitBreaker[any]
	retry   retryPolicy
}

// New returns a RESTClient ready to use.
func New(o Options) *RESTClient {
	o.setDefaults()

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "port-api",
		MaxRequests: uint32(o.MaxConcurrent),
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})

	return &RESTClient{
		baseURL: o.BaseURL,
		tokens:  o.Tokens,
		http:    o.HTTP,
		log:     o.Log,
		limiter: rate.NewLimiter(o.RateLimit, o.Burst),
		sem:     make(chan struct{}, o.MaxConcurrent),
		breaker: cb,
		retry:   retryPolicy{maxAttempts: o.MaxRetries},
	}
}

// do executes one HTTP request through the rate limiter, concurrency
// semaphore and circuit breaker, retrying transient failures. Every 401
// invalidates the bearer token, so the next attempt re-authenticates,
// and counts as a retryable failure.
func (c *RESTClient) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding request body: %w", err)
		}
	}

	var respBody []byte
	var status int
	attempt := func() error {
		_, err := c.breaker.Execute(func() (any, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			select {
			case c.sem <- struct{}{}:
				defer func() { <-c.sem }()
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			resp, err := c.doOnce(ctx, method, path, raw)
			if err != nil {
				return nil, err
			}
			respBody, status = resp.body, resp.status
			if resp.status == http.StatusUnauthorized {
				c.tokens.Invalidate()
				return nil, &remoteErr{status: resp.status, retryable: true}
			}
			if resp.status >= 500 || resp.status == http.StatusTooManyRequests {
				return nil, &remoteErr{status: resp.status, retryAfter: resp.retryAfter, retryable: true}
			}
			if resp.status >= 400 {
				return nil, &remoteErr{status: resp.status, retryable: false, body: resp.body}
			}
			return nil, nil
		})
		return err
	}

	if err := c.retry.Do(ctx, attempt); err != nil {
		return nil, status, err
	}
	return respBody, status, nil
}

type httpResponse struct {
	status     int
	body       []byte
	retryAfter time.Duration
}

func (c *RESTClient) doOnce(ctx context.Context, method, path string, body []byte) (*httpResponse, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining bearer token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &httpResponse{
		status:     resp.StatusCode,
		body:       respBody,
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := time.ParseDuration(v + "s"); err == nil {
		return secs
	}
	return 0
}

// remoteErr is the internal error type used to decide retryability; it is
// translated to a pkg/errors type at the public method boundary.
type remoteErr struct {
	status     int
	retryAfter time.Duration
	retryable  bool
	body       []byte
}

func (e *remoteErr) Error() string {
	return fmt.Sprintf("port api returned status %d: %s", e.status, string(e.body))
}
