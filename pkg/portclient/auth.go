// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ClientCredentialsProvider implements TokenProvider against Port's
// client-id/client-secret exchange endpoint, caching the token until
// shortly before it expires and re-authenticating once on Invalidate.
type ClientCredentialsProvider struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClientCredentialsProvider returns a TokenProvider for the given
// credentials against baseURL. httpClient may be nil to use a default.
func NewClientCredentialsProvider(baseURL, clientID, clientSecret string, httpClient *http.Client) *ClientCredentialsProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &ClientCredentialsProvider{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         httpClient,
	}
}

// tokenExpiryMargin re-authenticates this long before the token's declared
// expiry, so a request started just before expiry doesn't race it.
const tokenExpiryMargin = 30 * time.Second

func (p *ClientCredentialsProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiresAt) {
		return p.token, nil
	}

	reqBody, err := json.Marshal(map[string]string{
		"clientId":     p.clientID,
		"clientSecret": p.clientSecret,
	})
	if err != nil {
		return "", fmt.Errorf("encoding auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/auth/access_token", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("building auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("authenticating with port: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authenticating with port: status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"accessToken"`
		ExpiresIn   int64  `json:"expiresIn"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding auth response: %w", err)
	}

	p.token = out.AccessToken
	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl <= tokenExpiryMargin {
		ttl = tokenExpiryMargin * 2
	}
	p.expiresAt = time.Now().Add(ttl - tokenExpiryMargin)
	return p.token, nil
}

// Invalidate forces the next Token call to re-authenticate.
func (p *ClientCredentialsProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
}
