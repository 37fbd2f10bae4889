// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicySucceedsWithoutRetryingOnNilError(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, baseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyDoesNotRetryNonRetryableErrors(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, baseDelay: time.Millisecond}
	calls := 0
	sentinel := errors.New("boom")
	err := p.Do(context.Background(), func() error {
		calls++
		return sentinel
	})
	assert.Equal(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicyRetriesTransientRemoteErrUpToMaxAttempts(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, baseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return &remoteErr{status: 503, retryable: true}
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicySucceedsAfterTransientFailures(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, baseDelay: time.Millisecond}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &remoteErr{status: 429, retryable: true}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicyHonorsRetryAfter(t *testing.T) {
	p := retryPolicy{maxAttempts: 2, baseDelay: time.Hour} // would block ~forever without honoring RetryAfter
	calls := 0
	start := time.Now()
	err := p.Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &remoteErr{status: 429, retryable: true, retryAfter: 5 * time.Millisecond}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryPolicyStopsOnContextCancellation(t *testing.T) {
	p := retryPolicy{maxAttempts: 10, baseDelay: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := p.Do(ctx, func() error {
		calls++
		return &remoteErr{status: 503, retryable: true}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
