// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package listener

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/port-labs/ocean-sub002/pkg/runstate"
)

func TestOnceReturnsResyncError(t *testing.T) {
	boom := errors.New("fetch failed")
	o := Once{Resync: func(context.Context) (*runstate.RunState, error) { return nil, boom }, Log: logr.Discard()}
	assert.Equal(t, boom, o.Run(context.Background()))
}

func TestOnceReturnsErrorWhenRunStateFailed(t *testing.T) {
	rs := runstate.New("run-1")
	require.NoError(t, rs.Start())
	rs.RecordFailure("repository", errors.New("boom"))
	rs.Finish()

	o := Once{Resync: func(context.Context) (*runstate.RunState, error) { return rs, nil }, Log: logr.Discard()}
	err := o.Run(context.Background())
	require.Error(t, err)
}

func TestOnceSucceedsWhenRunStateSucceeded(t *testing.T) {
	rs := runstate.New("run-1")
	require.NoError(t, rs.Start())
	rs.RecordUpserted("repository", 1)
	rs.Finish()

	o := Once{Resync: func(context.Context) (*runstate.RunState, error) { return rs, nil }, Log: logr.Discard()}
	assert.NoError(t, o.Run(context.Background()))
}
