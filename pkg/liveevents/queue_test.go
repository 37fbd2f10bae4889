// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package liveevents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutingQueuePreservesOrderWithinKey(t *testing.T) {
	q := newRoutingQueue(context.Background())
	defer q.Close()

	var mu sync.Mutex
	var order []int

	var dones []<-chan error
	for i := 0; i < 5; i++ {
		i := i
		dones = append(dones, q.Submit("same-key", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	for _, d := range dones {
		require.NoError(t, <-d)
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRoutingQueueRunsDistinctKeysConcurrently(t *testing.T) {
	q := newRoutingQueue(context.Background())
	defer q.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	release := make(chan struct{})

	doneA := q.Submit("a", func(ctx context.Context) error {
		wg.Done()
		<-release
		return nil
	})
	doneB := q.Submit("b", func(ctx context.Context) error {
		wg.Done()
		<-release
		return nil
	})

	waited := make(chan struct{})
	go func() { wg.Wait(); close(waited) }()

	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("distinct routing keys did not run concurrently")
	}
	close(release)

	require.NoError(t, <-doneA)
	require.NoError(t, <-doneB)
}

func TestRoutingQueueCloseStopsAcceptingWork(t *testing.T) {
	q := newRoutingQueue(context.Background())
	q.Close()

	done := q.Submit("key", func(ctx context.Context) error { return nil })
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("submit after Close never resolved")
	}
}
