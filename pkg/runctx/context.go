// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Package runctx defines the Execution Context of one resync run: the config
// snapshot in effect for that run, a decorated logger, the run's
// cancellation signal, a handle on the Port client, and per-run bookkeeping
// of what has been seen, upserted or failed so far. The orchestrator hands
// it to each kind pipeline; fetchers and the mapping engine receive only
// its Ctx, and live-event processors (pkg/liveevents) do not receive it.
//
// Grounded on the teacher's taskrunner.TaskContext: a single object, passed
// by reference into every task, that accumulates applied/failed resource
// bookkeeping behind a set of narrow accessor methods rather than exposing
// its maps directly.
package runctx

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/port-labs/ocean-sub002/pkg/config"
	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

// PortClient is the narrow slice of the Port REST client that run
// participants need. Defined here, rather than imported from pkg/portclient,
// so that pkg/runctx has no dependency on the concrete client's batching,
// retry or backpressure machinery — any implementation works, including a
// fake for tests.
type PortClient interface {
	UpsertBatch(ctx context.Context, blueprint string, entities []portapi.Entity) error
	DeleteBatch(ctx context.Context, keys portapi.EntityKeySet) error
	Search(ctx context.Context, si portapi.SearchIdentifier) ([]string, error)
}

// Context is the Execution Context threaded through one run. A new Context
// is built once per run by pkg/resync/orchestrator, which derives a
// per-kind child with WithKind for each kind pipeline.
type Context struct {
	// Ctx carries the run's cancellation signal. Every blocking call made
	// on behalf of the run must select on Ctx.Done().
	Ctx context.Context

	// RunID uniquely identifies this run, for log correlation and for the
	// integration-state the orchestrator persists when the run completes.
	RunID string

	// Kind is empty on the run-level Context and set on every kind-level
	// child returned by WithKind.
	Kind string

	// PAC is the compiled configuration in effect when the run started.
	// A hot-reload while the run is in flight does not mutate this
	// snapshot; it only affects the *next* run (see DESIGN.md Open
	// Question decision #2).
	PAC *config.CompiledPAC

	// Log is decorated with run_id (and kind, once WithKind has been
	// called).
	Log logr.Logger

	// Client is the Port REST client handle shared by every kind pipeline
	// in this run.
	Client PortClient

	state *runState
}

// runState is the per-run bookkeeping shared by every kind-level child
// Context derived from the same run-level Context, mirroring the shared
// maps inside the teacher's TaskContext.
type runState struct {
	mu sync.Mutex

	seen     portapi.EntityKeySet
	upserted portapi.EntityKeySet
	failed   map[portapi.EntityKey]error
}

// New builds the run-level Execution Context for a fresh run.
func New(ctx context.Context, pac *config.CompiledPAC, client PortClient, log logr.Logger) *Context {
	runID := uuid.NewString()
	return &Context{
		Ctx:    ctx,
		RunID:  runID,
		PAC:    pac,
		Client: client,
		Log:    log.WithValues("run_id", runID),
		state: &runState{
			failed: make(map[portapi.EntityKey]error),
		},
	}
}

// WithKind returns a child Context scoped to kind, sharing the parent's
// cancellation signal, PAC snapshot, client and per-run bookkeeping, but
// with a logger additionally decorated with the kind.
func (c *Context) WithKind(kind string) *Context {
	child := *c
	child.Kind = kind
	child.Log = c.Log.WithValues("kind", kind)
	return &child
}

// RecordSeen marks key as present in the source system's current snapshot.
// After every kind pipeline in the run has finished, the orchestrator
// diffs RecordSeen's accumulation against the previous run's seen set to
// find entities to delete (spec §4.C6).
func (c *Context) RecordSeen(key portapi.EntityKey) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.seen = c.state.seen.Add(key)
}

// RecordUpserted marks key as successfully upserted to Port during this
// run.
func (c *Context) RecordUpserted(key portapi.EntityKey) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.upserted = c.state.upserted.Add(key)
}

// RecordFailed records that key failed to map or upsert during this run,
// with the error that caused the failure.
func (c *Context) RecordFailed(key portapi.EntityKey, err error) {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	c.state.failed[key] = err
}

// Seen returns every key recorded so far across every kind pipeline that
// has run under this Context's run.
func (c *Context) Seen() portapi.EntityKeySet {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return append(portapi.EntityKeySet(nil), c.state.seen...)
}

// Upserted returns every key successfully upserted so far.
func (c *Context) Upserted() portapi.EntityKeySet {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return append(portapi.EntityKeySet(nil), c.state.upserted...)
}

// Failed returns a snapshot of every key that failed during this run,
// keyed to the error that caused the failure.
func (c *Context) Failed() map[portapi.EntityKey]error {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	out := make(map[portapi.EntityKey]error, len(c.state.failed))
	for k, v := range c.state.failed {
		out[k] = v
	}
	return out
}

// FailureCount returns the number of keys recorded as failed so far.
func (c *Context) FailureCount() int {
	c.state.mu.Lock()
	defer c.state.mu.Unlock()
	return len(c.state.failed)
}
