// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portclient

import (
	"context"
	"sync"

	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

// FakeClient is an in-memory Client, grounded on the teacher's
// fake-inventory-client.go pattern: tests exercise real orchestrator/kind
// pipeline code against an in-process double rather than a live HTTP
// server.
type FakeClient struct {
	mu sync.Mutex

	Entities    map[portapi.EntityKey]portapi.Entity
	Blueprints  map[string]portapi.Blueprint
	State       map[string]map[string]any
	SearchReply map[string][]string // keyed by TargetBlueprint, for tests to stub search results

	UpsertErr error
	DeleteErr error
}

// NewFakeClient returns an empty FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Entities:   make(map[portapi.EntityKey]portapi.Entity),
		Blueprints: make(map[string]portapi.Blueprint),
		State:      make(map[string]map[string]any),
	}
}

func (f *FakeClient) UpsertBatch(_ context.Context, _ string, entities []portapi.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	for _, e := range entities {
		f.Entities[e.Key()] = e
	}
	return nil
}

func (f *FakeClient) DeleteBatch(_ context.Context, keys portapi.EntityKeySet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for _, k := range keys {
		delete(f.Entities, k)
	}
	return nil
}

func (f *FakeClient) Search(_ context.Context, si portapi.SearchIdentifier) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.SearchReply[si.TargetBlueprint], nil
}

func (f *FakeClient) EnsureBlueprint(_ context.Context, bp portapi.Blueprint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Blueprints[bp.Identifier] = bp
	return nil
}

func (f *FakeClient) GetIntegrationState(_ context.Context, identifier string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.State[identifier], nil
}

func (f *FakeClient) SetIntegrationState(_ context.Context, identifier string, state map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.State[identifier] = state
	return nil
}

// Snapshot returns every entity currently held, for test assertions.
func (f *FakeClient) Snapshot() []portapi.Entity {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]portapi.Entity, 0, len(f.Entities))
	for _, e := range f.Entities {
		out = append(out, e)
	}
	return out
}
