// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

// seenStateKey is the top-level key under which persisted state stores
// each kind's seen set, as a plain JSON-friendly value (GetIntegrationState
// and SetIntegrationState both deal in map[string]any).
const seenStateKey = "seen"

// encodeSeenState renders a run's per-kind seen sets into the opaque
// state blob persisted via C2.set_integration_state, per spec §4.C6
// ("orchestrator persists {run_id, per_kind: {seen_count, ...}}"). The
// full key set, not just a count, is kept here: spec.md allows a
// bloom-filter or timestamp-based approximation, but an explicit list is
// simplest to reason about at this scale and keeps deletion exact.
func encodeSeenState(byKind map[string]portapi.EntityKeySet) map[string]any {
	out := make(map[string]any, len(byKind))
	for kind, keys := range byKind {
		encoded := make([]any, 0, len(keys))
		for _, k := range keys {
			encoded = append(encoded, map[string]any{
				"blueprint":  k.Blueprint,
				"identifier": k.Identifier,
			})
		}
		out[kind] = encoded
	}
	return map[string]any{seenStateKey: out}
}

// decodePreviousSeen extracts kind's seen set from a previously persisted
// state blob. Absent or malformed entries decode to an empty set rather
// than an error: a first-ever run (or a run against a blank integration)
// has no prior state, which must not be treated as a failure.
func decodePreviousSeen(state map[string]any, kind string) portapi.EntityKeySet {
	if state == nil {
		return nil
	}
	byKind, ok := state[seenStateKey].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := byKind[kind].([]any)
	if !ok {
		return nil
	}
	var out portapi.EntityKeySet
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		blueprint, _ := m["blueprint"].(string)
		identifier, _ := m["identifier"].(string)
		key, err := portapi.NewEntityKey(blueprint, identifier)
		if err != nil {
			continue
		}
		out = out.Add(key)
	}
	return out
}
