// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package kindgraph

import (
	"context"

	"github.com/port-labs/ocean-sub002/pkg/config"
)

// Build derives a Graph from a compiled PAC's resources: one vertex per
// kind, one edge kind A -> kind B whenever A declares a relation whose
// TargetBlueprint equals B's own blueprint (spec: "edge kind A -> kind B
// if A's mapping references a relation whose target blueprint equals B's
// blueprint"). Every kind is added as a vertex even if it has no edges,
// so Sort/SortTolerant always accounts for it.
//
// A kind's own blueprint is resolved by evaluating its Blueprint
// expression against a nil record. Most mapping authors write a constant
// blueprint per kind (e.g. `"service"`), so this is almost always static;
// a kind whose blueprint genuinely depends on the record (or whose
// expression errors against nil) is still added as a vertex, just with no
// inbound edges resolved to it — callers are returned its kind in
// unresolved so they can log it.
func Build(resources []config.CompiledResource) (g *Graph, unresolved []string) {
	g, _, unresolved = BuildWithBlueprints(resources)
	return g, unresolved
}

// BuildWithBlueprints is Build, additionally returning the kind->blueprint
// map it resolved, which pkg/resync/orchestrator reuses to group a run's
// seen set by kind for stale-deletion purposes.
func BuildWithBlueprints(resources []config.CompiledResource) (g *Graph, kindBlueprint map[string]string, unresolved []string) {
	g = New()

	blueprintToKind := make(map[string]string, len(resources))
	kindBlueprint = make(map[string]string, len(resources))
	for _, r := range resources {
		g.AddVertex(r.Kind)
		bp, err := r.Mapping.Blueprint.Evaluate(context.Background(), nil)
		bpStr, ok := bp.(string)
		if err != nil || !ok || bpStr == "" {
			unresolved = append(unresolved, r.Kind)
			continue
		}
		kindBlueprint[r.Kind] = bpStr
		blueprintToKind[bpStr] = r.Kind
	}

	for _, r := range resources {
		for _, rel := range r.Mapping.Relations {
			if rel.TargetBlueprint == "" {
				continue
			}
			targetKind, ok := blueprintToKind[rel.TargetBlueprint]
			if !ok {
				continue // target blueprint isn't synced by this PAC; no edge to add
			}
			if targetKind == r.Kind {
				continue // self-referential relation: no ordering edge needed
			}
			g.AddEdge(r.Kind, targetKind)
		}
	}

	return g, kindBlueprint, unresolved
}
