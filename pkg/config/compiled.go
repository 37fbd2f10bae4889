// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import "github.com/port-labs/ocean-sub002/pkg/expression"

// CompiledMapping is EntityMapping with every expression compiled once,
// ready for repeated evaluation by pkg/mapping.
type CompiledMapping struct {
	Identifier expression.Program
	Blueprint  expression.Program
	Title      expression.Program
	Team       expression.Program
	Icon       expression.Program

	Properties map[string]CompiledProperty
	Relations  map[string]CompiledRelation
}

// CompiledProperty is PropertyMapping with its expression compiled.
type CompiledProperty struct {
	Program  expression.Program
	Required bool
}

// CompiledRelation is RelationMapping with its expression compiled.
type CompiledRelation struct {
	Program         expression.Program
	TargetBlueprint string
	Many            bool
}

// CompiledResource is a ResourceConfig with every expression it carries
// compiled into a Program, plus the resolved embedOriginalData flag.
type CompiledResource struct {
	Kind             string
	Selector         expression.Program
	ItemsToParse     expression.Program // nil if RC has no itemsToParse
	EmbedOriginalData bool
	Mapping          CompiledMapping
}

// DisabledResource records a kind whose RC failed to compile. Per spec
// §4.C10, a malformed kind is excluded from the run rather than aborting
// it entirely.
type DisabledResource struct {
	Kind string
	Err  error
}

// CompiledPAC is the result of successfully loading and compiling a PAC:
// the resources that compiled cleanly, plus a record of any that didn't.
type CompiledPAC struct {
	Raw       PAC
	Resources []CompiledResource
	Disabled  []DisabledResource

	CreateMissingRelatedEntities bool
	DeleteDependentEntities      bool
	EnableMergeEntity            bool
	SearchIdentifierResolution   SearchIdentifierResolution
}

// ResolutionPolicy resolves the effective search-identifier resolution
// policy for this compiled PAC, defaulting to ResolutionStrict when unset
// (including for a CompiledPAC built directly by a test rather than
// through a Loader).
func (c *CompiledPAC) ResolutionPolicy() SearchIdentifierResolution {
	if c.SearchIdentifierResolution == ResolutionPermissive {
		return ResolutionPermissive
	}
	return ResolutionStrict
}

// ResourceByKind returns the compiled resource for kind, if it compiled
// successfully.
func (c *CompiledPAC) ResourceByKind(kind string) (CompiledResource, bool) {
	for _, r := range c.Resources {
		if r.Kind == kind {
			return r, true
		}
	}
	return CompiledResource{}, false
}
