// Copyright 2019 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portapi

import (
	"fmt"
)

// Combinator joins the rules of a SearchIdentifier.
type Combinator string

const (
	CombinatorAnd Combinator = "and"
	CombinatorOr  Combinator = "or"
)

// SearchRule is a single predicate of a SearchIdentifier: the target
// blueprint's property must satisfy value under operator.
type SearchRule struct {
	Property string `json:"property"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// SearchIdentifier is a sentinel relation value used in place of a literal
// identifier when the mapping author knows a property of the target but
// not its identifier. During upsert it must be resolved either to exactly
// one identifier (strict policy) or substituted with a search:// reference
// the catalog interprets (permissive policy).
type SearchIdentifier struct {
	TargetBlueprint string       `json:"targetBlueprint"`
	Combinator      Combinator   `json:"combinator"`
	Rules           []SearchRule `json:"rules"`
}

// RelationValue is the value attached to a relation name on an entity. It
// is exactly one of Single, Many or Search; IsEmpty reports a relation the
// mapping explicitly resolved to null, which is skipped rather than
// written.
type RelationValue struct {
	Single string
	Many   []string
	Search *SearchIdentifier
	empty  bool
}

// EmptyRelationValue returns the RelationValue for a mapping expression
// that evaluated to null: the relation is skipped entirely.
func EmptyRelationValue() RelationValue { return RelationValue{empty: true} }

// SingleRelationValue wraps a single target identifier.
func SingleRelationValue(identifier string) RelationValue {
	return RelationValue{Single: identifier}
}

// ManyRelationValue wraps a list of target identifiers.
func ManyRelationValue(identifiers []string) RelationValue {
	return RelationValue{Many: identifiers}
}

// SearchRelationValue wraps an unresolved search identifier.
func SearchRelationValue(si SearchIdentifier) RelationValue {
	return RelationValue{Search: &si}
}

// IsEmpty reports whether the relation should be omitted from the entity.
func (r RelationValue) IsEmpty() bool {
	return r.empty
}

// IsSearch reports whether the relation still needs search-identifier
// resolution (see pkg/mapping).
func (r RelationValue) IsSearch() bool {
	return r.Search != nil
}

// IsMulti reports whether the relation is list-valued, which governs how
// it merges across duplicate records for the same entity key.
func (r RelationValue) IsMulti() bool {
	return r.Many != nil
}

// Entity is an instance of a Blueprint, uniquely identified within it by
// Identifier. It is a short-lived value: created by the mapping engine,
// consumed by the port client, never cached beyond a single batch.
type Entity struct {
	Blueprint  string
	Identifier string
	Title      string
	Team       string
	Icon       string
	Properties map[string]any
	Relations  map[string]RelationValue
}

// Key returns the EntityKey this entity is upserted/deleted under.
func (e *Entity) Key() EntityKey {
	return EntityKey{Blueprint: e.Blueprint, Identifier: e.Identifier}
}

// Validate checks that the required fields (blueprint, identifier) are
// present and non-empty, per the data model invariants.
func (e *Entity) Validate() error {
	if e.Blueprint == "" {
		return fmt.Errorf("entity missing blueprint")
	}
	if e.Identifier == "" {
		return fmt.Errorf("entity missing identifier")
	}
	return nil
}

// MergeMode governs how two entities sharing the same key are combined
// when a single kind produces duplicates within one run. It is an
// explicit, per-PAC flag (enableMergeEntity), never inferred.
type MergeMode int

const (
	// MergeModeLastWriterWins keeps the later entity's scalar fields and
	// relations outright; this is the default when enableMergeEntity is
	// false.
	MergeModeLastWriterWins MergeMode = iota
	// MergeModeUnion keeps the later entity's scalar fields, but unions
	// multi-valued relations across both entities.
	MergeModeUnion
)

// Merge combines e and next, which share the same key, according to mode.
// Scalar properties and single-valued relations always take next's value
// (later record wins); list-valued relations are unioned under
// MergeModeUnion. Merge does not mutate e or next.
func Merge(e, next Entity, mode MergeMode) Entity {
	out := Entity{
		Blueprint:  next.Blueprint,
		Identifier: next.Identifier,
		Title:      firstNonEmpty(next.Title, e.Title),
		Team:       firstNonEmpty(next.Team, e.Team),
		Icon:       firstNonEmpty(next.Icon, e.Icon),
		Properties: make(map[string]any, len(e.Properties)+len(next.Properties)),
		Relations:  make(map[string]RelationValue, len(e.Relations)+len(next.Relations)),
	}
	for k, v := range e.Properties {
		out.Properties[k] = v
	}
	for k, v := range next.Properties {
		out.Properties[k] = v
	}
	for name, rv := range e.Relations {
		out.Relations[name] = rv
	}
	for name, rv := range next.Relations {
		if mode == MergeModeUnion {
			if prior, ok := out.Relations[name]; ok && prior.IsMulti() && rv.IsMulti() {
				out.Relations[name] = ManyRelationValue(unionStrings(prior.Many, rv.Many))
				continue
			}
		}
		out.Relations[name] = rv
	}
	return out
}

func firstNonEmpty(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range append(append([]string{}, a...), b...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
