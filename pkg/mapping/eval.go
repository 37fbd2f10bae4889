// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"context"
	"fmt"

	"github.com/port-labs/ocean-sub002/pkg/config"
	"github.com/port-labs/ocean-sub002/pkg/expression"
	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

// Searcher resolves a search identifier to the identifiers of the
// entities it matches. pkg/portclient.RESTClient and
// pkg/portclient.FakeClient both implement it; evalRelation calls it
// only under ResolutionStrict.
type Searcher interface {
	Search(ctx context.Context, si portapi.SearchIdentifier) ([]string, error)
}

// evalBool evaluates prog and coerces the result to a boolean for a
// selector expression: nil, false, the empty string and the number 0
// (float64) are false; every other value, including an empty list or
// object, is true.
func evalBool(ctx context.Context, prog expression.Program, input any) (bool, error) {
	v, err := prog.Evaluate(ctx, input)
	if err != nil {
		return false, err
	}
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		return t != "", nil
	case float64:
		return t != 0, nil
	default:
		return true, nil
	}
}

// evalString evaluates prog and requires the result to be a string (or
// nil, which yields "" with no error — an absent optional field).
func evalString(ctx context.Context, prog expression.Program, input any) (string, error) {
	v, err := prog.Evaluate(ctx, input)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	return s, nil
}

// evalRelation evaluates a relation expression and shapes the result into
// a RelationValue according to r.Many: nil means the relation is
// explicitly absent, a string is a single target identifier, a list is
// either rejected (if the mapping didn't declare Many) or kept as a
// multi-valued relation, and an object shaped like a search identifier is
// resolved according to policy (spec §4.C4 step 6 / the per-run
// search-identifier resolution policy): under ResolutionStrict it is
// resolved via searcher.Search immediately, 0 or more than 1 match being a
// mapping error; under ResolutionPermissive it is passed through as a
// portapi.SearchRelationValue for the catalog to match later.
func evalRelation(ctx context.Context, r config.CompiledRelation, input any, policy config.SearchIdentifierResolution, searcher Searcher) (portapi.RelationValue, error) {
	v, err := r.Program.Evaluate(ctx, input)
	if err != nil {
		return portapi.RelationValue{}, err
	}
	if v == nil {
		return portapi.EmptyRelationValue(), nil
	}

	if m, ok := v.(map[string]any); ok {
		if r.Many {
			return portapi.RelationValue{}, fmt.Errorf("relation declared many=true but expression returned a search identifier; search identifiers are only supported for single-valued relations")
		}
		si, err := parseSearchIdentifier(m, r)
		if err != nil {
			return portapi.RelationValue{}, err
		}
		rv, err := resolveSearchIdentifier(ctx, si, policy, searcher)
		if err != nil {
			return portapi.RelationValue{}, unresolvedSearchError{err: err}
		}
		return rv, nil
	}

	if r.Many {
		list, ok := v.([]any)
		if !ok {
			return portapi.RelationValue{}, fmt.Errorf("relation declared many=true but expression returned %T", v)
		}
		identifiers := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return portapi.RelationValue{}, fmt.Errorf("relation list element must be a string, got %T", item)
			}
			identifiers = append(identifiers, s)
		}
		return portapi.ManyRelationValue(identifiers), nil
	}

	s, ok := v.(string)
	if !ok {
		return portapi.RelationValue{}, fmt.Errorf("expected a single identifier string, got %T", v)
	}
	return portapi.SingleRelationValue(s), nil
}

// parseSearchIdentifier decodes a relation expression's evaluated result
// into a portapi.SearchIdentifier. targetBlueprint comes from the
// relation's static declaration (r.TargetBlueprint) unless the expression
// overrides it explicitly. combinator defaults to "and" when omitted.
func parseSearchIdentifier(m map[string]any, r config.CompiledRelation) (portapi.SearchIdentifier, error) {
	rawRules, ok := m["rules"].([]any)
	if !ok {
		return portapi.SearchIdentifier{}, fmt.Errorf("search identifier missing a \"rules\" list")
	}

	targetBlueprint := r.TargetBlueprint
	if tb, ok := m["targetBlueprint"].(string); ok && tb != "" {
		targetBlueprint = tb
	}
	if targetBlueprint == "" {
		return portapi.SearchIdentifier{}, fmt.Errorf("search identifier has no targetBlueprint and the relation declares none either")
	}

	combinator := portapi.CombinatorAnd
	if c, ok := m["combinator"].(string); ok && c != "" {
		combinator = portapi.Combinator(c)
	}

	rules := make([]portapi.SearchRule, 0, len(rawRules))
	for _, raw := range rawRules {
		rm, ok := raw.(map[string]any)
		if !ok {
			return portapi.SearchIdentifier{}, fmt.Errorf("search identifier rule must be an object, got %T", raw)
		}
		property, _ := rm["property"].(string)
		operator, _ := rm["operator"].(string)
		if property == "" || operator == "" {
			return portapi.SearchIdentifier{}, fmt.Errorf("search identifier rule requires non-empty property and operator")
		}
		rules = append(rules, portapi.SearchRule{Property: property, Operator: operator, Value: rm["value"]})
	}

	return portapi.SearchIdentifier{TargetBlueprint: targetBlueprint, Combinator: combinator, Rules: rules}, nil
}

// unresolvedSearchError marks a relation whose search identifier could
// not be resolved under ResolutionStrict; mapOneItem drops the whole
// entity for it rather than only the relation.
type unresolvedSearchError struct{ err error }

func (e unresolvedSearchError) Error() string { return e.err.Error() }
func (e unresolvedSearchError) Unwrap() error { return e.err }

// resolveSearchIdentifier applies the per-run resolution policy to si.
func resolveSearchIdentifier(ctx context.Context, si portapi.SearchIdentifier, policy config.SearchIdentifierResolution, searcher Searcher) (portapi.RelationValue, error) {
	if policy == config.ResolutionPermissive {
		return portapi.SearchRelationValue(si), nil
	}
	if searcher == nil {
		return portapi.RelationValue{}, fmt.Errorf("search identifier requires strict resolution but no searcher is configured")
	}
	identifiers, err := searcher.Search(ctx, si)
	if err != nil {
		return portapi.RelationValue{}, fmt.Errorf("resolving search identifier against blueprint %q: %w", si.TargetBlueprint, err)
	}
	switch len(identifiers) {
	case 0:
		return portapi.RelationValue{}, fmt.Errorf("search identifier against blueprint %q matched no entities", si.TargetBlueprint)
	case 1:
		return portapi.SingleRelationValue(identifiers[0]), nil
	default:
		return portapi.RelationValue{}, fmt.Errorf("search identifier against blueprint %q matched %d entities, expected exactly one", si.TargetBlueprint, len(identifiers))
	}
}
