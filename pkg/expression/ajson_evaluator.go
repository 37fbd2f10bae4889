// Copyright 2021 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package expression

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spyzhov/ajson"
)

// AJSONEvaluator backs mapping expressions with JSONPath queries,
// evaluated with spyzhov/ajson. It is the default Evaluator: a mapping
// author writes something like "$.spec.replicas" or
// "$.labels[?(@.key == 'team')].value" and AJSONEvaluator runs it against
// the raw record (marshaled to JSON once per Evaluate call).
//
// This stands in for Ocean's real mapping DSL (an embedded JSON-query
// language), which spec.md treats as an opaque, externally-supplied
// dependency. ajson is the one general-purpose JSON-query library already
// in the dependency graph this core was grown from.
type AJSONEvaluator struct{}

// NewAJSONEvaluator returns the default expression evaluator.
func NewAJSONEvaluator() *AJSONEvaluator {
	return &AJSONEvaluator{}
}

// Compile validates query is at least syntactically well-formed by
// running it against an empty document, and returns a Program that
// re-runs it against real input later.
func (e *AJSONEvaluator) Compile(query string) (Program, error) {
	if query == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if _, err := ajson.JSONPath([]byte(`{}`), query); err != nil {
		return nil, fmt.Errorf("compiling expression %q: %w", query, err)
	}
	return &ajsonProgram{query: query}, nil
}

type ajsonProgram struct {
	query string
}

func (p *ajsonProgram) Source() string { return p.query }

func (p *ajsonProgram) Evaluate(_ context.Context, input any) (any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshaling input for expression %q: %w", p.query, err)
	}
	nodes, err := ajson.JSONPath(raw, p.query)
	if err != nil {
		return nil, fmt.Errorf("evaluating expression %q: %w", p.query, err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	if len(nodes) == 1 {
		return unpack(nodes[0])
	}
	out := make([]any, 0, len(nodes))
	for _, n := range nodes {
		v, err := unpack(n)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func unpack(n *ajson.Node) (any, error) {
	v, err := n.Unpack()
	if err != nil {
		return nil, fmt.Errorf("unpacking result node: %w", err)
	}
	return v, nil
}
