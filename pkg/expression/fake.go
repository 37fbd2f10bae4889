// Copyright 2021 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package expression

import (
	"context"
	"fmt"
)

// FakeEvaluator compiles each query by looking it up in a fixed table,
// rather than parsing it. It is used by tests of pkg/mapping and
// pkg/config that want to exercise the compile/cache/evaluate contract
// without coupling to the exact JSONPath dialect AJSONEvaluator speaks.
type FakeEvaluator struct {
	// Programs maps expression source to the function it should run.
	Programs map[string]func(ctx context.Context, input any) (any, error)
}

// NewFakeEvaluator returns an evaluator whose Compile results are
// pre-determined by the given table.
func NewFakeEvaluator(programs map[string]func(ctx context.Context, input any) (any, error)) *FakeEvaluator {
	return &FakeEvaluator{Programs: programs}
}

func (e *FakeEvaluator) Compile(query string) (Program, error) {
	fn, ok := e.Programs[query]
	if !ok {
		return nil, fmt.Errorf("fake evaluator: no program registered for expression %q", query)
	}
	return &fakeProgram{query: query, fn: fn}, nil
}

type fakeProgram struct {
	query string
	fn    func(ctx context.Context, input any) (any, error)
}

func (p *fakeProgram) Source() string { return p.query }

func (p *fakeProgram) Evaluate(ctx context.Context, input any) (any, error) {
	return p.fn(ctx, input)
}
