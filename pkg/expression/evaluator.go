// Copyright 2021 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Package expression gives the mapping engine (pkg/mapping) a concrete,
// narrow interface onto the mapping query language. The language itself
// is treated as an opaque external collaborator (see spec §9): a real
// integration may swap in whatever JSON-query engine its ecosystem
// favors, as long as it satisfies Evaluator. Program.Evaluate must be
// pure and side-effect-free: no I/O, no wall-clock reads, no randomness.
package expression

import "context"

// Program is a single compiled mapping expression, ready to be evaluated
// repeatedly against different inputs.
type Program interface {
	// Evaluate runs the program against input (typically the raw record,
	// or a {"item": ..., ...} context built for an itemsToParse element)
	// and returns the resulting JSON-typed value: nil, bool, float64,
	// string, []any or map[string]any.
	Evaluate(ctx context.Context, input any) (any, error)

	// Source returns the original expression text, for error messages.
	Source() string
}

// Evaluator compiles mapping expression source into a reusable Program.
// Config loading (pkg/config) compiles each RC's expressions exactly once
// and caches the resulting Programs; the mapping engine only ever calls
// Evaluate.
type Evaluator interface {
	Compile(query string) (Program, error)
}
