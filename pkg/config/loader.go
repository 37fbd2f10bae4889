// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/port-labs/ocean-sub002/pkg/expression"
)

// LoaderOptions configures one Loader. It follows the same
// Complete-then-Run shape as the CLI's own option structs: fields are
// filled in (directly, or via Complete from a raw source), validated
// once, and then Load is safe to call repeatedly.
type LoaderOptions struct {
	// Evaluator compiles the mapping expression language. Defaults to
	// expression.NewAJSONEvaluator() if left nil.
	Evaluator expression.Evaluator
}

// Complete fills in defaults left unset on o.
func (o *LoaderOptions) Complete() {
	if o.Evaluator == nil {
		o.Evaluator = expression.NewAJSONEvaluator()
	}
}

// Loader decodes and compiles a PAC document. It is safe for concurrent
// use: Load does not mutate shared state.
type Loader struct {
	evaluator expression.Evaluator
}

// NewLoader builds a Loader from options, completing any left unset.
func NewLoader(o LoaderOptions) *Loader {
	o.Complete()
	return &Loader{evaluator: o.Evaluator}
}

// Load decodes r as YAML into a PAC and compiles every resource's
// expressions. A resource whose expressions fail to compile is recorded
// in CompiledPAC.Disabled and excluded from CompiledPAC.Resources rather
// than failing the whole load, per spec §4.C10: one malformed kind must
// not block every other kind's resync.
//
// Load itself only fails when the document cannot be parsed at all, or
// carries no resources.
func (l *Loader) Load(r io.Reader) (*CompiledPAC, error) {
	var raw PAC
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding port-app-config: %w", err)
	}
	return l.compile(raw)
}

// LoadBytes is a convenience wrapper around Load for in-memory sources
// (e.g. a value fetched from Port's integration-config API).
func (l *Loader) LoadBytes(raw []byte) (*CompiledPAC, error) {
	var pac PAC
	if err := yaml.Unmarshal(raw, &pac); err != nil {
		return nil, fmt.Errorf("decoding port-app-config: %w", err)
	}
	return l.compile(pac)
}

func (l *Loader) compile(raw PAC) (*CompiledPAC, error) {
	if len(raw.Resources) == 0 {
		return nil, fmt.Errorf("port-app-config declares no resources")
	}

	out := &CompiledPAC{
		Raw:                          raw,
		CreateMissingRelatedEntities: raw.CreateMissingRelatedEntities,
		DeleteDependentEntities:      raw.DeleteDependentEntities,
		EnableMergeEntity:            raw.EnableMergeEntity,
		SearchIdentifierResolution:   raw.ResolutionPolicy(),
	}

	for _, rc := range raw.Resources {
		cr, err := l.compileResource(rc, raw)
		if err != nil {
			out.Disabled = append(out.Disabled, DisabledResource{Kind: rc.Kind, Err: err})
			continue
		}
		out.Resources = append(out.Resources, cr)
	}
	return out, nil
}

func (l *Loader) compileResource(rc ResourceConfig, pac PAC) (CompiledResource, error) {
	if rc.Kind == "" {
		return CompiledResource{}, fmt.Errorf("resource has no kind")
	}

	cr := CompiledResource{
		Kind:              rc.Kind,
		EmbedOriginalData: rc.EmbedOriginalData(pac),
	}

	if rc.Selector.Query != "" {
		prog, err := l.evaluator.Compile(rc.Selector.Query)
		if err != nil {
			return CompiledResource{}, fmt.Errorf("kind %q: selector: %w", rc.Kind, err)
		}
		cr.Selector = prog
	}

	if rc.ItemsToParse != "" {
		prog, err := l.evaluator.Compile(rc.ItemsToParse)
		if err != nil {
			return CompiledResource{}, fmt.Errorf("kind %q: itemsToParse: %w", rc.Kind, err)
		}
		cr.ItemsToParse = prog
	}

	mapping, err := l.compileMapping(rc.Kind, rc.Port.Entity.Mappings)
	if err != nil {
		return CompiledResource{}, err
	}
	cr.Mapping = mapping
	return cr, nil
}

func (l *Loader) compileMapping(kind string, m EntityMapping) (CompiledMapping, error) {
	compileRequired := func(field, expr string) (expression.Program, error) {
		if expr == "" {
			return nil, fmt.Errorf("kind %q: %s: expression is required", kind, field)
		}
		prog, err := l.evaluator.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("kind %q: %s: %w", kind, field, err)
		}
		return prog, nil
	}
	compileOptional := func(field, expr string) (expression.Program, error) {
		if expr == "" {
			return nil, nil
		}
		prog, err := l.evaluator.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("kind %q: %s: %w", kind, field, err)
		}
		return prog, nil
	}

	var cm CompiledMapping
	var err error
	if cm.Identifier, err = compileRequired("identifier", m.Identifier); err != nil {
		return CompiledMapping{}, err
	}
	if cm.Blueprint, err = compileRequired("blueprint", m.Blueprint); err != nil {
		return CompiledMapping{}, err
	}
	if cm.Title, err = compileOptional("title", m.Title); err != nil {
		return CompiledMapping{}, err
	}
	if cm.Team, err = compileOptional("team", m.Team); err != nil {
		return CompiledMapping{}, err
	}
	if cm.Icon, err = compileOptional("icon", m.Icon); err != nil {
		return CompiledMapping{}, err
	}

	if len(m.Properties) > 0 {
		cm.Properties = make(map[string]CompiledProperty, len(m.Properties))
		for name, p := range m.Properties {
			prog, err := compileRequired(fmt.Sprintf("property %q", name), p.Expression)
			if err != nil {
				return CompiledMapping{}, err
			}
			cm.Properties[name] = CompiledProperty{Program: prog, Required: p.Required}
		}
	}

	if len(m.Relations) > 0 {
		cm.Relations = make(map[string]CompiledRelation, len(m.Relations))
		for name, r := range m.Relations {
			prog, err := compileRequired(fmt.Sprintf("relation %q", name), r.Expression)
			if err != nil {
				return CompiledMapping{}, err
			}
			cm.Relations[name] = CompiledRelation{
				Program:         prog,
				TargetBlueprint: r.TargetBlueprint,
				Many:            r.Many,
			}
		}
	}

	return cm, nil
}
