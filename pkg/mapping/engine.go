// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Package mapping is the mapping engine: it turns one raw record fetched
// for a kind into zero or more portapi.Entity values, per spec §4.C4.
//
// Per-field evaluation failure is soft: a property or relation expression
// that errors is recorded and skipped, and the rest of the entity is still
// produced, mirroring the teacher's ApplyTimeMutator substitution loop
// (each substitution is independently read/written, and a failure is
// attributed to the specific source/target path that caused it). Only the
// identifier, blueprint, a property marked Required, or a relation whose
// search identifier cannot be resolved under ResolutionStrict hard-fails
// the whole entity.
package mapping

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/port-labs/ocean-sub002/pkg/config"
	oceanerrors "github.com/port-labs/ocean-sub002/pkg/errors"
	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

// Mapper evaluates a CompiledResource's expressions against raw records.
type Mapper struct {
	// Concurrency bounds how many records are mapped in parallel by
	// MapRecords. Defaults to 8 if zero or negative.
	Concurrency int
}

// NewMapper returns a Mapper with the given concurrency.
func NewMapper(concurrency int) *Mapper {
	return &Mapper{Concurrency: concurrency}
}

func (m *Mapper) concurrency() int {
	if m.Concurrency <= 0 {
		return 8
	}
	return m.Concurrency
}

// recordResult is one record's mapping outcome, kept alongside its index
// so MapRecords can preserve the input order despite fanning out.
type recordResult struct {
	entities []portapi.Entity
	errs     []error
}

// MapRecords maps every record in records against cr, fanning out across
// m.Concurrency goroutines. policy and searcher govern how relations that
// evaluate to a search identifier are resolved (see evalRelation);
// searcher may be nil under ResolutionPermissive, which never calls it.
// The returned entities are not deduplicated or merged across records;
// that is pkg/resync/kindpipeline's job, since it alone knows the
// PAC-wide enableMergeEntity policy.
func (m *Mapper) MapRecords(ctx context.Context, cr config.CompiledResource, records []any, policy config.SearchIdentifierResolution, searcher Searcher) ([]portapi.Entity, []error) {
	results := make([]recordResult, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency())

	for i, record := range records {
		i, record := i, record
		g.Go(func() error {
			entities, errs := m.mapOneRecord(gctx, cr, record, policy, searcher)
			results[i] = recordResult{entities: entities, errs: errs}
			return nil // per-record errors are soft; never abort the fan-out
		})
	}
	// The per-record closures above always return nil, so Wait never
	// reports an error; it only waits for every record to finish.
	_ = g.Wait()

	var entities []portapi.Entity
	var errs []error
	for _, r := range results {
		entities = append(entities, r.entities...)
		errs = append(errs, r.errs...)
	}
	return entities, errs
}

// mapOneRecord applies the selector, then (if set) itemsToParse, then maps
// each resulting item into an entity.
func (m *Mapper) mapOneRecord(ctx context.Context, cr config.CompiledResource, record any, policy config.SearchIdentifierResolution, searcher Searcher) ([]portapi.Entity, []error) {
	if cr.Selector != nil {
		matched, err := evalBool(ctx, cr.Selector, record)
		if err != nil {
			return nil, []error{&oceanerrors.MappingError{Kind: cr.Kind, Field: "selector", Err: err}}
		}
		if !matched {
			return nil, nil
		}
	}

	items := []any{record}
	if cr.ItemsToParse != nil {
		raw, err := cr.ItemsToParse.Evaluate(ctx, record)
		if err != nil {
			return nil, []error{&oceanerrors.MappingError{Kind: cr.Kind, Field: "itemsToParse", Err: err}}
		}
		list, ok := raw.([]any)
		if !ok {
			if raw == nil {
				return nil, nil
			}
			return nil, []error{&oceanerrors.MappingError{
				Kind: cr.Kind, Field: "itemsToParse",
				Err: fmt.Errorf("itemsToParse must evaluate to a list, got %T", raw),
			}}
		}
		items = make([]any, len(list))
		for i, v := range list {
			if cr.EmbedOriginalData {
				items[i] = map[string]any{"item": v, "original": record}
			} else {
				items[i] = map[string]any{"item": v}
			}
		}
	}

	var entities []portapi.Entity
	var errs []error
	for _, item := range items {
		entity, itemErrs, ok := m.mapOneItem(ctx, cr, item, policy, searcher)
		errs = append(errs, itemErrs...)
		if ok {
			entities = append(entities, entity)
		}
	}
	return entities, errs
}

// mapOneItem evaluates every mapping expression against one item (a
// record, or one itemsToParse element). ok is false if a hard failure
// (identifier, blueprint, a required property, or a search identifier
// left unresolved under ResolutionStrict) means no entity could be
// produced at all.
func (m *Mapper) mapOneItem(ctx context.Context, cr config.CompiledResource, item any, policy config.SearchIdentifierResolution, searcher Searcher) (portapi.Entity, []error, bool) {
	var errs []error
	mk := cr.Mapping

	identifier, err := evalString(ctx, mk.Identifier, item)
	if err != nil || identifier == "" {
		if err == nil {
			err = fmt.Errorf("identifier evaluated to an empty string")
		}
		return portapi.Entity{}, append(errs, &oceanerrors.MappingError{Kind: cr.Kind, Field: "identifier", Err: err}), false
	}

	blueprint, err := evalString(ctx, mk.Blueprint, item)
	if err != nil || blueprint == "" {
		if err == nil {
			err = fmt.Errorf("blueprint evaluated to an empty string")
		}
		return portapi.Entity{}, append(errs, &oceanerrors.MappingError{Kind: cr.Kind, Identifier: identifier, Field: "blueprint", Err: err}), false
	}

	entity := portapi.Entity{Blueprint: blueprint, Identifier: identifier}

	if mk.Title != nil {
		if v, err := evalString(ctx, mk.Title, item); err != nil {
			errs = append(errs, &oceanerrors.MappingError{Kind: cr.Kind, Identifier: identifier, Field: "title", Err: err})
		} else {
			entity.Title = v
		}
	}
	if mk.Team != nil {
		if v, err := evalString(ctx, mk.Team, item); err != nil {
			errs = append(errs, &oceanerrors.MappingError{Kind: cr.Kind, Identifier: identifier, Field: "team", Err: err})
		} else {
			entity.Team = v
		}
	}
	if mk.Icon != nil {
		if v, err := evalString(ctx, mk.Icon, item); err != nil {
			errs = append(errs, &oceanerrors.MappingError{Kind: cr.Kind, Identifier: identifier, Field: "icon", Err: err})
		} else {
			entity.Icon = v
		}
	}

	if len(mk.Properties) > 0 {
		entity.Properties = make(map[string]any, len(mk.Properties))
		for name, p := range mk.Properties {
			v, err := p.Program.Evaluate(ctx, item)
			if err != nil {
				field := fmt.Sprintf("properties.%s", name)
				errs = append(errs, &oceanerrors.MappingError{Kind: cr.Kind, Identifier: identifier, Field: field, Err: err})
				if p.Required {
					return portapi.Entity{}, errs, false
				}
				continue
			}
			entity.Properties[name] = v
		}
	}

	if len(mk.Relations) > 0 {
		entity.Relations = make(map[string]portapi.RelationValue, len(mk.Relations))
		for name, r := range mk.Relations {
			rv, err := evalRelation(ctx, r, item, policy, searcher)
			if err != nil {
				field := fmt.Sprintf("relations.%s", name)
				errs = append(errs, &oceanerrors.MappingError{Kind: cr.Kind, Identifier: identifier, Field: field, Err: err})
				var unresolved unresolvedSearchError
				if errors.As(err, &unresolved) {
					return portapi.Entity{}, errs, false
				}
				continue
			}
			entity.Relations[name] = rv
		}
	}

	return entity, errs, true
}
