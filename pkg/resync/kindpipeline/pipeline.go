// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// Package kindpipeline runs one kind through a single resync: fetch,
// fan out to the mapping engine, accumulate per blueprint, and flush to
// the Port client, per spec §4.C5.
//
// Grounded directly on the teacher's pkg/apply/applier.go Run (a
// goroutine driving validate -> prepare -> build task queue -> run to
// completion) and pkg/apply/taskrunner's baseRunner.run (a single
// goroutine processing one task's completion before starting the next).
// The teacher's task queue is pre-built from a topologically sorted
// object set; a kind pipeline instead pulls its "tasks" (batches) lazily
// from a fetcher, since a kind's full record set is rarely known up
// front. There is no separate select loop over multiple channels here:
// unlike baseRunner, which also had to interleave status-poll events,
// a kind pipeline's only concurrency is the mapping engine's internal
// worker pool, so the batch-by-batch call chain is synchronous.
package kindpipeline

import (
	"context"
	"fmt"

	"github.com/port-labs/ocean-sub002/pkg/config"
	oceanerrors "github.com/port-labs/ocean-sub002/pkg/errors"
	"github.com/port-labs/ocean-sub002/pkg/mapping"
	"github.com/port-labs/ocean-sub002/pkg/portapi"
	"github.com/port-labs/ocean-sub002/pkg/portclient"
	"github.com/port-labs/ocean-sub002/pkg/runctx"
	"github.com/port-labs/ocean-sub002/pkg/runstate"
)

// Fetcher is the lazy sequence producer a user-registered integration
// supplies per kind. onBatch is invoked once per batch of raw records;
// Fetch returns once the source is exhausted, or propagates whatever
// error onBatch returned (used by the pipeline to signal cancellation).
// Implementations MUST observe ctx.Done() and return promptly.
type Fetcher interface {
	Fetch(ctx context.Context, onBatch func(batch []any) error) error
}

// FetcherFunc adapts a plain function to a Fetcher.
type FetcherFunc func(ctx context.Context, onBatch func(batch []any) error) error

func (f FetcherFunc) Fetch(ctx context.Context, onBatch func(batch []any) error) error {
	return f(ctx, onBatch)
}

// Result is what the orchestrator needs to decide stale deletion and the
// run's overall phase for this kind.
type Result struct {
	Kind string

	// FetcherFailed is true if Fetcher.Fetch returned a non-cancellation
	// error. Per spec §4.C6, a kind whose fetcher failed keeps its prior
	// seen set intact: stale deletion must not run for it this cycle.
	FetcherFailed bool

	// Cancelled is true if the run's cancellation signal fired before the
	// kind finished draining its in-flight batches.
	Cancelled bool

	Err error
}

// Pipeline runs one kind's fetch/map/upsert loop. Run is synchronous
// batch-by-batch (the only internal concurrency is the mapping engine's
// worker pool, which already selects on the run's context), so
// cancellation's "grace period" (spec §4.C5) is naturally just "let the
// in-flight batch finish mapping and flushing, then stop enqueuing the
// next one" — onBatch checks kindCtx.Ctx.Err() before starting each new
// batch rather than aborting mid-batch.
type Pipeline struct {
	Mapper *mapping.Mapper
}

// Run executes cr's kind to completion (or cancellation). kindCtx must
// already be scoped to this kind (see runctx.Context.WithKind).
func (p *Pipeline) Run(kindCtx *runctx.Context, cr config.CompiledResource, fetcher Fetcher, rs *runstate.RunState) Result {
	acc := newAccumulator(kindCtx.PAC.EnableMergeEntity)

	onBatch := func(batch []any) error {
		if err := kindCtx.Ctx.Err(); err != nil {
			return err
		}

		rs.RecordFetched(cr.Kind, len(batch))
		entities, mapErrs := p.Mapper.MapRecords(kindCtx.Ctx, cr, batch, kindCtx.PAC.ResolutionPolicy(), kindCtx.Client)
		for _, err := range mapErrs {
			kindCtx.Log.Error(err, "mapping error")
			rs.RecordFailure(cr.Kind, err)
		}
		rs.RecordMapped(cr.Kind, len(entities))

		for _, e := range entities {
			kindCtx.RecordSeen(e.Key())
			acc.add(e)
			if full, blueprint := acc.readyToFlush(); full {
				// flush records a failed upsert itself; the kind goes on
				// with its remaining records.
				_ = p.flush(kindCtx, rs, blueprint, acc.drain(blueprint))
			}
		}
		return nil
	}

	err := fetcher.Fetch(kindCtx.Ctx, onBatch)

	// Always flush whatever is left, even after a fetcher failure: those
	// entities were genuinely mapped and should still reach Port. A failed
	// flush is recorded by flush itself and does not mark the fetcher as
	// failed.
	for _, blueprint := range acc.blueprints() {
		_ = p.flush(kindCtx, rs, blueprint, acc.drain(blueprint))
	}

	result := Result{Kind: cr.Kind}
	switch {
	case err == nil:
		return result
	case oceanerrors.IsCancelled(err):
		result.Cancelled = true
		result.Err = err
	default:
		result.FetcherFailed = true
		result.Err = &oceanerrors.FetcherError{Kind: cr.Kind, Err: err}
		rs.RecordFetcherFailure(cr.Kind, result.Err)
	}
	return result
}

// flush hands one blueprint's accumulated entities to the Port client and
// records the outcome. A batch-level failure counts every entity in the
// batch as failed; pkg/portclient.RESTClient already retries transient
// failures internally, so an error here is the result of retries being
// exhausted (or a permanent failure).
func (p *Pipeline) flush(kindCtx *runctx.Context, rs *runstate.RunState, blueprint string, entities []portapi.Entity) error {
	if len(entities) == 0 {
		return nil
	}
	err := kindCtx.Client.UpsertBatch(kindCtx.Ctx, blueprint, entities)
	if err != nil {
		for _, e := range entities {
			kindCtx.RecordFailed(e.Key(), err)
		}
		rs.RecordFailure(kindCtx.Kind, fmt.Errorf("upserting %d entities of blueprint %q: %w", len(entities), blueprint, err))
		return err
	}
	for _, e := range entities {
		kindCtx.RecordUpserted(e.Key())
	}
	rs.RecordUpserted(kindCtx.Kind, len(entities))
	return nil
}

// DefaultBatchLimits re-exports portclient's batch sizing so the
// accumulator flushes at the same boundary the client itself would
// otherwise have to split at, avoiding a redundant second split.
var DefaultBatchLimits = portclient.DefaultBatchLimits
