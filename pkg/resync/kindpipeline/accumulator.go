// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package kindpipeline

import (
	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

// accumulator buffers mapped entities per blueprint until a batch budget
// is reached, merging entities with the same key (portapi.Merge) while
// they are pending in the same batch. drain forgets the keys it returns,
// so a key that recurs after its batch was flushed is buffered and
// upserted again without being merged with the earlier entity. Not safe
// for concurrent use; one accumulator belongs to one Pipeline.Run call.
type accumulator struct {
	mergeUnion bool
	byKey      map[string]map[portapi.EntityKey]portapi.Entity
	order      map[string][]portapi.EntityKey
}

func newAccumulator(enableMergeEntity bool) *accumulator {
	return &accumulator{
		mergeUnion: enableMergeEntity,
		byKey:      make(map[string]map[portapi.EntityKey]portapi.Entity),
		order:      make(map[string][]portapi.EntityKey),
	}
}

func (a *accumulator) add(e portapi.Entity) {
	key := e.Key()
	blueprint := key.Blueprint
	if a.byKey[blueprint] == nil {
		a.byKey[blueprint] = make(map[portapi.EntityKey]portapi.Entity)
	}
	mode := portapi.MergeModeLastWriterWins
	if a.mergeUnion {
		mode = portapi.MergeModeUnion
	}
	if prior, ok := a.byKey[blueprint][key]; ok {
		a.byKey[blueprint][key] = portapi.Merge(prior, e, mode)
		return
	}
	a.byKey[blueprint][key] = e
	a.order[blueprint] = append(a.order[blueprint], key)
}

// readyToFlush reports whether any blueprint's accumulated entities have
// reached DefaultBatchLimits.MaxItems, and which one to flush first. The
// byte budget is not checked here.
func (a *accumulator) readyToFlush() (bool, string) {
	for blueprint, keys := range a.order {
		if len(keys) >= DefaultBatchLimits.MaxItems {
			return true, blueprint
		}
	}
	return false, ""
}

// blueprints returns every blueprint with at least one pending entity.
func (a *accumulator) blueprints() []string {
	var out []string
	for blueprint, keys := range a.order {
		if len(keys) > 0 {
			out = append(out, blueprint)
		}
	}
	return out
}

// drain returns blueprint's accumulated entities, in first-seen order,
// and clears them from the accumulator.
func (a *accumulator) drain(blueprint string) []portapi.Entity {
	keys := a.order[blueprint]
	entities := make([]portapi.Entity, 0, len(keys))
	for _, k := range keys {
		entities = append(entities, a.byKey[blueprint][k])
	}
	delete(a.order, blueprint)
	delete(a.byKey, blueprint)
	return entities
}
