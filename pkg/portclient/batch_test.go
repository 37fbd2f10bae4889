// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portclient

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

func entity(id string) portapi.Entity {
	return portapi.Entity{Blueprint: "service", Identifier: id, Title: id}
}

func TestSplitIntoBatchesRespectsMaxItems(t *testing.T) {
	entities := make([]portapi.Entity, 25)
	for i := range entities {
		entities[i] = entity(strings.Repeat("x", i+1))
	}

	batches := splitIntoBatches(entities, BatchLimits{MaxItems: 10, MaxBytes: 1 << 20})
	assert.Len(t, batches, 3)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 10)
	assert.Len(t, batches[2], 5)
}

func TestSplitIntoBatchesRespectsMaxBytes(t *testing.T) {
	big := entity(strings.Repeat("y", 500))
	entities := []portapi.Entity{big, big, big}

	size := estimateSize(big)
	batches := splitIntoBatches(entities, BatchLimits{MaxItems: 100, MaxBytes: size + 10})
	assert.Len(t, batches, 3, "each entity alone exceeds the per-batch byte budget once a second is added")
}

func TestSplitIntoBatchesNeverProducesAnEmptyBatch(t *testing.T) {
	batches := splitIntoBatches(nil, DefaultBatchLimits)
	assert.Empty(t, batches)
}

func TestSplitIntoBatchesDefaultsAppliedWhenUnset(t *testing.T) {
	entities := make([]portapi.Entity, 5)
	for i := range entities {
		entities[i] = entity(strings.Repeat("z", i+1))
	}
	batches := splitIntoBatches(entities, BatchLimits{})
	assert.Len(t, batches, 1)
}
