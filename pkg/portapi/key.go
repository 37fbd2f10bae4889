// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0
//
// EntityKey is the minimal set of information needed to uniquely
// identify an entity in the catalog. The two fields are:
//
//	Blueprint
//	Identifier
//
// This is the unit the resync engine tracks in a run's seen set and
// uses to decide what to upsert, and, at the end of a run, what to
// delete.
package portapi

import (
	"fmt"
	"strings"
)

// fieldSeparator separates the fields of an EntityKey in its string form.
const fieldSeparator = "::"

// EntityKey identifies an entity by its blueprint and identifier. Two
// entities with equal EntityKeys are the same entity for upsert,
// deduplication and stale-deletion purposes.
type EntityKey struct {
	Blueprint  string
	Identifier string
}

// NewEntityKey returns a validated EntityKey, or an error if either field
// is empty after trimming.
func NewEntityKey(blueprint, identifier string) (EntityKey, error) {
	blueprint = strings.TrimSpace(blueprint)
	identifier = strings.TrimSpace(identifier)
	if blueprint == "" {
		return EntityKey{}, fmt.Errorf("empty blueprint for entity key")
	}
	if identifier == "" {
		return EntityKey{}, fmt.Errorf("empty identifier for entity key")
	}
	return EntityKey{Blueprint: blueprint, Identifier: identifier}, nil
}

// String renders the key as a single opaque string, used as a map key
// where a comparable struct isn't convenient (e.g. logging, hashing).
func (k EntityKey) String() string {
	return k.Blueprint + fieldSeparator + k.Identifier
}

// Equals reports whether k and other identify the same entity.
func (k EntityKey) Equals(other EntityKey) bool {
	return k == other
}
