// Copyright 2021 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package portapi

// EntityKeySet is a deduplicated collection of EntityKeys. It is the basis
// for a run's "seen" set (invariant: every upserted entity's key is
// recorded here before stale deletion runs) and for the set arithmetic
// stale deletion performs: previousSeen.Difference(currentSeen).
type EntityKeySet []EntityKey

// NewEntityKeySet returns a deduplicated EntityKeySet from the given keys.
func NewEntityKeySet(keys ...EntityKey) EntityKeySet {
	return EntityKeySet{}.Add(keys...)
}

// Add returns a new set containing s's keys plus the given keys, deduped.
func (s EntityKeySet) Add(keys ...EntityKey) EntityKeySet {
	seen := make(map[EntityKey]struct{}, len(s)+len(keys))
	out := make(EntityKeySet, 0, len(s)+len(keys))
	for _, k := range s {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	for _, k := range keys {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Contains reports whether k is a member of s.
func (s EntityKeySet) Contains(k EntityKey) bool {
	for _, e := range s {
		if e == k {
			return true
		}
	}
	return false
}

// Equal reports whether s and other contain the same keys, in any order.
func (s EntityKeySet) Equal(other EntityKeySet) bool {
	if len(s) != len(other) {
		return false
	}
	m := make(map[EntityKey]struct{}, len(s))
	for _, k := range s {
		m[k] = struct{}{}
	}
	for _, k := range other {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

// Union returns the set of keys present in either s or other.
func (s EntityKeySet) Union(other EntityKeySet) EntityKeySet {
	return s.Add(other...)
}

// Difference returns the keys present in s but not in other: s - other.
// This is the operation stale deletion performs: previousSeen.Difference(currentSeen).
func (s EntityKeySet) Difference(other EntityKeySet) EntityKeySet {
	excl := make(map[EntityKey]struct{}, len(other))
	for _, k := range other {
		excl[k] = struct{}{}
	}
	out := EntityKeySet{}
	seen := make(map[EntityKey]struct{}, len(s))
	for _, k := range s {
		if _, ok := excl[k]; ok {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Len returns the number of keys in s.
func (s EntityKeySet) Len() int { return len(s) }

// ByBlueprint groups s's keys by blueprint, preserving relative order
// within each group. Used to issue deletes in reverse dependency order
// without a second pass over the whole set.
func (s EntityKeySet) ByBlueprint() map[string]EntityKeySet {
	out := map[string]EntityKeySet{}
	for _, k := range s {
		out[k.Blueprint] = append(out[k.Blueprint], k)
	}
	return out
}
