package model

import "sort"

// DedupKeySet is a set of opaque 64-bit dedup keys. Event-report and
// aggregate-report dedup keys are each tracked in their own set per source
// (spec.md §3, invariants 2-3).
type DedupKeySet map[uint64]struct{}

// NewDedupKeySet builds a set from a slice, as loaded from the datastore.
func NewDedupKeySet(keys []uint64) DedupKeySet {
	s := make(DedupKeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}

	return s
}

// Contains reports whether key is already present.
func (s DedupKeySet) Contains(key uint64) bool {
	_, ok := s[key]

	return ok
}

// Add inserts key in place and returns the same set (sets are reference
// types in Go; the return value lets call sites chain Clone().Add(...)).
func (s DedupKeySet) Add(key uint64) DedupKeySet {
	s[key] = struct{}{}

	return s
}

// Remove deletes key if present; a no-op otherwise.
func (s DedupKeySet) Remove(key uint64) {
	delete(s, key)
}

// Slice returns the set's members in ascending order, for deterministic
// persistence and comparison in tests.
func (s DedupKeySet) Slice() []uint64 {
	out := make([]uint64, 0, len(s))
	for k := range s {
		out = append(out, k)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// Clone returns an independent copy.
func (s DedupKeySet) Clone() DedupKeySet {
	c := make(DedupKeySet, len(s))
	for k := range s {
		c[k] = struct{}{}
	}

	return c
}
