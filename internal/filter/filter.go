// Package filter implements the positive/negative filter matching rules
// attribution gates on: the top-level trigger-vs-source filter check
// (spec.md §4.4) and the event-level per-spec filter check used while
// picking an event-trigger spec (spec.md §4.7 step 4).
//
// All matching here is pure and never suspends (spec.md §5): it only reads
// the in-memory FilterData already loaded by the pipeline.
package filter

import "github.com/attrib-io/attributor/internal/model"

// Matches reports whether filterSet matches sourceFilters under the given
// polarity. An empty or nil filterSet always matches (no restriction).
//
// positive=true (spec.md §4.4 "isFilterMatch ... positive=true"): a map in
// the set matches iff, for every key present in both the map and
// sourceFilters, the two value sequences intersect.
//
// positive=false: a map matches iff, for every shared key, the two value
// sequences do NOT intersect.
//
// The set as a whole matches iff any one of its maps matches.
func Matches(sourceFilters model.FilterData, filterSet model.FilterSet, positive bool) bool {
	if len(filterSet) == 0 {
		return true
	}

	for _, m := range filterSet {
		if mapMatches(sourceFilters, m, positive) {
			return true
		}
	}

	return false
}

func mapMatches(sourceFilters, candidate model.FilterData, positive bool) bool {
	if len(sourceFilters) == 0 || len(candidate) == 0 {
		return true
	}

	for key, wantValues := range candidate {
		haveValues, ok := sourceFilters[key]
		if !ok {
			// Key only present on one side: no restriction from this key.
			continue
		}

		intersects := intersects(haveValues, wantValues)
		if positive && !intersects {
			return false
		}

		if !positive && intersects {
			return false
		}
	}

	return true
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}

	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}

	return false
}

// TopLevelMatch evaluates the top-level trigger gate: both the trigger's
// positive filters and its negative filters must match the source's filter
// data (spec.md §4.4).
func TopLevelMatch(sourceFilters model.FilterData, filters, notFilters model.FilterSet) bool {
	return Matches(sourceFilters, filters, true) && Matches(sourceFilters, notFilters, false)
}

// FirstMatchingEventTrigger returns the first event-trigger spec whose own
// filter_set (positive) and not_filter_set (negative) both match the
// source's filter data, and true. If none match, it returns the zero value
// and false (spec.md §4.7 step 4).
func FirstMatchingEventTrigger(
	sourceFilters model.FilterData,
	specs []model.EventTriggerSpec,
) (model.EventTriggerSpec, bool) {
	for _, spec := range specs {
		if Matches(sourceFilters, spec.FilterSet, true) && Matches(sourceFilters, spec.NotFilterSet, false) {
			return spec, true
		}
	}

	return model.EventTriggerSpec{}, false
}

// FirstMatchingAggregatableDedupKey runs the trigger's dedup-key predicates
// against the source's aggregatable filter data, honoring "the first
// predicate whose filters match yields the key" (spec.md §4.6 step 3). It
// returns nil if none match or the matching predicate carries no key.
func FirstMatchingAggregatableDedupKey(
	sourceFilters model.FilterData,
	predicates []model.AggregatableDedupKeyPredicate,
) *uint64 {
	for _, p := range predicates {
		if Matches(sourceFilters, p.FilterSet, true) && Matches(sourceFilters, p.NotFilterSet, false) {
			return p.DedupKey
		}
	}

	return nil
}
