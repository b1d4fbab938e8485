package selector

import (
	"sort"

	"github.com/attrib-io/attributor/internal/model"
)

// Order sorts candidates into the selector's deterministic total order
// (spec.md §4.3): descending by
//
//  1. install-cooldown-active (true before false)
//  2. priority
//  3. event_time
//
// and, because the datastore's own ordering is explicitly unspecified
// (spec.md §5), a final ascending-by-ID tiebreak so that identical inputs
// always produce a bit-for-bit identical order (spec.md §8 invariant 6).
// Order never mutates candidates; it returns a new, sorted slice.
func Order(candidates []*model.Source, triggerTime model.Millis) []*model.Source {
	sorted := make([]*model.Source, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]

		aCooldown := a.InstallCooldownActive(triggerTime)
		bCooldown := b.InstallCooldownActive(triggerTime)

		if aCooldown != bCooldown {
			return aCooldown // true sorts before false
		}

		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}

		if a.EventTime != b.EventTime {
			return a.EventTime > b.EventTime
		}

		return a.ID < b.ID
	})

	return sorted
}
