// Package selector picks the one source a trigger attributes to out of its
// candidate set, and synthesises the cross-network derived sources that
// candidate set may include (spec.md §4.3, §4.11).
//
// Everything here is pure given its inputs — no datastore access — per
// spec.md §5 ("the filter engine, source sorter ... are pure and never
// suspend"). The pipeline package is responsible for loading ownSources and
// foreignSources from the datastore before calling Select.
package selector

import "github.com/attrib-io/attributor/internal/model"

// Result is the selector's output: a winning source plus the losing
// candidates, which the pipeline later moves to IGNORED (spec.md §4.9).
type Result struct {
	Winner *model.Source
	Others []*model.Source
}

// Select builds the candidate set for trigger and picks a winner.
//
// When crossNetworkEnabled is false, or trigger carries no
// attribution_config, candidates are exactly ownSources. Otherwise,
// candidates are ownSources plus the derived sources synthesised from
// foreignSources (spec.md §4.3).
//
// The second return value is false iff the candidate set is empty.
func Select(
	trigger *model.Trigger,
	ownSources []*model.Source,
	foreignSources []*model.Source,
	crossNetworkEnabled bool,
) (Result, bool) {
	candidates := ownSources

	if crossNetworkEnabled && trigger.HasAttributionConfig() {
		derived := SynthesizeDerived(trigger, foreignSources)
		candidates = make([]*model.Source, 0, len(ownSources)+len(derived))
		candidates = append(candidates, ownSources...)
		candidates = append(candidates, derived...)
	}

	if len(candidates) == 0 {
		return Result{}, false
	}

	ordered := Order(candidates, trigger.TriggerTime)

	return Result{Winner: ordered[0], Others: ordered[1:]}, true
}
