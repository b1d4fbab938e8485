package selector

import "github.com/attrib-io/attributor/internal/model"

// SynthesizeDerived builds the cross-network derived sources candidate pool
// from foreignSources: sources registered under an enrollment other than the
// trigger's own, named in the trigger's attribution_config (spec.md §4.11).
//
// Each derived source copies its registration shape (windows, priority,
// type, filter data, aggregatable key pieces) from its foreign parent
// verbatim, is stamped with parent_id = foreign.id and
// enrollment_id = trigger's own enrollment, and never carries install
// attribution — cross-network sources are never eligible for the install
// cooldown tie-break (spec.md §SPEC_FULL.md §C.1). Candidates that no longer
// satisfy the destination-match predicate are dropped, same as ordinary
// matching sources.
func SynthesizeDerived(trigger *model.Trigger, foreignSources []*model.Source) []*model.Source {
	derived := make([]*model.Source, 0, len(foreignSources))

	for _, foreign := range foreignSources {
		if !foreign.MatchesDestination(trigger.AttributionDestination, trigger.DestinationType) {
			continue
		}

		if trigger.TriggerTime < foreign.EventTime || trigger.TriggerTime >= foreign.ExpiryTime {
			continue
		}

		if foreign.Status != model.SourceActive {
			continue
		}

		d := &model.Source{
			ID:                       foreign.ID + ":" + trigger.EnrollmentID,
			EventID:                  foreign.EventID,
			Publisher:                foreign.Publisher,
			PublisherType:            foreign.PublisherType,
			EnrollmentID:             trigger.EnrollmentID,
			ParentID:                 foreign.ID,
			EventTime:                foreign.EventTime,
			ExpiryTime:               foreign.ExpiryTime,
			EventReportWindow:        foreign.EventReportWindow,
			AggregatableReportWindow: foreign.AggregatableReportWindow,
			Priority:                 foreign.Priority,
			SourceType:               foreign.SourceType,
			Status:                   model.SourceActive,
			AttributionMode:          foreign.AttributionMode,
			InstallAttributed:        false,
			InstallCooldownWindow:    0,
			FilterData:               cloneFilterData(foreign.FilterData),
			AggregatableSource:       cloneAggregatableSource(foreign.AggregatableSource),
			AppDestinations:          foreign.AppDestinations,
			WebDestinations:          foreign.WebDestinations,
		}

		derived = append(derived, d)
	}

	return derived
}

func cloneFilterData(fd model.FilterData) model.FilterData {
	if fd == nil {
		return nil
	}

	out := make(model.FilterData, len(fd))
	for k, v := range fd {
		values := make([]string, len(v))
		copy(values, v)
		out[k] = values
	}

	return out
}

func cloneAggregatableSource(as model.AggregatableSource) model.AggregatableSource {
	if as == nil {
		return nil
	}

	out := make(model.AggregatableSource, len(as))
	for k, v := range as {
		out[k] = v
	}

	return out
}
