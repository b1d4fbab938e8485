package memstore

import "github.com/attrib-io/attributor/internal/model"

func cloneSource(src *model.Source) *model.Source {
	if src == nil {
		return nil
	}

	cp := *src
	cp.FilterData = cloneFilterData(src.FilterData)
	cp.AggregatableSource = cloneAggregatableSource(src.AggregatableSource)
	cp.EventReportDedupKeys = src.EventReportDedupKeys.Clone()
	cp.AggregateReportDedupKeys = src.AggregateReportDedupKeys.Clone()
	cp.AppDestinations = append([]string(nil), src.AppDestinations...)
	cp.WebDestinations = append([]string(nil), src.WebDestinations...)

	return &cp
}

func cloneFilterData(fd model.FilterData) model.FilterData {
	if fd == nil {
		return nil
	}

	out := make(model.FilterData, len(fd))
	for k, v := range fd {
		out[k] = append([]string(nil), v...)
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

func cloneTrigger(t *model.Trigger) *model.Trigger {
	if t == nil {
		return nil
	}

	cp := *t
	cp.Filters = append(model.FilterSet(nil), t.Filters...)
	cp.NotFilters = append(model.FilterSet(nil), t.NotFilters...)
	cp.EventTriggers = append([]model.EventTriggerSpec(nil), t.EventTriggers...)
	cp.AggregatableTriggerData = append([]model.AggregatableTriggerDatum(nil), t.AggregatableTriggerData...)
	cp.AggregatableDedupKeys = append([]model.AggregatableDedupKeyPredicate(nil), t.AggregatableDedupKeys...)
	cp.AttributionConfig = append([]string(nil), t.AttributionConfig...)

	return &cp
}

func cloneEventReport(r *model.EventReport) *model.EventReport {
	if r == nil {
		return nil
	}

	cp := *r

	return &cp
}

func cloneAggregateReport(r *model.AggregateReport) *model.AggregateReport {
	if r == nil {
		return nil
	}

	cp := *r
	cp.Contributions = append([]model.Contribution(nil), r.Contributions...)

	return &cp
}
