package memstore

import (
	"context"
	"fmt"

	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/model"
	"github.com/attrib-io/attributor/internal/siteorigin"
)

func attributionSourceSite(source *model.Source) (string, error) {
	return siteorigin.Site(source.Publisher, source.PublisherType == model.PublisherApp)
}

func attributionDestinationSite(trigger *model.Trigger) (string, error) {
	return siteorigin.Site(trigger.AttributionDestination, trigger.DestinationType == model.DestinationApp)
}

// txHandle implements datastore.Tx against a Store already locked by an
// enclosing WithTransaction call.
type txHandle struct {
	store *Store
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q not found", datastore.ErrUnavailable, kind, id)
}

func (tx *txHandle) GetTrigger(_ context.Context, id string) (*model.Trigger, error) {
	t, ok := tx.store.triggers[id]
	if !ok {
		return nil, notFound("trigger", id)
	}

	return cloneTrigger(t), nil
}

func (tx *txHandle) GetSource(_ context.Context, id string) (*model.Source, error) {
	src, ok := tx.store.sources[id]
	if !ok {
		return nil, notFound("source", id)
	}

	return cloneSource(src), nil
}

func (tx *txHandle) GetMatchingActiveSources(
	_ context.Context,
	trigger *model.Trigger,
) ([]*model.Source, error) {
	var out []*model.Source

	for _, src := range tx.store.sources {
		if src.EnrollmentID != trigger.EnrollmentID {
			continue
		}

		if !matchesWindow(src, trigger) {
			continue
		}

		out = append(out, cloneSource(src))
	}

	return out, nil
}

func (tx *txHandle) FetchTriggerMatchingSourcesForXNA(
	_ context.Context,
	trigger *model.Trigger,
	enrollments []string,
) ([]*model.Source, error) {
	allowed := make(map[string]struct{}, len(enrollments)+1)
	allowed[trigger.EnrollmentID] = struct{}{}

	for _, e := range enrollments {
		allowed[e] = struct{}{}
	}

	var out []*model.Source

	for _, src := range tx.store.sources {
		if _, ok := allowed[src.EnrollmentID]; !ok {
			continue
		}

		if !matchesWindow(src, trigger) {
			continue
		}

		out = append(out, cloneSource(src))
	}

	return out, nil
}

func matchesWindow(src *model.Source, trigger *model.Trigger) bool {
	if src.Status != model.SourceActive {
		return false
	}

	if !src.MatchesDestination(trigger.AttributionDestination, trigger.DestinationType) {
		return false
	}

	return src.EventTime <= trigger.TriggerTime && trigger.TriggerTime < src.ExpiryTime
}

func (tx *txHandle) NumEventReportsPerDestination(
	_ context.Context,
	destination string,
	destType model.DestinationType,
) (int, error) {
	count := 0

	for _, r := range tx.store.eventReports {
		if r.AttributionDestination == destination && r.DestinationType == destType {
			count++
		}
	}

	return count, nil
}

func (tx *txHandle) NumAggregateReportsPerDestination(
	_ context.Context,
	destination string,
	destType model.DestinationType,
) (int, error) {
	count := 0

	for _, r := range tx.store.aggregateReports {
		if r.AttributionDestination == destination && r.DestinationType == destType {
			count++
		}
	}

	return count, nil
}

func (tx *txHandle) GetSourceEventReports(_ context.Context, sourceID string) ([]*model.EventReport, error) {
	var out []*model.EventReport

	for _, r := range tx.store.eventReports {
		if r.SourceID == sourceID {
			out = append(out, cloneEventReport(r))
		}
	}

	return out, nil
}

func (tx *txHandle) GetSourceDestinations(
	_ context.Context,
	sourceID string,
) (app []string, web []string, err error) {
	src, ok := tx.store.sources[sourceID]
	if !ok {
		return nil, nil, notFound("source", sourceID)
	}

	return append([]string(nil), src.AppDestinations...), append([]string(nil), src.WebDestinations...), nil
}

func (tx *txHandle) GetAttributionsPerRateLimitWindow(
	_ context.Context,
	source *model.Source,
	trigger *model.Trigger,
	windowStart, windowEnd model.Millis,
) (int, error) {
	sourceSite, err := attributionSourceSite(source)
	if err != nil {
		return 0, nil //nolint:nilerr // unresolvable site cannot be counted; reported as a count of zero
	}

	destSite, err := attributionDestinationSite(trigger)
	if err != nil {
		return 0, nil //nolint:nilerr
	}

	count := 0

	for _, a := range tx.store.attributions {
		if a.SourceSite != sourceSite || a.DestinationSite != destSite {
			continue
		}

		if a.EnrollmentID != trigger.EnrollmentID || a.Registrant != trigger.Registrant {
			continue
		}

		if a.TriggerTime < windowStart || a.TriggerTime >= windowEnd {
			continue
		}

		count++
	}

	return count, nil
}

func (tx *txHandle) CountDistinctEnrollmentsPerPublisherXDestination(
	_ context.Context,
	publisher, destination, ownEnrollment string,
	windowStart, windowEnd model.Millis,
) (int, error) {
	seen := map[string]struct{}{ownEnrollment: {}}

	for _, a := range tx.store.attributions {
		if a.SourceSite != publisher || a.DestinationSite != destination {
			continue
		}

		if a.SourceTime < windowStart || a.SourceTime >= windowEnd {
			continue
		}

		seen[a.EnrollmentID] = struct{}{}
	}

	return len(seen), nil
}

func (tx *txHandle) InsertEventReport(_ context.Context, r *model.EventReport) error {
	if r.ID == "" {
		r.ID = newID("event_report")
	}

	tx.store.eventReports[r.ID] = cloneEventReport(r)

	return nil
}

func (tx *txHandle) InsertAggregateReport(_ context.Context, r *model.AggregateReport) error {
	if r.ID == "" {
		r.ID = newID("aggregate_report")
	}

	tx.store.aggregateReports[r.ID] = cloneAggregateReport(r)

	return nil
}

func (tx *txHandle) InsertAttribution(_ context.Context, a *model.Attribution) error {
	if a.ID == "" {
		a.ID = newID("attribution")
	}

	cp := *a
	tx.store.attributions[a.ID] = &cp

	return nil
}

func (tx *txHandle) DeleteEventReport(_ context.Context, reportID string) error {
	delete(tx.store.eventReports, reportID)

	return nil
}

func (tx *txHandle) UpdateSourceStatus(_ context.Context, ids []string, status model.SourceStatus) error {
	for _, id := range ids {
		if src, ok := tx.store.sources[id]; ok {
			src.Status = status
		}
	}

	return nil
}

func (tx *txHandle) InsertIgnoredSourceForEnrollment(_ context.Context, parentID, enrollmentID string) error {
	tx.store.ignoredXNA[parentID+"|"+enrollmentID] = struct{}{}

	return nil
}

func (tx *txHandle) UpdateSourceEventReportDedupKeys(_ context.Context, source *model.Source) error {
	src, ok := tx.store.sources[source.ID]
	if !ok {
		return notFound("source", source.ID)
	}

	src.EventReportDedupKeys = source.EventReportDedupKeys.Clone()

	return nil
}

func (tx *txHandle) UpdateSourceAggregateReportDedupKeys(_ context.Context, source *model.Source) error {
	src, ok := tx.store.sources[source.ID]
	if !ok {
		return notFound("source", source.ID)
	}

	src.AggregateReportDedupKeys = source.AggregateReportDedupKeys.Clone()

	return nil
}

func (tx *txHandle) UpdateSourceAggregateContributions(_ context.Context, source *model.Source) error {
	src, ok := tx.store.sources[source.ID]
	if !ok {
		return notFound("source", source.ID)
	}

	src.AggregateContributions = source.AggregateContributions

	return nil
}

func (tx *txHandle) UpdateTriggerStatus(_ context.Context, ids []string, status model.TriggerStatus) error {
	for _, id := range ids {
		if t, ok := tx.store.triggers[id]; ok {
			t.Status = status
		}
	}

	return nil
}

// IsIgnoredForEnrollment is a test/assertion helper, not part of datastore.Tx.
func (s *Store) IsIgnoredForEnrollment(parentID, enrollmentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.ignoredXNA[parentID+"|"+enrollmentID]

	return ok
}
