package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/model"
)

// PutSource and PutTrigger upsert registration rows outside of the
// attribution transaction itself. Registration is out of scope for the
// core (spec.md §1); these exist so integration tests and an eventual
// registration service can seed this adapter the same way memstore's
// PutSource/PutTrigger do for the in-memory one.
func (s *Store) PutSource(ctx context.Context, src *model.Source) error {
	filterData, err := marshalFilterData(src.FilterData)
	if err != nil {
		return err
	}

	aggSource, err := marshalAggSource(src.AggregatableSource)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sources
			(id, event_id, publisher, publisher_type, enrollment_id, parent_id, event_time,
			 expiry_time, event_report_window, aggregatable_report_window, priority, source_type,
			 status, attribution_mode, install_attributed, install_cooldown_window, filter_data,
			 aggregatable_source, aggregate_contributions, event_report_dedup_keys,
			 aggregate_report_dedup_keys, app_destinations, web_destinations)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
		ON CONFLICT (id) DO UPDATE SET
			event_id = EXCLUDED.event_id, publisher = EXCLUDED.publisher,
			publisher_type = EXCLUDED.publisher_type, enrollment_id = EXCLUDED.enrollment_id,
			parent_id = EXCLUDED.parent_id, event_time = EXCLUDED.event_time,
			expiry_time = EXCLUDED.expiry_time, event_report_window = EXCLUDED.event_report_window,
			aggregatable_report_window = EXCLUDED.aggregatable_report_window,
			priority = EXCLUDED.priority, source_type = EXCLUDED.source_type,
			status = EXCLUDED.status, attribution_mode = EXCLUDED.attribution_mode,
			install_attributed = EXCLUDED.install_attributed,
			install_cooldown_window = EXCLUDED.install_cooldown_window,
			filter_data = EXCLUDED.filter_data, aggregatable_source = EXCLUDED.aggregatable_source,
			aggregate_contributions = EXCLUDED.aggregate_contributions,
			event_report_dedup_keys = EXCLUDED.event_report_dedup_keys,
			aggregate_report_dedup_keys = EXCLUDED.aggregate_report_dedup_keys,
			app_destinations = EXCLUDED.app_destinations, web_destinations = EXCLUDED.web_destinations`,
		src.ID, src.EventID, src.Publisher, src.PublisherType, src.EnrollmentID, src.ParentID,
		src.EventTime, src.ExpiryTime, src.EventReportWindow, src.AggregatableReportWindow,
		src.Priority, src.SourceType, src.Status, src.AttributionMode, src.InstallAttributed,
		src.InstallCooldownWindow, filterData, aggSource, src.AggregateContributions,
		dedupSetToInt64Array(src.EventReportDedupKeys), dedupSetToInt64Array(src.AggregateReportDedupKeys),
		pq.StringArray(src.AppDestinations), pq.StringArray(src.WebDestinations))
	if err != nil {
		return fmt.Errorf("%w: put source: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (s *Store) PutTrigger(ctx context.Context, t *model.Trigger) error {
	filters, err := marshalFilterSet(t.Filters)
	if err != nil {
		return err
	}

	notFilters, err := marshalFilterSet(t.NotFilters)
	if err != nil {
		return err
	}

	eventTriggers, err := marshalEventTriggers(t.EventTriggers)
	if err != nil {
		return err
	}

	aggTriggerData, err := marshalAggTriggerData(t.AggregatableTriggerData)
	if err != nil {
		return err
	}

	aggDedupKeys, err := marshalAggDedupKeys(t.AggregatableDedupKeys)
	if err != nil {
		return err
	}

	aggValues, err := marshalAggValues(t.AggregatableValues)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO triggers
			(id, attribution_destination, destination_type, enrollment_id, registrant, trigger_time,
			 status, filters, not_filters, event_triggers, aggregatable_trigger_data,
			 aggregatable_dedup_keys, aggregatable_values, attribution_config)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			attribution_destination = EXCLUDED.attribution_destination,
			destination_type = EXCLUDED.destination_type, enrollment_id = EXCLUDED.enrollment_id,
			registrant = EXCLUDED.registrant, trigger_time = EXCLUDED.trigger_time,
			status = EXCLUDED.status, filters = EXCLUDED.filters, not_filters = EXCLUDED.not_filters,
			event_triggers = EXCLUDED.event_triggers,
			aggregatable_trigger_data = EXCLUDED.aggregatable_trigger_data,
			aggregatable_dedup_keys = EXCLUDED.aggregatable_dedup_keys,
			aggregatable_values = EXCLUDED.aggregatable_values,
			attribution_config = EXCLUDED.attribution_config`,
		t.ID, t.AttributionDestination, t.DestinationType, t.EnrollmentID, t.Registrant, t.TriggerTime,
		t.Status, filters, notFilters, eventTriggers, aggTriggerData, aggDedupKeys, aggValues,
		pq.StringArray(t.AttributionConfig))
	if err != nil {
		return fmt.Errorf("%w: put trigger: %w", datastore.ErrUnavailable, err)
	}

	return nil
}
