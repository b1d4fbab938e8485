package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/model"
	"github.com/attrib-io/attributor/internal/siteorigin"
)

// newID mints an id for a row the caller did not already assign one to,
// mirroring the memstore adapter's newID helper: a kind prefix followed by
// a random UUID.
func newID(kind string) string {
	return kind + "_" + uuid.NewString()
}

// tx implements datastore.Tx against a *sql.Tx already opened by
// Store.WithTransaction.
type tx struct {
	sqlTx *sql.Tx
}

func (t *tx) GetTrigger(ctx context.Context, id string) (*model.Trigger, error) {
	row := t.sqlTx.QueryRowContext(ctx, `
		SELECT id, attribution_destination, destination_type, enrollment_id, registrant,
		       trigger_time, status, filters, not_filters, event_triggers,
		       aggregatable_trigger_data, aggregatable_dedup_keys, aggregatable_values,
		       attribution_config
		FROM triggers WHERE id = $1`, id)

	trigger := &model.Trigger{}

	var (
		filters, notFilters, eventTriggers, aggTriggerData, aggDedupKeys, aggValues []byte
		attributionConfig                                                          pq.StringArray
	)

	err := row.Scan(
		&trigger.ID, &trigger.AttributionDestination, &trigger.DestinationType, &trigger.EnrollmentID,
		&trigger.Registrant, &trigger.TriggerTime, &trigger.Status, &filters, &notFilters, &eventTriggers,
		&aggTriggerData, &aggDedupKeys, &aggValues, &attributionConfig,
	)
	if err != nil {
		return nil, wrapNotFound("trigger", id, err)
	}

	if err := unmarshalJSON(filters, &trigger.Filters); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(notFilters, &trigger.NotFilters); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(eventTriggers, &trigger.EventTriggers); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(aggTriggerData, &trigger.AggregatableTriggerData); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(aggDedupKeys, &trigger.AggregatableDedupKeys); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(aggValues, &trigger.AggregatableValues); err != nil {
		return nil, err
	}

	trigger.AttributionConfig = attributionConfig

	return trigger, nil
}

func (t *tx) GetSource(ctx context.Context, id string) (*model.Source, error) {
	return t.scanSource(ctx, `
		SELECT id, event_id, publisher, publisher_type, enrollment_id, parent_id, event_time,
		       expiry_time, event_report_window, aggregatable_report_window, priority, source_type,
		       status, attribution_mode, install_attributed, install_cooldown_window, filter_data,
		       aggregatable_source, aggregate_contributions, event_report_dedup_keys,
		       aggregate_report_dedup_keys, app_destinations, web_destinations
		FROM sources WHERE id = $1`, id)
}

func (t *tx) scanSource(ctx context.Context, query string, args ...any) (*model.Source, error) {
	row := t.sqlTx.QueryRowContext(ctx, query, args...)

	src := &model.Source{}

	var (
		filterData, aggSource             []byte
		eventDedup, aggDedup               pq.Int64Array
		appDestinations, webDestinations   pq.StringArray
	)

	err := row.Scan(
		&src.ID, &src.EventID, &src.Publisher, &src.PublisherType, &src.EnrollmentID, &src.ParentID,
		&src.EventTime, &src.ExpiryTime, &src.EventReportWindow, &src.AggregatableReportWindow,
		&src.Priority, &src.SourceType, &src.Status, &src.AttributionMode, &src.InstallAttributed,
		&src.InstallCooldownWindow, &filterData, &aggSource, &src.AggregateContributions,
		&eventDedup, &aggDedup, &appDestinations, &webDestinations,
	)
	if err != nil {
		return nil, wrapNotFound("source", fmt.Sprint(args...), err)
	}

	if err := unmarshalJSON(filterData, &src.FilterData); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(aggSource, &src.AggregatableSource); err != nil {
		return nil, err
	}

	src.EventReportDedupKeys = intArrayToDedupSet(eventDedup)
	src.AggregateReportDedupKeys = intArrayToDedupSet(aggDedup)
	src.AppDestinations = appDestinations
	src.WebDestinations = webDestinations

	return src, nil
}

func intArrayToDedupSet(a pq.Int64Array) model.DedupKeySet {
	keys := make([]uint64, len(a))
	for i, v := range a {
		keys[i] = uint64(v)
	}

	return model.NewDedupKeySet(keys)
}

func dedupSetToInt64Array(s model.DedupKeySet) pq.Int64Array {
	keys := s.Slice()
	out := make(pq.Int64Array, len(keys))

	for i, k := range keys {
		out[i] = int64(k)
	}

	return out
}

func (t *tx) queryMatchingSources(
	ctx context.Context,
	enrollmentFilter string,
	enrollmentArgs []any,
	destination string,
	destType model.DestinationType,
	eventTime, expiryTime model.Millis,
) ([]*model.Source, error) {
	destCol := "app_destinations"
	if destType == model.DestinationWeb {
		destCol = "web_destinations"
	}

	query := fmt.Sprintf(`
		SELECT id, event_id, publisher, publisher_type, enrollment_id, parent_id, event_time,
		       expiry_time, event_report_window, aggregatable_report_window, priority, source_type,
		       status, attribution_mode, install_attributed, install_cooldown_window, filter_data,
		       aggregatable_source, aggregate_contributions, event_report_dedup_keys,
		       aggregate_report_dedup_keys, app_destinations, web_destinations
		FROM sources
		WHERE status = 'ACTIVE' AND %s AND $%d = ANY(%s) AND event_time <= $%d AND $%d < expiry_time`,
		enrollmentFilter, len(enrollmentArgs)+1, destCol, len(enrollmentArgs)+2, len(enrollmentArgs)+3)

	args := append(append([]any{}, enrollmentArgs...), destination, eventTime, eventTime)

	rows, err := t.sqlTx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query matching sources: %w", datastore.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []*model.Source

	for rows.Next() {
		src, err := scanSourceRow(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, src)
	}

	return out, rows.Err()
}

// scanSourceRow scans one *sql.Rows row in the same column order
// queryMatchingSources selects.
func scanSourceRow(rows *sql.Rows) (*model.Source, error) {
	src := &model.Source{}

	var (
		filterData, aggSource            []byte
		eventDedup, aggDedup              pq.Int64Array
		appDestinations, webDestinations  pq.StringArray
	)

	err := rows.Scan(
		&src.ID, &src.EventID, &src.Publisher, &src.PublisherType, &src.EnrollmentID, &src.ParentID,
		&src.EventTime, &src.ExpiryTime, &src.EventReportWindow, &src.AggregatableReportWindow,
		&src.Priority, &src.SourceType, &src.Status, &src.AttributionMode, &src.InstallAttributed,
		&src.InstallCooldownWindow, &filterData, &aggSource, &src.AggregateContributions,
		&eventDedup, &aggDedup, &appDestinations, &webDestinations,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: scan source row: %w", datastore.ErrUnavailable, err)
	}

	if err := unmarshalJSON(filterData, &src.FilterData); err != nil {
		return nil, err
	}

	if err := unmarshalJSON(aggSource, &src.AggregatableSource); err != nil {
		return nil, err
	}

	src.EventReportDedupKeys = intArrayToDedupSet(eventDedup)
	src.AggregateReportDedupKeys = intArrayToDedupSet(aggDedup)
	src.AppDestinations = appDestinations
	src.WebDestinations = webDestinations

	return src, nil
}

func (t *tx) GetMatchingActiveSources(ctx context.Context, trigger *model.Trigger) ([]*model.Source, error) {
	return t.queryMatchingSources(ctx, "enrollment_id = $1", []any{trigger.EnrollmentID},
		trigger.AttributionDestination, trigger.DestinationType, trigger.TriggerTime, trigger.TriggerTime)
}

func (t *tx) FetchTriggerMatchingSourcesForXNA(
	ctx context.Context,
	trigger *model.Trigger,
	enrollments []string,
) ([]*model.Source, error) {
	allowed := append([]string{trigger.EnrollmentID}, enrollments...)

	return t.queryMatchingSources(ctx, "enrollment_id = ANY($1)", []any{pq.StringArray(allowed)},
		trigger.AttributionDestination, trigger.DestinationType, trigger.TriggerTime, trigger.TriggerTime)
}

func (t *tx) NumEventReportsPerDestination(
	ctx context.Context,
	destination string,
	destType model.DestinationType,
) (int, error) {
	return t.count(ctx, "event_reports", destination, destType)
}

func (t *tx) NumAggregateReportsPerDestination(
	ctx context.Context,
	destination string,
	destType model.DestinationType,
) (int, error) {
	return t.count(ctx, "aggregate_reports", destination, destType)
}

func (t *tx) count(ctx context.Context, table, destination string, destType model.DestinationType) (int, error) {
	var n int

	query := fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE attribution_destination = $1 AND destination_type = $2`, table)

	err := t.sqlTx.QueryRowContext(ctx, query, destination, destType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count %s: %w", datastore.ErrUnavailable, table, err)
	}

	return n, nil
}

func (t *tx) GetSourceEventReports(ctx context.Context, sourceID string) ([]*model.EventReport, error) {
	rows, err := t.sqlTx.QueryContext(ctx, `
		SELECT id, source_id, trigger_id, trigger_data, trigger_priority, trigger_time, report_time,
		       trigger_dedup_key, attribution_destination, destination_type, status
		FROM event_reports WHERE source_id = $1`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: query source event reports: %w", datastore.ErrUnavailable, err)
	}
	defer rows.Close()

	var out []*model.EventReport

	for rows.Next() {
		r := &model.EventReport{}

		var dedupKey sql.NullInt64

		if err := rows.Scan(&r.ID, &r.SourceID, &r.TriggerID, &r.TriggerData, &r.TriggerPriority,
			&r.TriggerTime, &r.ReportTime, &dedupKey, &r.AttributionDestination, &r.DestinationType,
			&r.Status); err != nil {
			return nil, fmt.Errorf("%w: scan event report: %w", datastore.ErrUnavailable, err)
		}

		if dedupKey.Valid {
			k := uint64(dedupKey.Int64)
			r.TriggerDedupKey = &k
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

func (t *tx) GetSourceDestinations(ctx context.Context, sourceID string) (app, web []string, err error) {
	var (
		appArr, webArr pq.StringArray
	)

	row := t.sqlTx.QueryRowContext(ctx,
		`SELECT app_destinations, web_destinations FROM sources WHERE id = $1`, sourceID)

	if err := row.Scan(&appArr, &webArr); err != nil {
		return nil, nil, wrapNotFound("source", sourceID, err)
	}

	return appArr, webArr, nil
}

func (t *tx) GetAttributionsPerRateLimitWindow(
	ctx context.Context,
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

	var n int

	err = t.sqlTx.QueryRowContext(ctx, `
		SELECT count(*) FROM attributions
		WHERE source_site = $1 AND destination_site = $2 AND enrollment_id = $3 AND registrant = $4
		  AND trigger_time >= $5 AND trigger_time < $6`,
		sourceSite, destSite, trigger.EnrollmentID, trigger.Registrant, windowStart, windowEnd).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count attributions for rate limit: %w", datastore.ErrUnavailable, err)
	}

	return n, nil
}

func (t *tx) CountDistinctEnrollmentsPerPublisherXDestination(
	ctx context.Context,
	publisher, destination, ownEnrollment string,
	windowStart, windowEnd model.Millis,
) (int, error) {
	var n int

	err := t.sqlTx.QueryRowContext(ctx, `
		SELECT count(DISTINCT enrollment_id) FROM (
			SELECT enrollment_id FROM attributions
			WHERE source_site = $1 AND destination_site = $2
			  AND source_time >= $3 AND source_time < $4
			UNION
			SELECT $5::text
		) AS enrollments`,
		publisher, destination, windowStart, windowEnd, ownEnrollment).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count distinct enrollments: %w", datastore.ErrUnavailable, err)
	}

	return n, nil
}

func (t *tx) InsertEventReport(ctx context.Context, r *model.EventReport) error {
	if r.ID == "" {
		r.ID = newID("event_report")
	}

	var dedupKey sql.NullInt64
	if r.TriggerDedupKey != nil {
		dedupKey = sql.NullInt64{Int64: int64(*r.TriggerDedupKey), Valid: true}
	}

	_, err := t.sqlTx.ExecContext(ctx, `
		INSERT INTO event_reports
			(id, source_id, trigger_id, trigger_data, trigger_priority, trigger_time, report_time,
			 trigger_dedup_key, attribution_destination, destination_type, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.SourceID, r.TriggerID, r.TriggerData, r.TriggerPriority, r.TriggerTime, r.ReportTime,
		dedupKey, r.AttributionDestination, r.DestinationType, r.Status)
	if err != nil {
		return fmt.Errorf("%w: insert event report: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (t *tx) InsertAggregateReport(ctx context.Context, r *model.AggregateReport) error {
	if r.ID == "" {
		r.ID = newID("aggregate_report")
	}

	contributions, err := marshalContributions(r.Contributions)
	if err != nil {
		return err
	}

	var dedupKey sql.NullInt64
	if r.DedupKey != nil {
		dedupKey = sql.NullInt64{Int64: int64(*r.DedupKey), Valid: true}
	}

	_, err = t.sqlTx.ExecContext(ctx, `
		INSERT INTO aggregate_reports
			(id, source_id, trigger_id, source_registration_time, scheduled_report_time,
			 attribution_destination, destination_type, enrollment_id, contributions, dedup_key,
			 status, debug_report_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, r.SourceID, r.TriggerID, r.SourceRegistrationTime, r.ScheduledReportTime,
		r.AttributionDestination, r.DestinationType, r.EnrollmentID, contributions, dedupKey,
		r.Status, r.DebugReportStatus)
	if err != nil {
		return fmt.Errorf("%w: insert aggregate report: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (t *tx) InsertAttribution(ctx context.Context, a *model.Attribution) error {
	if a.ID == "" {
		a.ID = newID("attribution")
	}

	_, err := t.sqlTx.ExecContext(ctx, `
		INSERT INTO attributions
			(id, source_site, source_origin, destination_site, destination_origin, enrollment_id,
			 source_time, trigger_time, registrant, source_id, trigger_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.SourceSite, a.SourceOrigin, a.DestinationSite, a.DestinationOrigin, a.EnrollmentID,
		a.SourceTime, a.TriggerTime, a.Registrant, a.SourceID, a.TriggerID)
	if err != nil {
		return fmt.Errorf("%w: insert attribution: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (t *tx) DeleteEventReport(ctx context.Context, reportID string) error {
	if _, err := t.sqlTx.ExecContext(ctx, `DELETE FROM event_reports WHERE id = $1`, reportID); err != nil {
		return fmt.Errorf("%w: delete event report: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (t *tx) UpdateSourceStatus(ctx context.Context, ids []string, status model.SourceStatus) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := t.sqlTx.ExecContext(ctx,
		`UPDATE sources SET status = $1 WHERE id = ANY($2)`, status, pq.StringArray(ids))
	if err != nil {
		return fmt.Errorf("%w: update source status: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (t *tx) InsertIgnoredSourceForEnrollment(ctx context.Context, parentID, enrollmentID string) error {
	_, err := t.sqlTx.ExecContext(ctx, `
		INSERT INTO ignored_xna_sources (parent_id, enrollment_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, parentID, enrollmentID)
	if err != nil {
		return fmt.Errorf("%w: insert ignored xna source: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (t *tx) UpdateSourceEventReportDedupKeys(ctx context.Context, source *model.Source) error {
	_, err := t.sqlTx.ExecContext(ctx,
		`UPDATE sources SET event_report_dedup_keys = $1 WHERE id = $2`,
		dedupSetToInt64Array(source.EventReportDedupKeys), source.ID)
	if err != nil {
		return fmt.Errorf("%w: update event report dedup keys: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (t *tx) UpdateSourceAggregateReportDedupKeys(ctx context.Context, source *model.Source) error {
	_, err := t.sqlTx.ExecContext(ctx,
		`UPDATE sources SET aggregate_report_dedup_keys = $1 WHERE id = $2`,
		dedupSetToInt64Array(source.AggregateReportDedupKeys), source.ID)
	if err != nil {
		return fmt.Errorf("%w: update aggregate report dedup keys: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (t *tx) UpdateSourceAggregateContributions(ctx context.Context, source *model.Source) error {
	_, err := t.sqlTx.ExecContext(ctx,
		`UPDATE sources SET aggregate_contributions = $1 WHERE id = $2`,
		source.AggregateContributions, source.ID)
	if err != nil {
		return fmt.Errorf("%w: update aggregate contributions: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func (t *tx) UpdateTriggerStatus(ctx context.Context, ids []string, status model.TriggerStatus) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := t.sqlTx.ExecContext(ctx,
		`UPDATE triggers SET status = $1 WHERE id = ANY($2)`, status, pq.StringArray(ids))
	if err != nil {
		return fmt.Errorf("%w: update trigger status: %w", datastore.ErrUnavailable, err)
	}

	return nil
}

func attributionSourceSite(source *model.Source) (string, error) {
	return siteorigin.Site(source.Publisher, source.PublisherType == model.PublisherApp)
}

func attributionDestinationSite(trigger *model.Trigger) (string, error) {
	return siteorigin.Site(trigger.AttributionDestination, trigger.DestinationType == model.DestinationApp)
}
