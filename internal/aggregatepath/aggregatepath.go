// Package aggregatepath implements spec.md §4.6: the aggregate-report
// generation path run once a source has been selected and has passed the
// top-level filter and rate-limit gates.
package aggregatepath

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/filter"
	"github.com/attrib-io/attributor/internal/model"
)

// Outcome is the path's result: either a materialised report, or a drop
// with no debug tag (spec.md §4.6 names no debug tags for this path; every
// drop here is logged, not notified).
type Outcome struct {
	Attributed bool
	Report     *model.AggregateReport
}

// Params bundles the configuration and collaborators the path needs beyond
// the source/trigger pair, so the function signature stays stable as
// configuration grows.
type Params struct {
	MaxAggregateReportsPerDestination int
	MaxSumOfAggregateValuesPerSource  int64
	MinDelay, MaxDelay                model.Millis
	APIVersion                        string
	DebugPermitted                    bool

	// Rand returns a uniform value in [0, 1); the only source of
	// nondeterminism in this path (spec.md §4.5, §9: "take an RNG as a
	// pipeline input so tests can seed it").
	Rand func() float64
}

// Run executes the aggregate path inside tx and returns its outcome. It
// never returns a business-rule drop as an error; only a failure crossing
// the datastore boundary is returned as an error, per spec.md §7.
func Run(ctx context.Context, tx datastore.Tx, source *model.Source, trigger *model.Trigger, p Params) (Outcome, error) {
	if trigger.TriggerTime > source.AggregatableReportWindow {
		slog.Debug("aggregate path: window passed",
			slog.String("trigger_id", trigger.ID), slog.String("source_id", source.ID))

		return Outcome{}, nil
	}

	count, err := tx.NumAggregateReportsPerDestination(ctx, trigger.AttributionDestination, trigger.DestinationType)
	if err != nil {
		return Outcome{}, err
	}

	if count >= p.MaxAggregateReportsPerDestination {
		slog.Debug("aggregate path: destination capacity exceeded",
			slog.String("trigger_id", trigger.ID), slog.Int("count", count))

		return Outcome{}, nil
	}

	// spec.md §9 notes the original performs this containment check twice
	// in a row with no semantic effect; this implementation does it once.
	dedupKey := filter.FirstMatchingAggregatableDedupKey(source.FilterData, trigger.AggregatableDedupKeys)
	if dedupKey != nil && source.AggregateReportDedupKeys.Contains(*dedupKey) {
		slog.Debug("aggregate path: dedup key already present",
			slog.String("trigger_id", trigger.ID), slog.Uint64("dedup_key", *dedupKey))

		return Outcome{}, nil
	}

	contributions, err := buildContributions(source, trigger)
	if err != nil {
		if errors.Is(err, ErrMalformedAggregatableSource) {
			slog.Warn("aggregate path: malformed aggregatable payload, dropping",
				slog.String("trigger_id", trigger.ID), slog.String("error", err.Error()))

			return Outcome{}, nil
		}

		return Outcome{}, err
	}

	if len(contributions) == 0 {
		slog.Debug("aggregate path: no contributions", slog.String("trigger_id", trigger.ID))

		return Outcome{}, nil
	}

	var sum int64
	for _, c := range contributions {
		sum += c.Value
	}

	newTotal, overflowed := addOverflows(source.AggregateContributions, sum)
	if overflowed || newTotal > p.MaxSumOfAggregateValuesPerSource {
		slog.Warn("aggregate path: contribution budget exceeded, dropping",
			slog.String("trigger_id", trigger.ID),
			slog.Int64("current", source.AggregateContributions),
			slog.Int64("delta", sum))

		return Outcome{}, nil
	}

	report := &model.AggregateReport{
		SourceID:               source.ID,
		TriggerID:              trigger.ID,
		SourceRegistrationTime: model.RoundDownToDay(source.EventTime),
		ScheduledReportTime:    trigger.TriggerTime + randomDelay(p.Rand, p.MinDelay, p.MaxDelay),
		AttributionDestination: trigger.AttributionDestination,
		DestinationType:        trigger.DestinationType,
		EnrollmentID:           source.EnrollmentID,
		Contributions:          contributions,
		DedupKey:               dedupKey,
		Status:                 model.ReportPending,
		DebugReportStatus:      model.DebugReportNone,
	}

	if p.DebugPermitted {
		report.DebugReportStatus = model.DebugReportPending
	}

	if dedupKey != nil {
		source.AggregateReportDedupKeys = source.AggregateReportDedupKeys.Clone().Add(*dedupKey)
	}

	if !source.IsDerived() {
		source.AggregateContributions = newTotal

		if dedupKey != nil {
			if err := tx.UpdateSourceAggregateReportDedupKeys(ctx, source); err != nil {
				return Outcome{}, err
			}
		}

		if err := tx.UpdateSourceAggregateContributions(ctx, source); err != nil {
			return Outcome{}, err
		}
	}

	if err := tx.InsertAggregateReport(ctx, report); err != nil {
		return Outcome{}, err
	}

	return Outcome{Attributed: true, Report: report}, nil
}

func addOverflows(a, b int64) (sum int64, overflowed bool) {
	sum = a + b
	if b > 0 && sum < a {
		return 0, true
	}

	if b < 0 && sum > a {
		return 0, true
	}

	return sum, false
}

// randomDelay draws an integer number of milliseconds uniform in
// [minDelay, maxDelay), per spec.md §4.5: r uniform in
// [0, MAX_DELAY - MIN_DELAY), delay = floor(r) + MIN_DELAY.
func randomDelay(rand func() float64, minDelay, maxDelay model.Millis) model.Millis {
	span := maxDelay - minDelay
	if span <= 0 {
		return minDelay
	}

	r := rand() * float64(span)

	return minDelay + model.Millis(math.Floor(r))
}
