// Package eventpath implements spec.md §4.7: the event-report generation
// path, including the priority-based eviction ("provisionEventReportQuota")
// sub-algorithm it names.
package eventpath

import (
	"context"
	"log/slog"
	"sort"

	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/filter"
	"github.com/attrib-io/attributor/internal/model"
)

// Outcome is the path's result: either a materialised report, or a drop,
// optionally carrying the debug tag spec.md §4.7 names for that drop
// reason.
type Outcome struct {
	Attributed bool
	Report     *model.EventReport
	Tag        model.DebugTag
	HasTag     bool
	Evicted    bool
}

func dropped(tag model.DebugTag) Outcome {
	return Outcome{Tag: tag, HasTag: true}
}

// Params bundles the per-destination capacity cap this path enforces.
type Params struct {
	MaxEventReportsPerDestination int
}

// Run executes the event path inside tx and returns its outcome. Only a
// failure crossing the datastore boundary is returned as an error; every
// business-rule decision is expressed in the returned Outcome, per
// spec.md §7.
func Run(ctx context.Context, tx datastore.Tx, source *model.Source, trigger *model.Trigger, p Params) (Outcome, error) {
	if source.IsDerived() {
		slog.Debug("event path: derived source never produces an event report",
			slog.String("trigger_id", trigger.ID), slog.String("source_id", source.ID))

		return Outcome{}, nil
	}

	if source.AttributionMode != model.AttributionTruthfully {
		slog.Debug("event path: source attribution mode is not truthful",
			slog.String("trigger_id", trigger.ID), slog.String("source_id", source.ID))

		return Outcome{}, nil
	}

	if trigger.TriggerTime > source.EventReportWindow {
		return dropped(model.TagEventReportWindowPassed), nil
	}

	spec, ok := filter.FirstMatchingEventTrigger(source.FilterData, trigger.EventTriggers)
	if !ok {
		return dropped(model.TagEventNoMatchingConfigs), nil
	}

	if spec.DedupKey != nil && source.EventReportDedupKeys.Contains(*spec.DedupKey) {
		return dropped(model.TagEventDeduplicated), nil
	}

	count, err := tx.NumEventReportsPerDestination(ctx, trigger.AttributionDestination, trigger.DestinationType)
	if err != nil {
		return Outcome{}, err
	}

	if count >= p.MaxEventReportsPerDestination {
		return dropped(model.TagEventExcessiveReports), nil
	}

	app, web, err := tx.GetSourceDestinations(ctx, source.ID)
	if err != nil {
		return Outcome{}, err
	}

	source.AppDestinations = app
	source.WebDestinations = web

	tentative := &model.EventReport{
		SourceID:               source.ID,
		TriggerID:              trigger.ID,
		TriggerData:            spec.TriggerData,
		TriggerPriority:        spec.Priority,
		TriggerTime:            trigger.TriggerTime,
		ReportTime:             source.EventReportWindow,
		TriggerDedupKey:        spec.DedupKey,
		AttributionDestination: trigger.AttributionDestination,
		DestinationType:        trigger.DestinationType,
		Status:                 model.ReportPending,
	}

	tag, blocked, evicted, err := provisionEventReportQuota(ctx, tx, source, tentative,
		p.MaxEventReportsPerDestination)
	if err != nil {
		return Outcome{}, err
	}

	if blocked {
		return dropped(tag), nil
	}

	dedupSetChanged := evicted.dedupKeyRemoved

	if spec.DedupKey != nil {
		source.EventReportDedupKeys = source.EventReportDedupKeys.Clone().Add(*spec.DedupKey)
		dedupSetChanged = true
	}

	if dedupSetChanged {
		if err := tx.UpdateSourceEventReportDedupKeys(ctx, source); err != nil {
			return Outcome{}, err
		}
	}

	if err := tx.InsertEventReport(ctx, tentative); err != nil {
		return Outcome{}, err
	}

	return Outcome{Attributed: true, Report: tentative, Evicted: evicted.happened}, nil
}

type evictionResult struct {
	happened        bool
	dedupKeyRemoved bool
}

// provisionEventReportQuota implements spec.md §4.7 step 9. It returns
// (tag, true, _, nil) if the tentative report must be dropped, or
// (_, false, _, nil) if it may proceed (after evicting a lower-priority
// report, if one was chosen).
func provisionEventReportQuota(
	ctx context.Context,
	tx datastore.Tx,
	source *model.Source,
	tentative *model.EventReport,
	maxPerDestination int,
) (tag model.DebugTag, blocked bool, evicted evictionResult, err error) {
	existing, err := tx.GetSourceEventReports(ctx, source.ID)
	if err != nil {
		return "", false, evictionResult{}, err
	}

	if len(existing) < maxPerDestination {
		return "", false, evictionResult{}, nil
	}

	var sameBucket []*model.EventReport

	for _, r := range existing {
		if r.Status == model.ReportPending && r.ReportTime == tentative.ReportTime {
			sameBucket = append(sameBucket, r)
		}
	}

	if len(sameBucket) == 0 {
		return model.TagEventExcessiveReports, true, evictionResult{}, nil
	}

	sort.SliceStable(sameBucket, func(i, j int) bool {
		a, b := sameBucket[i], sameBucket[j]
		if a.TriggerPriority != b.TriggerPriority {
			return a.TriggerPriority < b.TriggerPriority
		}

		return a.TriggerTime > b.TriggerTime
	})

	candidate := sameBucket[0]

	if candidate.TriggerPriority >= tentative.TriggerPriority {
		return model.TagEventLowPriority, true, evictionResult{}, nil
	}

	dedupRemoved := false

	if candidate.TriggerDedupKey != nil {
		source.EventReportDedupKeys.Remove(*candidate.TriggerDedupKey)
		dedupRemoved = true
	}

	if err := tx.DeleteEventReport(ctx, candidate.ID); err != nil {
		return "", false, evictionResult{}, err
	}

	return "", false, evictionResult{happened: true, dedupKeyRemoved: dedupRemoved}, nil
}
