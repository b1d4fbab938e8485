// Package pipeline implements spec.md §4.2's per-trigger attribution
// pipeline: it runs inside a single write transaction supplied by the
// caller, and ends in exactly one of three outcomes — attributed,
// ignored-by-rule, or a propagated datastore error (spec.md §7).
package pipeline

import (
	"context"
	"log/slog"

	"github.com/attrib-io/attributor/internal/aggregatepath"
	"github.com/attrib-io/attributor/internal/config"
	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/debugreport"
	"github.com/attrib-io/attributor/internal/eventpath"
	"github.com/attrib-io/attributor/internal/filter"
	"github.com/attrib-io/attributor/internal/model"
	"github.com/attrib-io/attributor/internal/ratelimit"
	"github.com/attrib-io/attributor/internal/selector"
)

// Outcome is the sum type spec.md §9 asks for in place of the original's
// optional-wrapped pairs: a pipeline run attributed, was dropped (with an
// optional debug tag), or is a no-op (trigger already terminal).
type Outcome int

const (
	OutcomeNoop Outcome = iota
	OutcomeAttributed
	OutcomeDropped
)

// Pipeline runs the attribution pipeline for one trigger at a time. A
// Pipeline is safe to reuse across triggers within one batch invocation;
// it holds no per-trigger state.
type Pipeline struct {
	cfg       config.AttributionConfig
	scheduler debugreport.Scheduler
	rand      func() float64
}

// New builds a Pipeline. rand is the injectable RNG spec.md §9 asks for
// ("take an RNG as a pipeline input so tests can seed it"); pass
// math/rand/v2's Float64 in production.
func New(cfg config.AttributionConfig, scheduler debugreport.Scheduler, rand func() float64) *Pipeline {
	if scheduler == nil {
		scheduler = debugreport.NoopScheduler{}
	}

	return &Pipeline{cfg: cfg, scheduler: scheduler, rand: rand}
}

// Run executes spec.md §4.2's steps for triggerID inside tx. Only a
// failure crossing the datastore boundary is returned as an error.
func (p *Pipeline) Run(ctx context.Context, tx datastore.Tx, triggerID string) (Outcome, error) {
	trigger, err := tx.GetTrigger(ctx, triggerID)
	if err != nil {
		return OutcomeNoop, err
	}

	if trigger.Status != model.TriggerPending {
		return OutcomeNoop, nil
	}

	result, candidatesFound, err := p.selectSource(ctx, tx, trigger)
	if err != nil {
		return OutcomeNoop, err
	}

	if !candidatesFound {
		return p.ignore(ctx, tx, trigger, nil, model.TagNoMatchingSource)
	}

	source := result.Winner

	if !filter.TopLevelMatch(source.FilterData, trigger.Filters, trigger.NotFilters) {
		return p.ignore(ctx, tx, trigger, result.Others, model.TagNoMatchingFilterData)
	}

	blocked, tag, err := p.checkRateLimits(ctx, tx, source, trigger)
	if err != nil {
		return OutcomeNoop, err
	}

	if blocked {
		return p.ignore(ctx, tx, trigger, result.Others, tag)
	}

	aggOutcome, err := aggregatepath.Run(ctx, tx, source, trigger, aggregatepath.Params{
		MaxAggregateReportsPerDestination: p.cfg.MaxAggregateReportsPerDestination,
		MaxSumOfAggregateValuesPerSource:  p.cfg.MaxSumOfAggregateValuesPerSource,
		MinDelay:                          model.Millis(p.cfg.AggregateMinReportDelay.Milliseconds()),
		MaxDelay:                          model.Millis(p.cfg.AggregateMaxReportDelay.Milliseconds()),
		APIVersion:                        p.cfg.APIVersion,
		DebugPermitted:                    true,
		Rand:                              p.rand,
	})
	if err != nil {
		return OutcomeNoop, err
	}

	evtOutcome, err := eventpath.Run(ctx, tx, source, trigger, eventpath.Params{
		MaxEventReportsPerDestination: p.cfg.MaxEventReportsPerDestination,
	})
	if err != nil {
		return OutcomeNoop, err
	}

	if evtOutcome.HasTag {
		p.notify(ctx, trigger, source, evtOutcome.Tag)
	}

	if !aggOutcome.Attributed && !evtOutcome.Attributed {
		return p.ignore(ctx, tx, trigger, result.Others, "")
	}

	if err := p.finalize(ctx, tx, trigger, source, result.Others); err != nil {
		return OutcomeNoop, err
	}

	return OutcomeAttributed, nil
}

func (p *Pipeline) selectSource(
	ctx context.Context,
	tx datastore.Tx,
	trigger *model.Trigger,
) (selector.Result, bool, error) {
	crossNetwork := p.cfg.CrossNetworkEnabled && trigger.HasAttributionConfig()

	if !crossNetwork {
		own, err := tx.GetMatchingActiveSources(ctx, trigger)
		if err != nil {
			return selector.Result{}, false, err
		}

		return selectFrom(trigger, own, nil, false)
	}

	foreignEnrollments := trigger.AttributionConfig

	pool, err := tx.FetchTriggerMatchingSourcesForXNA(ctx, trigger, foreignEnrollments)
	if err != nil {
		return selector.Result{}, false, err
	}

	own := make([]*model.Source, 0, len(pool))
	foreign := make([]*model.Source, 0, len(pool))

	for _, src := range pool {
		if src.EnrollmentID == trigger.EnrollmentID {
			own = append(own, src)
		} else {
			foreign = append(foreign, src)
		}
	}

	return selectFrom(trigger, own, foreign, true)
}

func selectFrom(
	trigger *model.Trigger,
	own, foreign []*model.Source,
	crossNetworkEnabled bool,
) (selector.Result, bool, error) {
	result, ok := selector.Select(trigger, own, foreign, crossNetworkEnabled)

	return result, ok, nil
}

func (p *Pipeline) checkRateLimits(
	ctx context.Context,
	tx datastore.Tx,
	source *model.Source,
	trigger *model.Trigger,
) (bool, model.DebugTag, error) {
	windowEnd := trigger.TriggerTime
	windowStart := windowEnd - model.Millis(p.cfg.RateLimitWindow.Milliseconds())

	quota, err := ratelimit.CheckAttributionQuota(
		ctx, tx, source, trigger, windowStart, windowEnd, p.cfg.MaxAttributionPerRateLimitWindow)
	if err != nil {
		return false, "", err
	}

	if quota.Blocked {
		return true, quota.Tag, nil
	}

	origin, err := ratelimit.CheckReportingOriginBound(
		ctx, tx, source, trigger, windowStart, windowEnd, p.cfg.MaxDistinctReportingOrigins)
	if err != nil {
		return false, "", err
	}

	if origin.Blocked {
		return true, origin.Tag, nil
	}

	return false, "", nil
}

// ignore marks trigger IGNORED, moves the losers it is given per spec.md
// §4.9 (the selector's non-winning candidates; the winner itself is left
// untouched, and losers is nil when no candidate was found), optionally
// notifies the debug tag, and returns OutcomeDropped.
func (p *Pipeline) ignore(
	ctx context.Context,
	tx datastore.Tx,
	trigger *model.Trigger,
	losers []*model.Source,
	tag model.DebugTag,
) (Outcome, error) {
	if tag != "" {
		p.notify(ctx, trigger, nil, tag)
	}

	if err := ignoreCompetingSources(ctx, tx, losers, trigger.EnrollmentID); err != nil {
		return OutcomeNoop, err
	}

	if err := tx.UpdateTriggerStatus(ctx, []string{trigger.ID}, model.TriggerIgnored); err != nil {
		return OutcomeNoop, err
	}

	return OutcomeDropped, nil
}

func (p *Pipeline) finalize(
	ctx context.Context,
	tx datastore.Tx,
	trigger *model.Trigger,
	winner *model.Source,
	losers []*model.Source,
) error {
	if err := ignoreCompetingSources(ctx, tx, losers, trigger.EnrollmentID); err != nil {
		return err
	}

	if err := tx.UpdateTriggerStatus(ctx, []string{trigger.ID}, model.TriggerAttributed); err != nil {
		return err
	}

	attribution, err := buildAttribution(winner, trigger)
	if err != nil {
		slog.Warn("pipeline: could not resolve site/origin for attribution row",
			slog.String("trigger_id", trigger.ID), slog.String("error", err.Error()))
	}

	return tx.InsertAttribution(ctx, attribution)
}

func (p *Pipeline) notify(ctx context.Context, trigger *model.Trigger, source *model.Source, tag model.DebugTag) {
	n := debugreport.Notification{
		Tag:         tag,
		TriggerID:   trigger.ID,
		ScheduledAt: trigger.TriggerTime,
	}

	if source != nil {
		n.SourceID = source.ID
	}

	if err := p.scheduler.Schedule(ctx, n); err != nil {
		slog.Error("pipeline: failed to schedule debug report",
			slog.String("trigger_id", trigger.ID), slog.String("tag", string(tag)), slog.String("error", err.Error()))
	}
}

// ignoreCompetingSources implements spec.md §4.9: originals are bulk
// status-updated to IGNORED; derivatives get an ignore marker recorded
// against their foreign parent instead, since a derived source is never
// persisted and its foreign parent must not be mutated for one trigger's
// enrollment.
func ignoreCompetingSources(ctx context.Context, tx datastore.Tx, losers []*model.Source, enrollmentID string) error {
	var originals []string

	for _, src := range losers {
		if src.IsDerived() {
			if err := tx.InsertIgnoredSourceForEnrollment(ctx, src.ParentID, enrollmentID); err != nil {
				return err
			}

			continue
		}

		originals = append(originals, src.ID)
	}

	if len(originals) == 0 {
		return nil
	}

	return tx.UpdateSourceStatus(ctx, originals, model.SourceIgnored)
}
