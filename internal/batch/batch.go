// Package batch implements spec.md §4.1's invocation driver: it pulls the
// pending trigger id list, caps it at a configured per-invocation budget,
// and runs the per-trigger pipeline inside its own transaction for each
// id in turn.
package batch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/pipeline"
)

// Result summarises one invocation (spec.md §8: "the batch driver returns
// whether another invocation is needed").
type Result struct {
	// Processed is the number of trigger ids the invocation attempted.
	Processed int
	Attributed int
	Dropped    int

	// NeedsRetry is true iff the pending list was truncated to the
	// per-invocation cap, meaning more pending triggers remain after this
	// invocation returns (spec.md §4.1).
	NeedsRetry bool
}

// Driver runs one invocation of the batch process against store.
type Driver struct {
	store    datastore.Store
	pipeline *pipeline.Pipeline
	maxPerInvocation int
}

// New builds a Driver bounded to at most maxPerInvocation triggers per Run.
func New(store datastore.Store, p *pipeline.Pipeline, maxPerInvocation int) *Driver {
	return &Driver{store: store, pipeline: p, maxPerInvocation: maxPerInvocation}
}

// Run executes spec.md §4.1's invocation loop: it stops at the first
// datastore error (kind 1, spec.md §7) and propagates it, wrapped in
// datastore.ErrUnavailable by the Store implementation, so the caller can
// decide whether to retry the whole invocation. A trigger that is
// individually dropped by business rule never produces an error here —
// only a failure crossing the datastore boundary does.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	ids, err := d.store.PendingTriggerIDs(ctx)
	if err != nil {
		return Result{}, err
	}

	needsRetry := len(ids) > d.maxPerInvocation

	if needsRetry {
		ids = ids[:d.maxPerInvocation]
	}

	result := Result{NeedsRetry: needsRetry}

	for _, id := range ids {
		outcome, err := d.runOne(ctx, id)
		if err != nil {
			if errors.Is(err, datastore.ErrUnavailable) {
				slog.Error("batch: datastore error, aborting invocation",
					slog.String("trigger_id", id), slog.String("error", err.Error()))
			}

			return result, err
		}

		result.Processed++

		switch outcome {
		case pipeline.OutcomeAttributed:
			result.Attributed++
		case pipeline.OutcomeDropped:
			result.Dropped++
		case pipeline.OutcomeNoop:
		}
	}

	return result, nil
}

func (d *Driver) runOne(ctx context.Context, triggerID string) (pipeline.Outcome, error) {
	var outcome pipeline.Outcome

	err := d.store.WithTransaction(ctx, func(ctx context.Context, tx datastore.Tx) error {
		var err error

		outcome, err = d.pipeline.Run(ctx, tx, triggerID)

		return err
	})
	if err != nil {
		return pipeline.OutcomeNoop, err
	}

	return outcome, nil
}
