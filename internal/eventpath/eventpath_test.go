package eventpath_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/datastore/memstore"
	"github.com/attrib-io/attributor/internal/eventpath"
	"github.com/attrib-io/attributor/internal/model"
)

func baseSource() *model.Source {
	return &model.Source{
		ID:                   "src1",
		EventTime:            1_000,
		EventReportWindow:    100_000,
		AttributionMode:      model.AttributionTruthfully,
		EventReportDedupKeys: model.NewDedupKeySet(nil),
	}
}

func baseTrigger() *model.Trigger {
	return &model.Trigger{
		ID:                     "trig1",
		TriggerTime:            2_000,
		AttributionDestination: "https://dest.example",
		DestinationType:        model.DestinationWeb,
		EventTriggers: []model.EventTriggerSpec{
			{TriggerData: 1, Priority: 10},
		},
	}
}

func runInMemstore(t *testing.T, fn func(ctx context.Context, tx datastore.Tx)) {
	t.Helper()

	store := memstore.New()
	err := store.WithTransaction(context.Background(), func(ctx context.Context, tx datastore.Tx) error {
		fn(ctx, tx)

		return nil
	})
	require.NoError(t, err)
}

func TestRun_DerivedSourceNeverProducesReport(t *testing.T) {
	runInMemstore(t, func(ctx context.Context, tx datastore.Tx) {
		source := baseSource()
		source.ParentID = "parent1"

		outcome, err := eventpath.Run(ctx, tx, source, baseTrigger(), eventpath.Params{MaxEventReportsPerDestination: 10})

		require.NoError(t, err)
		require.False(t, outcome.Attributed)
		require.False(t, outcome.HasTag)
	})
}

func TestRun_NonTruthfulAttributionModeNoReport(t *testing.T) {
	runInMemstore(t, func(ctx context.Context, tx datastore.Tx) {
		source := baseSource()
		source.AttributionMode = model.AttributionFalsely

		outcome, err := eventpath.Run(ctx, tx, source, baseTrigger(), eventpath.Params{MaxEventReportsPerDestination: 10})

		require.NoError(t, err)
		require.False(t, outcome.Attributed)
		require.False(t, outcome.HasTag)
	})
}

func TestRun_WindowPassedTags(t *testing.T) {
	runInMemstore(t, func(ctx context.Context, tx datastore.Tx) {
		source := baseSource()
		trigger := baseTrigger()
		trigger.TriggerTime = source.EventReportWindow + 1

		outcome, err := eventpath.Run(ctx, tx, source, trigger, eventpath.Params{MaxEventReportsPerDestination: 10})

		require.NoError(t, err)
		require.False(t, outcome.Attributed)
		require.True(t, outcome.HasTag)
		require.Equal(t, model.TagEventReportWindowPassed, outcome.Tag)
	})
}

func TestRun_NoMatchingEventTriggerTags(t *testing.T) {
	runInMemstore(t, func(ctx context.Context, tx datastore.Tx) {
		source := baseSource()
		trigger := baseTrigger()
		trigger.EventTriggers = nil

		outcome, err := eventpath.Run(ctx, tx, source, trigger, eventpath.Params{MaxEventReportsPerDestination: 10})

		require.NoError(t, err)
		require.False(t, outcome.Attributed)
		require.Equal(t, model.TagEventNoMatchingConfigs, outcome.Tag)
	})
}

func TestRun_DeduplicatedTags(t *testing.T) {
	runInMemstore(t, func(ctx context.Context, tx datastore.Tx) {
		source := baseSource()
		source.EventReportDedupKeys = source.EventReportDedupKeys.Clone().Add(7)

		trigger := baseTrigger()
		dedupKey := uint64(7)
		trigger.EventTriggers[0].DedupKey = &dedupKey

		outcome, err := eventpath.Run(ctx, tx, source, trigger, eventpath.Params{MaxEventReportsPerDestination: 10})

		require.NoError(t, err)
		require.False(t, outcome.Attributed)
		require.Equal(t, model.TagEventDeduplicated, outcome.Tag)
	})
}

func TestRun_CapacityExceededTags(t *testing.T) {
	runInMemstore(t, func(ctx context.Context, tx datastore.Tx) {
		source := baseSource()
		trigger := baseTrigger()

		for i := 0; i < 2; i++ {
			require.NoError(t, tx.InsertEventReport(ctx, &model.EventReport{
				SourceID:               source.ID,
				AttributionDestination: trigger.AttributionDestination,
				DestinationType:        trigger.DestinationType,
				Status:                 model.ReportPending,
				ReportTime:             source.EventReportWindow + 1, // different bucket; the destination count already reaches the cap
			}))
		}

		outcome, err := eventpath.Run(ctx, tx, source, trigger, eventpath.Params{MaxEventReportsPerDestination: 2})

		require.NoError(t, err)
		require.False(t, outcome.Attributed)
		require.Equal(t, model.TagEventExcessiveReports, outcome.Tag)
	})
}

func TestRun_LowPriorityEvictionBlocked(t *testing.T) {
	runInMemstore(t, func(ctx context.Context, tx datastore.Tx) {
		source := baseSource()
		trigger := baseTrigger()
		trigger.EventTriggers[0].Priority = 1 // lower than the existing report's priority

		require.NoError(t, tx.InsertEventReport(ctx, &model.EventReport{
			SourceID:               source.ID,
			AttributionDestination: trigger.AttributionDestination,
			DestinationType:        trigger.DestinationType,
			Status:                 model.ReportPending,
			ReportTime:             source.EventReportWindow,
			TriggerPriority:        5,
		}))

		outcome, err := eventpath.Run(ctx, tx, source, trigger, eventpath.Params{MaxEventReportsPerDestination: 1})

		require.NoError(t, err)
		require.False(t, outcome.Attributed)
		require.Equal(t, model.TagEventLowPriority, outcome.Tag)
	})
}

func TestRun_SuccessfulEvictionReplacesLowerPriorityReport(t *testing.T) {
	runInMemstore(t, func(ctx context.Context, tx datastore.Tx) {
		source := baseSource()
		trigger := baseTrigger()
		trigger.EventTriggers[0].Priority = 10

		loserDedup := uint64(99)
		require.NoError(t, tx.InsertEventReport(ctx, &model.EventReport{
			ID:                     "loser",
			SourceID:               source.ID,
			AttributionDestination: trigger.AttributionDestination,
			DestinationType:        trigger.DestinationType,
			Status:                 model.ReportPending,
			ReportTime:             source.EventReportWindow,
			TriggerPriority:        1,
			TriggerDedupKey:        &loserDedup,
		}))
		source.EventReportDedupKeys = source.EventReportDedupKeys.Clone().Add(loserDedup)

		outcome, err := eventpath.Run(ctx, tx, source, trigger, eventpath.Params{MaxEventReportsPerDestination: 1})

		require.NoError(t, err)
		require.True(t, outcome.Attributed)
		require.True(t, outcome.Evicted)
		require.NotNil(t, outcome.Report)

		existing, err := tx.GetSourceEventReports(ctx, source.ID)
		require.NoError(t, err)
		require.Len(t, existing, 1)
		require.NotEqual(t, "loser", existing[0].ID)

		require.False(t, source.EventReportDedupKeys.Contains(loserDedup))
	})
}

func TestRun_SuccessfulAttribution(t *testing.T) {
	runInMemstore(t, func(ctx context.Context, tx datastore.Tx) {
		source := baseSource()
		trigger := baseTrigger()

		outcome, err := eventpath.Run(ctx, tx, source, trigger, eventpath.Params{MaxEventReportsPerDestination: 10})

		require.NoError(t, err)
		require.True(t, outcome.Attributed)
		require.False(t, outcome.HasTag)
		require.Equal(t, uint64(1), outcome.Report.TriggerData)
		require.Equal(t, source.EventReportWindow, outcome.Report.ReportTime)
	})
}
