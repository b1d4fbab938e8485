package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/attrib-io/attributor/internal/config"
	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/datastore/memstore"
	"github.com/attrib-io/attributor/internal/model"
	"github.com/attrib-io/attributor/internal/pipeline"
)

func baseConfig() config.AttributionConfig {
	return config.AttributionConfig{
		MaxAttributionsPerInvocation:      100,
		MaxAggregateReportsPerDestination: 10,
		MaxEventReportsPerDestination:     10,
		MaxAttributionPerRateLimitWindow:  3,
		MaxDistinctReportingOrigins:       10,
		RateLimitWindow:                   time.Hour,
		AggregateMinReportDelay:           time.Minute,
		AggregateMaxReportDelay:           time.Hour,
		MaxSumOfAggregateValuesPerSource:  1 << 20,
		APIVersion:                        "v1",
	}
}

func baseSource() *model.Source {
	return &model.Source{
		ID:                       "src1",
		Publisher:                "https://publisher.example",
		PublisherType:            model.PublisherWeb,
		EnrollmentID:             "enroll1",
		EventTime:                1_000,
		ExpiryTime:               1_000_000,
		EventReportWindow:        1_000_000,
		AggregatableReportWindow: 1_000_000,
		Status:                   model.SourceActive,
		AttributionMode:          model.AttributionTruthfully,
		SourceType:               model.SourceNavigation,
		WebDestinations:          []string{"https://dest.example"},
		EventReportDedupKeys:     model.NewDedupKeySet(nil),
		AggregateReportDedupKeys: model.NewDedupKeySet(nil),
	}
}

func baseTrigger() *model.Trigger {
	return &model.Trigger{
		ID:                     "trig1",
		AttributionDestination: "https://dest.example",
		DestinationType:        model.DestinationWeb,
		EnrollmentID:           "enroll1",
		Registrant:             "app1",
		TriggerTime:            2_000,
		Status:                 model.TriggerPending,
		EventTriggers: []model.EventTriggerSpec{
			{TriggerData: 1, Priority: 1},
		},
	}
}

func noRand() float64 { return 0 }

func run(t *testing.T, store *memstore.Store, p *pipeline.Pipeline, triggerID string) pipeline.Outcome {
	t.Helper()

	var outcome pipeline.Outcome

	err := store.WithTransaction(context.Background(), func(ctx context.Context, tx datastore.Tx) error {
		var err error
		outcome, err = p.Run(ctx, tx, triggerID)

		return err
	})
	require.NoError(t, err)

	return outcome
}

func TestRun_NoMatchingSourceDrops(t *testing.T) {
	store := memstore.New()
	store.PutTrigger(baseTrigger())

	p := pipeline.New(baseConfig(), nil, noRand)
	outcome := run(t, store, p, "trig1")

	require.Equal(t, pipeline.OutcomeDropped, outcome)
}

func TestRun_FilterMismatchDrops(t *testing.T) {
	store := memstore.New()

	source := baseSource()
	source.FilterData = model.FilterData{"product": {"shoes"}}

	trigger := baseTrigger()
	trigger.Filters = model.FilterSet{{"product": {"bags"}}}

	store.PutSource(source)
	store.PutTrigger(trigger)

	p := pipeline.New(baseConfig(), nil, noRand)
	outcome := run(t, store, p, trigger.ID)

	require.Equal(t, pipeline.OutcomeDropped, outcome)
}

func TestRun_RateLimitBlockedDrops(t *testing.T) {
	store := memstore.New()

	source := baseSource()
	trigger := baseTrigger()

	store.PutSource(source)
	store.PutTrigger(trigger)

	cfg := baseConfig()
	cfg.MaxAttributionPerRateLimitWindow = 0 // any existing count (zero) already >= 0

	p := pipeline.New(cfg, nil, noRand)
	outcome := run(t, store, p, trigger.ID)

	require.Equal(t, pipeline.OutcomeDropped, outcome)
}

func TestRun_EventOnlySuccess(t *testing.T) {
	store := memstore.New()

	source := baseSource()
	trigger := baseTrigger()
	// No aggregatable data on either side: aggregate path yields no contributions.

	store.PutSource(source)
	store.PutTrigger(trigger)

	p := pipeline.New(baseConfig(), nil, noRand)
	outcome := run(t, store, p, trigger.ID)

	require.Equal(t, pipeline.OutcomeAttributed, outcome)
	require.Len(t, store.EventReports(), 1)
	require.Empty(t, store.AggregateReports())
}

func TestRun_AggregateOnlySuccess(t *testing.T) {
	store := memstore.New()

	source := baseSource()
	source.AggregatableSource = model.AggregatableSource{"campaignCounts": "159"}

	trigger := baseTrigger()
	trigger.EventTriggers = nil // no event trigger matches -> event path tags and drops
	trigger.AggregatableTriggerData = []model.AggregatableTriggerDatum{
		{KeyPieces: []string{"200"}, SourceKeys: []string{"campaignCounts"}},
	}
	trigger.AggregatableValues = map[string]int64{"campaignCounts": 32768}

	store.PutSource(source)
	store.PutTrigger(trigger)

	p := pipeline.New(baseConfig(), nil, noRand)
	outcome := run(t, store, p, trigger.ID)

	require.Equal(t, pipeline.OutcomeAttributed, outcome)
	require.Empty(t, store.EventReports())
	require.Len(t, store.AggregateReports(), 1)
}

func TestRun_NeitherPathAttributedDrops(t *testing.T) {
	store := memstore.New()

	source := baseSource()
	trigger := baseTrigger()
	trigger.EventTriggers = nil // no event-trigger match, no aggregatable data either

	store.PutSource(source)
	store.PutTrigger(trigger)

	p := pipeline.New(baseConfig(), nil, noRand)
	outcome := run(t, store, p, trigger.ID)

	require.Equal(t, pipeline.OutcomeDropped, outcome)
}

func TestRun_CompetingSourcesIgnoredOnAttribution(t *testing.T) {
	store := memstore.New()

	winner := baseSource()
	winner.ID = "winner"
	winner.Priority = 10

	loser := baseSource()
	loser.ID = "loser"
	loser.Priority = 1

	trigger := baseTrigger()

	store.PutSource(winner)
	store.PutSource(loser)
	store.PutTrigger(trigger)

	p := pipeline.New(baseConfig(), nil, noRand)
	outcome := run(t, store, p, trigger.ID)

	require.Equal(t, pipeline.OutcomeAttributed, outcome)

	var loserStatus, winnerStatus model.SourceStatus

	err := store.WithTransaction(context.Background(), func(ctx context.Context, tx datastore.Tx) error {
		l, err := tx.GetSource(ctx, "loser")
		if err != nil {
			return err
		}

		w, err := tx.GetSource(ctx, "winner")
		if err != nil {
			return err
		}

		loserStatus = l.Status
		winnerStatus = w.Status

		return nil
	})

	require.NoError(t, err)
	require.Equal(t, model.SourceIgnored, loserStatus)
	require.Equal(t, model.SourceActive, winnerStatus)
}

func TestRun_AlreadyTerminalTriggerIsNoop(t *testing.T) {
	store := memstore.New()

	trigger := baseTrigger()
	trigger.Status = model.TriggerAttributed

	store.PutTrigger(trigger)

	p := pipeline.New(baseConfig(), nil, noRand)
	outcome := run(t, store, p, trigger.ID)

	require.Equal(t, pipeline.OutcomeNoop, outcome)
}
