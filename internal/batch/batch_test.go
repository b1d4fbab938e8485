package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/attrib-io/attributor/internal/batch"
	"github.com/attrib-io/attributor/internal/config"
	"github.com/attrib-io/attributor/internal/datastore/memstore"
	"github.com/attrib-io/attributor/internal/model"
	"github.com/attrib-io/attributor/internal/pipeline"
)

func cfg() config.AttributionConfig {
	return config.AttributionConfig{
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

func trigger(id string) *model.Trigger {
	return &model.Trigger{
		ID:                     id,
		AttributionDestination: "https://dest.example",
		DestinationType:        model.DestinationWeb,
		EnrollmentID:           "enroll1",
		Registrant:             "app1",
		TriggerTime:            2_000,
		Status:                 model.TriggerPending,
	}
}

func noRand() float64 { return 0 }

func TestRun_ProcessesAllPendingAndReportsNoRetryWhenUnderCap(t *testing.T) {
	store := memstore.New()
	store.PutTrigger(trigger("t1"))
	store.PutTrigger(trigger("t2"))

	p := pipeline.New(cfg(), nil, noRand)
	driver := batch.New(store, p, 10)

	result, err := driver.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)
	require.False(t, result.NeedsRetry)
	// Neither trigger has a matching source, so both are dropped.
	require.Equal(t, 2, result.Dropped)
	require.Zero(t, result.Attributed)
}

func TestRun_TruncatesToCapAndSignalsRetry(t *testing.T) {
	store := memstore.New()
	store.PutTrigger(trigger("t1"))
	store.PutTrigger(trigger("t2"))
	store.PutTrigger(trigger("t3"))

	p := pipeline.New(cfg(), nil, noRand)
	driver := batch.New(store, p, 2)

	result, err := driver.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)
	require.True(t, result.NeedsRetry)
}

func TestRun_SkipsNonPendingTriggers(t *testing.T) {
	store := memstore.New()

	attributed := trigger("t1")
	attributed.Status = model.TriggerAttributed
	store.PutTrigger(attributed)

	store.PutTrigger(trigger("t2"))

	p := pipeline.New(cfg(), nil, noRand)
	driver := batch.New(store, p, 10)

	result, err := driver.Run(context.Background())

	require.NoError(t, err)
	require.Equal(t, 1, result.Processed)
}
