package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/attrib-io/attributor/internal/metrics"
)

func TestRecordDrop_EmptyTagDefaultsToNone(t *testing.T) {
	before := testutil.ToFloat64(metrics.Drops.WithLabelValues("none"))

	metrics.RecordDrop("")

	require.Equal(t, before+1, testutil.ToFloat64(metrics.Drops.WithLabelValues("none")))
}

func TestRecordDrop_NamedTag(t *testing.T) {
	before := testutil.ToFloat64(metrics.Drops.WithLabelValues("TRIGGER_EVENT_LOW_PRIORITY"))

	metrics.RecordDrop("TRIGGER_EVENT_LOW_PRIORITY")

	require.Equal(t, before+1, testutil.ToFloat64(metrics.Drops.WithLabelValues("TRIGGER_EVENT_LOW_PRIORITY")))
}

func TestRecordAttributed(t *testing.T) {
	before := testutil.ToFloat64(metrics.Attributions.WithLabelValues("event+aggregate"))

	metrics.RecordAttributed("event+aggregate")

	require.Equal(t, before+1, testutil.ToFloat64(metrics.Attributions.WithLabelValues("event+aggregate")))
}

func TestRecordEviction(t *testing.T) {
	before := testutil.ToFloat64(metrics.Evictions)

	metrics.RecordEviction()

	require.Equal(t, before+1, testutil.ToFloat64(metrics.Evictions))
}

func TestRecordDatastoreError(t *testing.T) {
	before := testutil.ToFloat64(metrics.DatastoreErrors)

	metrics.RecordDatastoreError()

	require.Equal(t, before+1, testutil.ToFloat64(metrics.DatastoreErrors))
}
